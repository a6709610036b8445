// Package query is the read side of the archive: point lookups that
// span both tiers, filtered range streams, the memoized daily summary
// cache, and the recent-sales overview.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sbauctions/archive/pkg/apperr"
	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/coldstore"
	"github.com/sbauctions/archive/pkg/filter"
	"github.com/sbauctions/archive/pkg/hotstore"
	"github.com/sbauctions/archive/pkg/playernames"
	"github.com/sbauctions/archive/pkg/tierrouter"
)

// SummaryWindowDays is the default summary window when no EndAfter is
// given.
const SummaryWindowDays = 7

// Engine answers queries over the hot store, the cold archive, and the
// summary cache.
type Engine struct {
	hot      hotstore.Store
	cold     *coldstore.Store
	router   *tierrouter.Router
	compiler filter.Compiler
	names    playernames.Resolver

	// now is swappable for tests.
	now func() time.Time
}

// New creates an Engine. cold may be nil when the archive is disabled;
// names may be nil to skip player-name resolution.
func New(hot hotstore.Store, cold *coldstore.Store, router *tierrouter.Router, compiler filter.Compiler, names playernames.Resolver) *Engine {
	if compiler == nil {
		compiler = filter.MapCompiler{}
	}
	return &Engine{
		hot:      hot,
		cold:     cold,
		router:   router,
		compiler: compiler,
		names:    names,
		now:      time.Now,
	}
}

// GetVersions returns every stored version of id, hot and cold.
func (e *Engine) GetVersions(ctx context.Context, id uuid.UUID) ([]auction.Auction, error) {
	versions, err := e.hot.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.cold != nil {
		archived, err := e.cold.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		versions = append(versions, archived...)
	}
	return versions, nil
}

// GetCombined returns the folded view of id, or a NotFound error.
func (e *Engine) GetCombined(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	combined, err := e.hot.GetCombined(ctx, id)
	if err != nil {
		return nil, err
	}
	if combined != nil {
		return combined, nil
	}
	if e.cold != nil {
		archived, err := e.cold.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		if combined = auction.Combine(archived); combined != nil {
			return combined, nil
		}
	}
	return nil, apperr.NotFound("query.GetCombined", fmt.Errorf("auction %s", id))
}

// Filtered streams auctions for tag with end in (t0, t1] matching the
// raw filter, end descending, up to limit.
func (e *Engine) Filtered(ctx context.Context, tag string, raw map[string]string, t0, t1 time.Time, limit int) ([]auction.Auction, error) {
	pred, err := e.compiler.Compile(raw)
	if err != nil {
		return nil, apperr.InvalidInput("query.Filtered", err)
	}
	it, err := e.router.Filtered(ctx, tag, t0, t1, pred, limit)
	if err != nil {
		return nil, err
	}
	return tierrouter.Collect(ctx, it)
}

// Summary returns the per-day aggregates for (tag, filter) over the
// requested window, filling any missing days from the hot store and
// memoizing them. A row's Day is the day's end boundary (midnight
// after the 24h it covers). Two concurrent misses recompute the same
// day independently and write identical rows; last writer wins.
func (e *Engine) Summary(ctx context.Context, tag string, raw map[string]string) ([]hotstore.SummaryRow, error) {
	start, end, err := e.summaryWindow(raw)
	if err != nil {
		return nil, apperr.InvalidInput("query.Summary", err)
	}
	filterKey := filter.FilterKey(raw)

	rows, err := e.hot.ReadSummaries(ctx, tag, filterKey, start, end)
	if err != nil {
		return nil, err
	}

	expected := int(end.Sub(start) / (24 * time.Hour))
	if len(rows) >= expected {
		return rows, nil
	}

	have := make(map[time.Time]bool, len(rows))
	for _, r := range rows {
		have[r.Day.UTC()] = true
	}

	pred, err := e.compiler.Compile(raw)
	if err != nil {
		return nil, apperr.InvalidInput("query.Summary", err)
	}

	// Missing days are computed in sequence, oldest first.
	for i := 0; i < expected; i++ {
		dayStart := start.Add(time.Duration(i) * 24 * time.Hour)
		day := dayStart.Add(24 * time.Hour)
		if have[day] {
			continue
		}
		agg, err := e.hot.DailyAggregate(ctx, tag, pred, dayStart)
		if err != nil {
			return nil, err
		}
		row := hotstore.SummaryRow{
			Tag:       tag,
			FilterKey: filterKey,
			Day:       day,
			Filters:   raw,
			Aggregate: agg,
		}
		if err := e.hot.WriteSummary(ctx, row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	sortRowsByDay(rows)
	return rows, nil
}

// summaryWindow canonicalizes the (start, end] window: EndBefore (or
// now) rounded down to the day boundary, EndAfter (or end minus the
// default window) rounded the same way.
func (e *Engine) summaryWindow(raw map[string]string) (time.Time, time.Time, error) {
	end := e.now().UTC()
	if v, ok := raw[filter.KeyEndBefore]; ok {
		t, err := filter.ParseTime(v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	end = end.Truncate(24 * time.Hour)

	start := end.Add(-SummaryWindowDays * 24 * time.Hour)
	if v, ok := raw[filter.KeyEndAfter]; ok {
		t, err := filter.ParseTime(v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t.Truncate(24 * time.Hour)
	}
	if !start.Before(end) {
		start = end.Add(-24 * time.Hour)
	}
	return start, end, nil
}

func sortRowsByDay(rows []hotstore.SummaryRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Day.Before(rows[j].Day) })
}

// PriceSummary folds a window of daily rows into one overall figure:
// min/max span the window, mean is volume-weighted, median and mode
// are taken over the daily values weighted by volume.
type PriceSummary struct {
	Max    int64   `json:"max"`
	Min    int64   `json:"min"`
	Median int64   `json:"median"`
	Mean   float64 `json:"mean"`
	Mode   int64   `json:"mode"`
	Volume int     `json:"volume"`
}

// FoldSummary combines daily aggregates, skipping empty days. The
// window median is the volume-weighted median of daily medians.
func FoldSummary(rows []hotstore.SummaryRow) PriceSummary {
	var out PriceSummary
	var weighted float64

	type weightedPrice struct {
		price  int64
		volume int
	}
	var medians []weightedPrice
	modeCount := make(map[int64]int)

	for _, r := range rows {
		a := r.Aggregate
		if a.Volume == 0 {
			continue
		}
		if out.Volume == 0 || a.Max > out.Max {
			out.Max = a.Max
		}
		if out.Volume == 0 || a.Min < out.Min {
			out.Min = a.Min
		}
		weighted += a.Mean * float64(a.Volume)
		out.Volume += a.Volume
		medians = append(medians, weightedPrice{a.Median, a.Volume})
		modeCount[a.Mode] += a.Volume
	}

	if out.Volume == 0 {
		return PriceSummary{}
	}
	out.Mean = weighted / float64(out.Volume)

	sort.Slice(medians, func(i, j int) bool { return medians[i].price < medians[j].price })
	half := out.Volume / 2
	acc := 0
	for _, m := range medians {
		acc += m.volume
		if acc > half {
			out.Median = m.price
			break
		}
	}

	best := 0
	for _, r := range rows {
		if c := modeCount[r.Aggregate.Mode]; c > best {
			best = c
			out.Mode = r.Aggregate.Mode
		}
	}
	return out
}
