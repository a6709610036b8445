// Package tierrouter routes a tag-scoped time-range query across the
// hot store and the cold archive: buckets newer than the retention
// cutoff read from the hot store, older buckets from their enclosing
// month blobs, merged into one end-descending stream.
package tierrouter

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/coldstore"
	"github.com/sbauctions/archive/pkg/filter"
	"github.com/sbauctions/archive/pkg/hotstore"
)

// Router splits queries between tiers. A nil cold store disables the
// archive tier: the whole range falls through to the hot store, where
// historical buckets may or may not still exist.
type Router struct {
	hot             hotstore.Store
	cold            *coldstore.Store
	retentionMonths int

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Router. cold may be nil when the archive is disabled.
func New(hot hotstore.Store, cold *coldstore.Store, retentionMonths int) *Router {
	return &Router{
		hot:             hot,
		cold:            cold,
		retentionMonths: retentionMonths,
		now:             time.Now,
	}
}

// cutoff is the hot/cold boundary: the start of the month
// retentionMonths before now. Data at or after it lives hot.
func (r *Router) cutoff() time.Time {
	now := r.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return monthStart.AddDate(0, -r.retentionMonths, 0)
}

// Filtered streams auctions with end in (t0, t1] matching pred, end
// descending, up to limit. The hot segment drains first (it is strictly
// newer than every cold month), then cold months walk backwards. A cold
// month that fails to read is logged and elided rather than failing the
// query.
func (r *Router) Filtered(ctx context.Context, tag string, t0, t1 time.Time, pred filter.Predicate, limit int) (hotstore.Iterator, error) {
	cut := r.cutoff()

	if r.cold == nil || !t0.Before(cut) {
		it, err := r.hot.Range(ctx, tag, t0, t1, nil, 0)
		if err != nil {
			return nil, err
		}
		return &filteredIterator{inner: it, pred: pred, limit: limit}, nil
	}

	// The cutoff instant itself belongs to the hot tier: hot covers
	// (cut-1ns, t1], cold covers (t0, cut-1ns].
	hotFrom := cut.Add(-time.Nanosecond)

	var hotIter hotstore.Iterator
	if t1.After(hotFrom) {
		it, err := r.hot.Range(ctx, tag, hotFrom, t1, nil, 0)
		if err != nil {
			return nil, err
		}
		hotIter = it
	}

	coldEnd := hotFrom
	if t1.Before(coldEnd) {
		coldEnd = t1
	}

	return &tierIterator{
		router:  r,
		tag:     tag,
		t0:      t0,
		coldEnd: coldEnd,
		pred:    pred,
		limit:   limit,
		hot:     hotIter,
		month:   time.Date(coldEnd.Year(), coldEnd.Month(), 1, 0, 0, 0, 0, time.UTC),
		floor:   time.Date(t0.Year(), t0.Month(), 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

// filteredIterator applies pred and limit over a single hot iterator.
type filteredIterator struct {
	inner   hotstore.Iterator
	pred    filter.Predicate
	limit   int
	emitted int
}

func (f *filteredIterator) Next(ctx context.Context) (auction.Auction, bool, error) {
	for {
		if f.limit > 0 && f.emitted >= f.limit {
			return auction.Auction{}, false, nil
		}
		a, ok, err := f.inner.Next(ctx)
		if err != nil || !ok {
			return auction.Auction{}, false, err
		}
		if f.pred != nil && !f.pred(&a) {
			continue
		}
		f.emitted++
		return a, true, nil
	}
}

func (f *filteredIterator) Close() error { return f.inner.Close() }

// tierIterator drains the hot segment, then walks cold months from
// newest to oldest, buffering one month at a time.
type tierIterator struct {
	router  *Router
	tag     string
	t0      time.Time
	coldEnd time.Time
	pred    filter.Predicate
	limit   int

	hot     hotstore.Iterator
	hotDone bool

	month time.Time // current cold month (start of month), walking down
	floor time.Time // start of t0's month; months before it are out of range
	buf   []auction.Auction
	pos   int

	emitted int
	closed  bool
}

func (t *tierIterator) Next(ctx context.Context) (auction.Auction, bool, error) {
	if t.closed {
		return auction.Auction{}, false, nil
	}
	for {
		if t.limit > 0 && t.emitted >= t.limit {
			return auction.Auction{}, false, nil
		}

		if !t.hotDone && t.hot != nil {
			a, ok, err := t.hot.Next(ctx)
			if err != nil {
				return auction.Auction{}, false, err
			}
			if ok {
				if t.pred != nil && !t.pred(&a) {
					continue
				}
				t.emitted++
				return a, true, nil
			}
			t.hotDone = true
		}
		if t.hot == nil {
			t.hotDone = true
		}

		if t.pos < len(t.buf) {
			a := t.buf[t.pos]
			t.pos++
			t.emitted++
			return a, true, nil
		}

		if t.month.Before(t.floor) {
			return auction.Auction{}, false, nil
		}
		t.fillMonth(ctx)
	}
}

// fillMonth loads the current cold month into the buffer, filtered to
// (t0, coldEnd] and pred, sorted end descending, then steps back one
// month.
func (t *tierIterator) fillMonth(ctx context.Context) {
	month := t.month
	t.month = t.month.AddDate(0, -1, 0)
	t.buf = t.buf[:0]
	t.pos = 0

	records, err := t.router.cold.GetMonth(ctx, t.tag, month.Year(), int(month.Month()))
	if err != nil {
		// One lost shard must not fail the whole query.
		log.Printf("tierrouter: cold read %s/%d/%02d failed, eliding: %v",
			t.tag, month.Year(), int(month.Month()), err)
		return
	}

	for _, a := range records {
		if !a.End.After(t.t0) || a.End.After(t.coldEnd) {
			continue
		}
		if t.pred != nil && !t.pred(&a) {
			continue
		}
		t.buf = append(t.buf, a)
	}
	sort.SliceStable(t.buf, func(i, j int) bool {
		return t.buf[i].End.After(t.buf[j].End)
	})
}

func (t *tierIterator) Close() error {
	t.closed = true
	t.buf = nil
	if t.hot != nil {
		return t.hot.Close()
	}
	return nil
}

// Collect drains an iterator into a slice (convenience for callers that
// want the whole window).
func Collect(ctx context.Context, it hotstore.Iterator) ([]auction.Auction, error) {
	defer it.Close()
	var out []auction.Auction
	for {
		a, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, a)
	}
}
