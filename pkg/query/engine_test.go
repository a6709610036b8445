package query

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbauctions/archive/pkg/apperr"
	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/coldstore"
	"github.com/sbauctions/archive/pkg/hotstore"
	badgerstore "github.com/sbauctions/archive/pkg/hotstore/badger"
	"github.com/sbauctions/archive/pkg/playernames"
	"github.com/sbauctions/archive/pkg/tierrouter"
)

var fixedNow = time.Date(2024, 7, 10, 15, 30, 0, 0, time.UTC)

var testParams = coldstore.Params{
	MasterCapacity: 10_000,
	MasterFPR:      0.001,
	TagCapacity:    1_000,
	TagFPR:         0.01,
}

func newEngine(t *testing.T) (*Engine, *badgerstore.Storage, *coldstore.Store) {
	t.Helper()
	hot, err := badgerstore.New(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { hot.Close() })

	cold, err := coldstore.New(context.Background(), coldstore.NewMemoryClient(), testParams)
	require.NoError(t, err)

	router := tierrouter.New(hot, cold, 3)

	e := New(hot, cold, router, nil, playernames.NewStatic(nil))
	e.now = func() time.Time { return fixedNow }
	return e, hot, cold
}

func soldAuction(tag string, end time.Time, price int64) auction.Auction {
	bidder := uuid.New()
	return auction.Auction{
		UUID:       uuid.New(),
		Tag:        tag,
		ItemName:   "Item",
		Tier:       "MYTHIC",
		SellerUUID: uuid.New(),
		Start:      end.Add(-24 * time.Hour),
		End:        end,
		Bids:       []auction.Bid{{BidderUUID: bidder, ProfileID: bidder, Amount: price, Timestamp: end}},
	}
}

func TestSummaryCacheFillsOnceThenReads(t *testing.T) {
	ctx := context.Background()
	e, hot, _ := newEngine(t)

	// Sales spread across the last 7 days.
	for i := 1; i <= 7; i++ {
		end := fixedNow.Add(-time.Duration(i)*24*time.Hour + time.Hour)
		require.NoError(t, hot.Insert(ctx, soldAuction("HYPERION", end, int64(i*100))))
	}

	raw := map[string]string{"tier": "MYTHIC"}

	rows, err := e.Summary(ctx, "HYPERION", raw)
	require.NoError(t, err)
	require.Len(t, rows, SummaryWindowDays)

	// All rows were memoized: a direct read now returns the full set.
	end := fixedNow.Truncate(24 * time.Hour)
	start := end.Add(-SummaryWindowDays * 24 * time.Hour)
	cached, err := hot.ReadSummaries(ctx, "HYPERION", "tierMYTHIC", start, end)
	require.NoError(t, err)
	assert.Len(t, cached, SummaryWindowDays)

	// Second call returns identical content.
	again, err := e.Summary(ctx, "HYPERION", raw)
	require.NoError(t, err)
	assert.Equal(t, rows, again)
}

func TestSummaryWindowFromEndBefore(t *testing.T) {
	ctx := context.Background()
	e, hot, _ := newEngine(t)

	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, hot.Insert(ctx, soldAuction("X", day.Add(12*time.Hour), 500)))

	rows, err := e.Summary(ctx, "X", map[string]string{
		"EndBefore": "2024-06-12",
		"EndAfter":  "2024-06-10",
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	total := 0
	for _, r := range rows {
		total += r.Aggregate.Volume
	}
	assert.Equal(t, 1, total)
}

func TestGetCombinedFallsBackToCold(t *testing.T) {
	ctx := context.Background()
	e, _, cold := newEngine(t)

	archived := soldAuction("X", time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), 900)
	archived.IsSold = true
	archived.HighestBid = 900
	require.NoError(t, cold.StoreMonth(ctx, "X", 2023, 1, []auction.Auction{archived}))

	got, err := e.GetCombined(ctx, archived.UUID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, archived.UUID, got.UUID)

	_, err = e.GetCombined(ctx, uuid.New())
	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, kind)
}

func TestFilteredRejectsMalformedFilter(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newEngine(t)

	_, err := e.Filtered(ctx, "X", map[string]string{"EndAfter": "garbage"}, fixedNow.Add(-time.Hour), fixedNow, 10)
	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInvalidInput, kind)
}

func TestFoldSummary(t *testing.T) {
	rows := []hotstore.SummaryRow{
		{Aggregate: hotstore.Aggregate{Max: 300, Min: 100, Median: 200, Mean: 200, Mode: 200, Volume: 2}},
		{Aggregate: hotstore.Aggregate{Max: 500, Min: 50, Median: 400, Mean: 350, Mode: 400, Volume: 4}},
		{Aggregate: hotstore.Aggregate{}}, // empty day
	}
	s := FoldSummary(rows)

	assert.Equal(t, int64(500), s.Max)
	assert.Equal(t, int64(50), s.Min)
	assert.Equal(t, 6, s.Volume)
	assert.InDelta(t, 300.0, s.Mean, 0.001)
	assert.Equal(t, int64(400), s.Median)
	assert.Equal(t, int64(400), s.Mode)

	assert.Equal(t, PriceSummary{}, FoldSummary(nil))
}
