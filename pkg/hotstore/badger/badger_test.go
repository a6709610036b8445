package badger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/hotstore"
)

func newTestStore(t *testing.T) *Storage {
	t.Helper()
	store, err := New(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func soldAuction(tag string, end time.Time, price int64) auction.Auction {
	bidder := uuid.New()
	return auction.Auction{
		UUID:       uuid.New(),
		Tag:        tag,
		ItemName:   "Test Item",
		SellerUUID: uuid.New(),
		Start:      end.Add(-24 * time.Hour),
		End:        end,
		Count:      1,
		Bids: []auction.Bid{
			{BidderUUID: bidder, ProfileID: bidder, Amount: price, Timestamp: end.Add(-time.Hour)},
		},
	}
}

func TestInsertThenGetByUUID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := soldAuction("DIAMOND_SWORD", time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC), 1_000_000)
	require.NoError(t, store.Insert(ctx, a))

	versions, err := store.GetByUUID(ctx, a.UUID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, a.UUID, versions[0].UUID)
	assert.Equal(t, int64(1_000_000), versions[0].HighestBid)
	assert.True(t, versions[0].IsSold)

	combined, err := store.GetCombined(ctx, a.UUID)
	require.NoError(t, err)
	require.NotNil(t, combined)
	assert.Len(t, combined.Bids, 1)
}

func TestDuplicateInsertIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := soldAuction("DIAMOND_SWORD", time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC), 500_000)
	require.NoError(t, store.Insert(ctx, a))
	require.NoError(t, store.Insert(ctx, a))

	versions, err := store.GetByUUID(ctx, a.UUID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestListedAndSoldProduceTwoVersions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	end := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	sold := soldAuction("HYPERION", end, 800_000_000)

	listed := sold
	listed.Bids = nil
	listed.HighestBid = 0
	listed.Category = "WEAPON"

	require.NoError(t, store.Insert(ctx, listed))
	require.NoError(t, store.Insert(ctx, sold))

	versions, err := store.GetByUUID(ctx, sold.UUID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	combined, err := store.GetCombined(ctx, sold.UUID)
	require.NoError(t, err)
	require.NotNil(t, combined)
	assert.Equal(t, "WEAPON", combined.Category)
	assert.Equal(t, int64(800_000_000), combined.HighestBid)
}

func TestRangeDescendingWithLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		a := soldAuction("DIAMOND_SWORD", base.Add(time.Duration(i)*24*time.Hour), int64(100+i))
		require.NoError(t, store.Insert(ctx, a))
	}

	it, err := store.Range(ctx, "DIAMOND_SWORD", base.Add(-time.Hour), base.Add(10*24*time.Hour), nil, 3)
	require.NoError(t, err)
	defer it.Close()

	var got []auction.Auction
	for {
		a, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, a)
	}

	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].End.After(got[i-1].End), "results must be end-descending")
	}
}

func TestRangeIsSoldFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	end := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	sold := soldAuction("HYPERION", end, 1000)

	unsold := soldAuction("HYPERION", end.Add(time.Hour), 0)
	unsold.Bids = nil

	require.NoError(t, store.Insert(ctx, sold))
	require.NoError(t, store.Insert(ctx, unsold))

	isSold := true
	it, err := store.Range(ctx, "HYPERION", end.Add(-24*time.Hour), end.Add(24*time.Hour), &isSold, 0)
	require.NoError(t, err)
	defer it.Close()

	count := 0
	for {
		a, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.True(t, a.IsSold)
		count++
	}
	assert.Equal(t, 1, count)
}

func TestRecentBySeller(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seller := uuid.New()
	before := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	inWindow := soldAuction("DIAMOND_SWORD", before.Add(-5*24*time.Hour), 100)
	inWindow.SellerUUID = seller
	tooOld := soldAuction("DIAMOND_SWORD", before.Add(-60*24*time.Hour), 200)
	tooOld.SellerUUID = seller

	require.NoError(t, store.Insert(ctx, inWindow))
	require.NoError(t, store.Insert(ctx, tooOld))

	got, err := store.RecentBySeller(ctx, seller, before, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inWindow.UUID, got[0].UUID)
}

func TestDailyAggregate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	prices := []int64{100, 200, 200, 300}
	for i, p := range prices {
		a := soldAuction("DIAMOND_SWORD", day.Add(time.Duration(i+1)*time.Hour), p)
		require.NoError(t, store.Insert(ctx, a))
	}

	agg, err := store.DailyAggregate(ctx, "DIAMOND_SWORD", nil, day)
	require.NoError(t, err)

	assert.Equal(t, int64(300), agg.Max)
	assert.Equal(t, int64(100), agg.Min)
	assert.Equal(t, int64(200), agg.Median)
	assert.Equal(t, int64(200), agg.Mode)
	assert.Equal(t, 4, agg.Volume)
	assert.InDelta(t, 200.0, agg.Mean, 0.001)
}

func TestSummaryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	row := hotstore.SummaryRow{
		Tag:       "HYPERION",
		FilterKey: "tierMYTHIC",
		Day:       day,
		Filters:   map[string]string{"tier": "MYTHIC"},
		Aggregate: hotstore.Aggregate{Max: 10, Min: 1, Median: 5, Mean: 5.5, Mode: 5, Volume: 3},
	}
	require.NoError(t, store.WriteSummary(ctx, row))

	got, err := store.ReadSummaries(ctx, "HYPERION", "tierMYTHIC", day.Add(-24*time.Hour), day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, row.Aggregate, got[0].Aggregate)

	// Different filter key hits a different partition.
	other, err := store.ReadSummaries(ctx, "HYPERION", "tierLEGENDARY", day.Add(-24*time.Hour), day)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDeleteRowsMatching(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := soldAuction("DIAMOND_SWORD", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 777)
	require.NoError(t, store.Insert(ctx, a))

	versions, err := store.GetByUUID(ctx, a.UUID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	rec := auction.Encode(versions[0])

	err = store.DeleteRowsMatching(ctx, []hotstore.RowKey{{
		Tag:     rec.Tag,
		TimeKey: rec.TimeKey,
		IsSold:  rec.IsSold,
		End:     rec.End,
		UUID:    rec.UUID,
	}})
	require.NoError(t, err)

	versions, err = store.GetByUUID(ctx, a.UUID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestDistinctTags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	end := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, soldAuction("DIAMOND_SWORD", end, 1)))
	require.NoError(t, store.Insert(ctx, soldAuction("HYPERION", end, 2)))

	tags, err := store.DistinctTags(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"DIAMOND_SWORD", "HYPERION"}, tags)
}

func TestInsertBatchSameTagRejectsMixedTags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	end := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	batch := []auction.Auction{
		soldAuction("DIAMOND_SWORD", end, 1),
		soldAuction("HYPERION", end, 2),
	}
	require.Error(t, store.InsertBatchSameTag(ctx, batch))
}

func TestInsertBidsReadBackThroughCombined(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := soldAuction("HYPERION", time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC), 1000)
	require.NoError(t, store.Insert(ctx, a))

	extra := auction.Bid{
		BidderUUID: uuid.New(),
		Amount:     900,
		Timestamp:  a.End.Add(-2 * time.Hour),
	}
	require.NoError(t, store.InsertBids(ctx, a.UUID, []auction.Bid{extra}))

	combined, err := store.GetCombined(ctx, a.UUID)
	require.NoError(t, err)
	require.NotNil(t, combined)
	assert.Len(t, combined.Bids, 2)
}
