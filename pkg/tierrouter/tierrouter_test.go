package tierrouter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/coldstore"
	badgerstore "github.com/sbauctions/archive/pkg/hotstore/badger"
)

var testParams = coldstore.Params{
	MasterCapacity: 10_000,
	MasterFPR:      0.001,
	TagCapacity:    1_000,
	TagFPR:         0.01,
}

// fixedNow anchors the retention cutoff so tests are deterministic.
var fixedNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func testAuction(tag string, end time.Time, price int64) auction.Auction {
	bidder := uuid.New()
	return auction.Auction{
		UUID:       uuid.New(),
		Tag:        tag,
		SellerUUID: uuid.New(),
		Start:      end.Add(-24 * time.Hour),
		End:        end,
		Bids:       []auction.Bid{{BidderUUID: bidder, ProfileID: bidder, Amount: price, Timestamp: end}},
	}
}

func newRouter(t *testing.T, client coldstore.ObjectClient) (*Router, *badgerstore.Storage, *coldstore.Store) {
	t.Helper()
	hot, err := badgerstore.New(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { hot.Close() })

	cold, err := coldstore.New(context.Background(), client, testParams)
	require.NoError(t, err)

	r := New(hot, cold, 3)
	r.now = func() time.Time { return fixedNow }
	return r, hot, cold
}

func TestFilteredSpansBothTiers(t *testing.T) {
	ctx := context.Background()
	r, hot, cold := newRouter(t, coldstore.NewMemoryClient())

	// Recent data lives hot; 2023-01 lives cold only.
	recent := testAuction("X", fixedNow.Add(-24*time.Hour), 100)
	require.NoError(t, hot.Insert(ctx, recent))

	old := testAuction("X", time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), 200)
	old.IsSold = true
	require.NoError(t, cold.StoreMonth(ctx, "X", 2023, 1, []auction.Auction{old}))

	it, err := r.Filtered(ctx, "X", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), fixedNow, nil, 0)
	require.NoError(t, err)

	got, err := Collect(ctx, it)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Merged stream is end-descending: hot row first.
	assert.Equal(t, recent.UUID, got[0].UUID)
	assert.Equal(t, old.UUID, got[1].UUID)
}

func TestFilteredHotOnlyWhenColdDisabled(t *testing.T) {
	ctx := context.Background()
	hot, err := badgerstore.New(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { hot.Close() })

	r := New(hot, nil, 3)
	r.now = func() time.Time { return fixedNow }

	old := testAuction("X", time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), 100)
	require.NoError(t, hot.Insert(ctx, old))

	it, err := r.Filtered(ctx, "X", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), fixedNow, nil, 0)
	require.NoError(t, err)
	got, err := Collect(ctx, it)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFilteredAppliesPredicateAndLimit(t *testing.T) {
	ctx := context.Background()
	r, hot, _ := newRouter(t, coldstore.NewMemoryClient())

	for i := 0; i < 5; i++ {
		a := testAuction("X", fixedNow.Add(-time.Duration(i+1)*time.Hour), int64(100*(i+1)))
		if i%2 == 0 {
			a.Tier = "MYTHIC"
		}
		require.NoError(t, hot.Insert(ctx, a))
	}

	pred := func(a *auction.Auction) bool { return a.Tier == "MYTHIC" }
	it, err := r.Filtered(ctx, "X", fixedNow.Add(-48*time.Hour), fixedNow, pred, 2)
	require.NoError(t, err)
	got, err := Collect(ctx, it)
	require.NoError(t, err)

	require.Len(t, got, 2)
	for _, a := range got {
		assert.Equal(t, "MYTHIC", a.Tier)
	}
}

// failingClient errors on every Get to exercise shard elision.
type failingClient struct {
	*coldstore.MemoryClient
}

func (f *failingClient) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "index/master_bloom_0.bin" {
		return f.MemoryClient.Get(ctx, key)
	}
	return nil, errors.New("simulated outage")
}

func TestColdFailureElidesBucketNotQuery(t *testing.T) {
	ctx := context.Background()
	r, hot, _ := newRouter(t, &failingClient{coldstore.NewMemoryClient()})

	recent := testAuction("X", fixedNow.Add(-24*time.Hour), 100)
	require.NoError(t, hot.Insert(ctx, recent))

	it, err := r.Filtered(ctx, "X", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), fixedNow, nil, 0)
	require.NoError(t, err)
	got, err := Collect(ctx, it)
	require.NoError(t, err)

	// The cold months are unreadable, the hot segment still answers.
	require.Len(t, got, 1)
	assert.Equal(t, recent.UUID, got[0].UUID)
}
