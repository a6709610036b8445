package archive

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/coldstore"
	badgerstore "github.com/sbauctions/archive/pkg/hotstore/badger"
	"github.com/sbauctions/archive/pkg/tierrouter"
)

var fixedNow = time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)

var testParams = coldstore.Params{
	MasterCapacity: 10_000,
	MasterFPR:      0.001,
	TagCapacity:    1_000,
	TagFPR:         0.01,
}

func soldAuction(tag string, end time.Time, price int64) auction.Auction {
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

func newMigrator(t *testing.T, client coldstore.ObjectClient) (*Migrator, *badgerstore.Storage, *coldstore.Store) {
	t.Helper()
	hot, err := badgerstore.New(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { hot.Close() })

	cold, err := coldstore.New(context.Background(), client, testParams)
	require.NoError(t, err)

	m := New(hot, cold, 3)
	m.now = func() time.Time { return fixedNow }
	m.sampleSeed = 42
	return m, hot, cold
}

func TestMigrateMovesOldMonthAndKeepsQueryable(t *testing.T) {
	ctx := context.Background()
	client := coldstore.NewMemoryClient()
	m, hot, cold := newMigrator(t, client)

	// Three rows in 2023-01, one recent row that must stay hot.
	jan := time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)
	var archived []auction.Auction
	for i := 0; i < 3; i++ {
		a := soldAuction("X", jan.Add(time.Duration(i)*24*time.Hour), int64(100+i))
		archived = append(archived, a)
		require.NoError(t, hot.Insert(ctx, a))
	}
	recent := soldAuction("X", fixedNow.Add(-24*time.Hour), 999)
	require.NoError(t, hot.Insert(ctx, recent))

	require.NoError(t, m.RunOnce(ctx))
	assert.Equal(t, int64(0), m.VerificationFailures())
	assert.Equal(t, int64(1), m.MonthsMigrated())

	// The blob exists with the right metadata.
	exists, err := cold.MonthExists(ctx, "X", 2023, 1)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "3", client.Metadata("auctions/X/2023/01.blob")["count"])

	// Hot rows for the sealed month are gone; the recent row remains.
	for _, a := range archived {
		versions, err := hot.GetByUUID(ctx, a.UUID)
		require.NoError(t, err)
		assert.Empty(t, versions, "row %s should have been deleted", a.UUID)
	}
	versions, err := hot.GetByUUID(ctx, recent.UUID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	// A tiered query over 2023-01 still returns the data, now cold.
	router := tierrouter.New(hot, cold, 3)
	it, err := router.Filtered(ctx, "X",
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
		time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), nil, 0)
	require.NoError(t, err)
	got, err := tierrouter.Collect(ctx, it)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestMigrateIsRestartable(t *testing.T) {
	ctx := context.Background()
	m, hot, _ := newMigrator(t, coldstore.NewMemoryClient())

	a := soldAuction("X", time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC), 100)
	require.NoError(t, hot.Insert(ctx, a))

	require.NoError(t, m.RunOnce(ctx))
	require.NoError(t, m.RunOnce(ctx))

	// Second run finds the blob and does nothing.
	assert.Equal(t, int64(1), m.MonthsMigrated())
}

func TestDryRunKeepsHotRows(t *testing.T) {
	ctx := context.Background()
	m, hot, cold := newMigrator(t, coldstore.NewMemoryClient())
	m.DryRun = true

	a := soldAuction("X", time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC), 100)
	require.NoError(t, hot.Insert(ctx, a))

	require.NoError(t, m.RunOnce(ctx))

	exists, err := cold.MonthExists(ctx, "X", 2023, 2)
	require.NoError(t, err)
	assert.True(t, exists)

	versions, err := hot.GetByUUID(ctx, a.UUID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

// truncatingClient corrupts month blobs on write so verification's
// readback fails.
type truncatingClient struct {
	*coldstore.MemoryClient
}

func (c *truncatingClient) Put(ctx context.Context, key string, body []byte, metadata map[string]string) error {
	if strings.HasPrefix(key, "auctions/") {
		body = body[:len(body)/2]
	}
	return c.MemoryClient.Put(ctx, key, body, metadata)
}

func TestVerificationFailurePreservesHotRows(t *testing.T) {
	ctx := context.Background()
	m, hot, _ := newMigrator(t, &truncatingClient{coldstore.NewMemoryClient()})

	a := soldAuction("X", time.Date(2023, 4, 10, 0, 0, 0, 0, time.UTC), 100)
	require.NoError(t, hot.Insert(ctx, a))

	err := m.RunOnce(ctx)
	require.Error(t, err)
	assert.Equal(t, int64(1), m.VerificationFailures())

	// Nothing was deleted.
	versions, err := hot.GetByUUID(ctx, a.UUID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestVerifyCatchesMissingUUID(t *testing.T) {
	ctx := context.Background()
	m, _, cold := newMigrator(t, coldstore.NewMemoryClient())

	rows := []auction.Auction{
		soldAuction("X", time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC), 100),
		soldAuction("X", time.Date(2023, 5, 3, 0, 0, 0, 0, time.UTC), 200),
	}
	// Seal a blob missing one row, then verify against the full set.
	require.NoError(t, cold.StoreMonth(ctx, "X", 2023, 5, rows[:1]))
	require.Error(t, m.verify(ctx, "X", 2023, 5, rows))
}
