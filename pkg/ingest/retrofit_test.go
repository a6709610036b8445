package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbauctions/archive/pkg/auction"
	badgerstore "github.com/sbauctions/archive/pkg/hotstore/badger"
)

func TestRetrofitFillsSoldEventFromListing(t *testing.T) {
	ctx := context.Background()
	store, err := badgerstore.New(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	end := now.Add(-24 * time.Hour)
	id := uuid.New()
	seller := uuid.New()

	listed := auction.Auction{
		UUID:        id,
		Tag:         "HYPERION",
		ItemName:    "Hyperion",
		SellerUUID:  seller,
		ProfileID:   uuid.New(),
		Start:       end.Add(-48 * time.Hour),
		End:         end,
		Count:       1,
		BIN:         true,
		StartingBid: 1_000_000,
	}
	require.NoError(t, store.Insert(ctx, listed))

	bidder := uuid.New()
	sold := auction.Auction{
		UUID:       id,
		Tag:        "HYPERION",
		SellerUUID: seller,
		End:        end,
		Bids:       []auction.Bid{{BidderUUID: bidder, ProfileID: bidder, Amount: 2_000_000, Timestamp: end}},
	}

	batch := []auction.Auction{sold}
	Retrofit(ctx, store, batch, now)

	assert.Equal(t, listed.Start, batch[0].Start)
	assert.Equal(t, "Hyperion", batch[0].ItemName)
	assert.Equal(t, listed.ProfileID, batch[0].ProfileID)
	assert.Equal(t, 1, batch[0].Count)
	assert.True(t, batch[0].BIN)
	assert.Equal(t, int64(1_000_000), batch[0].StartingBid)
}

func TestRetrofitSkipsOldAndComplete(t *testing.T) {
	ctx := context.Background()
	store, err := badgerstore.New(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)

	complete := auction.Auction{
		UUID:  uuid.New(),
		Tag:   "X",
		Start: now.Add(-48 * time.Hour),
		End:   now.Add(-24 * time.Hour),
	}
	tooOld := auction.Auction{
		UUID: uuid.New(),
		Tag:  "X",
		End:  now.Add(-30 * 24 * time.Hour),
	}

	batch := []auction.Auction{complete, tooOld}
	Retrofit(ctx, store, batch, now)

	// Neither record changed: one already had its listing data, the
	// other ended outside the retrofit window.
	assert.Equal(t, complete.Start, batch[0].Start)
	assert.True(t, batch[1].Start.IsZero())
}
