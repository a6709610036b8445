package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineFillsDefaultsFromLaterVersions(t *testing.T) {
	id := uuid.New()
	seller := uuid.New()
	profile := uuid.New()

	sold := Auction{
		UUID:       id,
		Tag:        "DIAMOND_SWORD",
		SellerUUID: seller,
		HighestBid: 500,
		End:        time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
		IsSold:     true,
		Bids:       []Bid{{BidderUUID: uuid.New(), Amount: 500}},
	}
	listed := Auction{
		UUID:        id,
		Tag:         "DIAMOND_SWORD",
		SellerUUID:  seller,
		ProfileID:   profile,
		Category:    "WEAPON",
		StartingBid: 100,
		Start:       time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC),
		CoopMembers: []uuid.UUID{uuid.New()},
		Bids:        []Bid{{BidderUUID: uuid.New(), Amount: 250}},
	}

	combined := Combine([]Auction{sold, listed})
	require.NotNil(t, combined)

	assert.Equal(t, profile, combined.ProfileID)
	assert.Equal(t, "WEAPON", combined.Category)
	assert.Equal(t, int64(100), combined.StartingBid)
	assert.Equal(t, listed.Start, combined.Start)
	assert.Len(t, combined.CoopMembers, 1)
	assert.True(t, combined.IsSold)
	assert.Len(t, combined.Bids, 2)
}

func TestCombineDedupsBidsByAmount(t *testing.T) {
	id := uuid.New()
	seller := uuid.New()
	bid := Bid{BidderUUID: uuid.New(), Amount: 1_000_000}

	a := Auction{UUID: id, SellerUUID: seller, Bids: []Bid{bid}}
	b := Auction{UUID: id, SellerUUID: seller, Bids: []Bid{bid, {BidderUUID: uuid.New(), Amount: 750_000}}}

	combined := Combine([]Auction{a, b})
	require.NotNil(t, combined)
	assert.Len(t, combined.Bids, 2)
}

func TestCombineDropsCorruptSellerEqualsUUID(t *testing.T) {
	id := uuid.New()

	corrupt := Auction{UUID: id, SellerUUID: id, Category: "WEAPON"}
	good := Auction{UUID: id, SellerUUID: uuid.New()}

	combined := Combine([]Auction{corrupt, good})
	require.NotNil(t, combined)
	assert.Equal(t, good.SellerUUID, combined.SellerUUID)
	assert.Empty(t, combined.Category)

	assert.Nil(t, Combine([]Auction{corrupt}))
}
