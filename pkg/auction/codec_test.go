package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAuction() Auction {
	bidder := uuid.New()
	return Auction{
		UUID:        uuid.New(),
		Tag:         "DIAMOND_SWORD",
		ItemName:    "Diamond Sword",
		Category:    "weapon",
		Tier:        "EPIC",
		StartingBid: 100,
		SellerUUID:  uuid.New(),
		Start:       time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
		Attributes: map[string]string{
			"uid":   "1a2b3c",
			"color": "ff0000",
		},
		Enchantments: map[string]int{"sharpness": 5},
		Count:        1,
		Bids: []Bid{
			{BidderUUID: bidder, Amount: 1_000_000, Timestamp: time.Date(2024, 6, 15, 11, 0, 0, 0, time.UTC)},
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	a := sampleAuction()
	s := Encode(a)
	d := Decode(s)

	assert.Equal(t, a.UUID, d.UUID)
	assert.Equal(t, a.Tag, d.Tag)
	require.Len(t, d.Bids, 1)
	assert.Equal(t, a.Bids[0].Amount, d.Bids[0].Amount)
	assert.Equal(t, a.Enchantments, d.Enchantments)
	assert.Equal(t, a.Attributes, d.Attributes)
	assert.True(t, d.IsSold)
	assert.Equal(t, int64(1_000_000), d.HighestBid)
	assert.Equal(t, a.Bids[0].BidderUUID, d.HighestBidder)
}

func TestCodecDerivesNonZeroBidderWhenNoBids(t *testing.T) {
	a := sampleAuction()
	a.Bids = nil
	s := Encode(a)

	assert.NotEqual(t, uuid.Nil, s.HighestBidder)
	assert.False(t, s.IsSold)
}

func TestCodecDefaultsProfileIDToSeller(t *testing.T) {
	a := sampleAuction()
	a.ProfileID = uuid.Nil
	s := Encode(a)
	assert.Equal(t, a.SellerUUID, s.ProfileID)
}

func TestCodecItemUIDFallsBackToDeterministicRandom(t *testing.T) {
	a := sampleAuction()
	delete(a.Attributes, "uid")
	s1 := Encode(a)
	s2 := Encode(a)
	assert.Equal(t, s1.ItemUID, s2.ItemUID)
	assert.Greater(t, s1.ItemUID, int64(0))
}

func TestUnknownEnchantCollisionKeepsHighest(t *testing.T) {
	in := map[string]int{"unknown": 3}
	out := dedupUnknownEnchant(in)
	assert.Equal(t, 3, out["unknown"])
}
