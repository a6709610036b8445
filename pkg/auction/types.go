// Package auction defines the core auction/bid domain types, time-bucket
// mapping, and the codec between ingest records and stored records.
package auction

import (
	"time"

	"github.com/google/uuid"
)

// Bid is a single bid placed against an auction.
type Bid struct {
	BidderUUID uuid.UUID `json:"bidder_uuid"`
	ProfileID  uuid.UUID `json:"profile_id"`
	Amount     int64     `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// Auction is the canonical in-memory representation of one auction
// version. Multiple versions of the same UUID can coexist in the hot
// store (one from "listed", one from "sold") until combined by the
// query engine.
type Auction struct {
	UUID      uuid.UUID `json:"uuid"`
	Tag       string    `json:"item_tag"`
	ItemName  string    `json:"item_name"`
	Category  string    `json:"category"`
	Tier      string    `json:"tier"`
	BIN       bool      `json:"bin"`

	StartingBid   int64 `json:"starting_bid"`
	HighestBid    int64 `json:"highest_bid"`
	HighestBidder uuid.UUID `json:"highest_bidder"`

	SellerUUID   uuid.UUID   `json:"seller_uuid"`
	ProfileID    uuid.UUID   `json:"profile_id"`
	CoopMembers  []uuid.UUID `json:"coop_members,omitempty"`

	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	ItemCreatedAt time.Time `json:"item_created_at"`

	RawItemBytes []byte            `json:"raw_item_bytes,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Enchantments map[string]int    `json:"enchantments,omitempty"`

	Count int    `json:"count"`
	Color string `json:"color"`

	ItemUID  int64     `json:"item_uid"`
	ItemUUID uuid.UUID `json:"item_uuid"`
	IsSold   bool      `json:"is_sold"`

	Bids []Bid `json:"bids,omitempty"`
}

// StoredAuction is the wire/storage shape produced by Encode. It has no
// derived fields recomputed on read: decoding a StoredAuction back into
// an Auction is a pure projection.
type StoredAuction struct {
	UUID     uuid.UUID `json:"uuid"`
	Tag      string    `json:"item_tag"`
	ItemName string    `json:"item_name"`
	Category string    `json:"category"`
	Tier     string    `json:"tier"`
	BIN      bool      `json:"bin"`

	StartingBid   int64     `json:"starting_bid"`
	HighestBid    int64     `json:"highest_bid"`
	HighestBidder uuid.UUID `json:"highest_bidder"`

	SellerUUID  uuid.UUID   `json:"seller_uuid"`
	ProfileID   uuid.UUID   `json:"profile_id"`
	CoopMembers []uuid.UUID `json:"coop_members,omitempty"`

	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	ItemCreatedAt time.Time `json:"item_created_at"`

	RawItemBytes []byte            `json:"raw_item_bytes,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Enchantments map[string]int    `json:"enchantments,omitempty"`

	Count int    `json:"count"`
	Color string `json:"color"`

	ItemUID  int64     `json:"item_uid"`
	ItemUUID uuid.UUID `json:"item_uuid"`
	IsSold   bool      `json:"is_sold"`

	TimeKey int16 `json:"time_key"`

	Bids []Bid `json:"bids,omitempty"`
}

// TimeKey is the 16-bit partitioning dimension used with tag to bound
// wide-column scan width.
type TimeKey = int16
