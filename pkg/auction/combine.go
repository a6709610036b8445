package auction

import (
	"sort"

	"github.com/google/uuid"
)

// Combine folds multiple stored versions of the same auction (one from
// the listing event, one from the sale) into a single record. Versions
// where seller == uuid are excluded up front - that pattern is a known
// corruption marker. Fields are filled with the first non-default value
// encountered in stable (input) order; bids are unioned with amount as
// the dedup key, equal amounts assumed to be the same bid observed
// twice.
func Combine(versions []Auction) *Auction {
	var kept []Auction
	for _, v := range versions {
		if v.SellerUUID == v.UUID {
			continue
		}
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		return nil
	}

	out := kept[0]
	for _, v := range kept[1:] {
		if len(out.CoopMembers) == 0 {
			out.CoopMembers = v.CoopMembers
		}
		if out.StartingBid == 0 {
			out.StartingBid = v.StartingBid
		}
		if out.Category == "" {
			out.Category = v.Category
		}
		if out.Start.IsZero() {
			out.Start = v.Start
		}
		if out.ProfileID == uuid.Nil {
			out.ProfileID = v.ProfileID
		}
		if out.ItemName == "" {
			out.ItemName = v.ItemName
		}
		if out.Tier == "" {
			out.Tier = v.Tier
		}
		if out.Count == 0 {
			out.Count = v.Count
		}
		if out.ItemCreatedAt.IsZero() {
			out.ItemCreatedAt = v.ItemCreatedAt
		}
		if !out.BIN {
			out.BIN = v.BIN
		}
		if out.HighestBid < v.HighestBid {
			out.HighestBid = v.HighestBid
			out.HighestBidder = v.HighestBidder
		}
		out.Bids = unionBids(out.Bids, v.Bids)
		if v.IsSold {
			out.IsSold = true
		}
	}

	sort.SliceStable(out.Bids, func(i, j int) bool {
		return out.Bids[i].Amount < out.Bids[j].Amount
	})
	return &out
}

// unionBids merges b into a, treating equal amounts as the same bid.
func unionBids(a, b []Bid) []Bid {
	seen := make(map[int64]bool, len(a))
	for _, bid := range a {
		seen[bid.Amount] = true
	}
	for _, bid := range b {
		if !seen[bid.Amount] {
			a = append(a, bid)
			seen[bid.Amount] = true
		}
	}
	return a
}
