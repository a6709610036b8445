package ingest

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/hotstore"
)

// retrofitWindow bounds how far back a sold event still gets enriched
// from its listing row.
const retrofitWindow = 14 * 24 * time.Hour

// Retrofit enriches sparse records in place: a record with no start
// time that ended within the retrofit window originated from a sold
// event, which lacks the listing metadata. The earlier listed version
// of the same uuid supplies start, count, item-created-at, item name,
// profile id, bin, and starting bid. A record that cannot be retrofit
// is inserted as-is: a failed lookup is logged, never fatal; a record
// with no listed version is left unchanged without a log line.
func Retrofit(ctx context.Context, store hotstore.Store, batch []auction.Auction, now time.Time) {
	for i := range batch {
		rec := &batch[i]
		if !rec.Start.IsZero() || rec.End.Before(now.Add(-retrofitWindow)) {
			continue
		}

		versions, err := store.GetByUUID(ctx, rec.UUID)
		if err != nil {
			log.Printf("ingest: retrofit lookup %s failed: %v", rec.UUID, err)
			continue
		}

		var listed *auction.Auction
		for j := range versions {
			if !versions[j].Start.IsZero() {
				listed = &versions[j]
				break
			}
		}
		if listed == nil {
			continue
		}

		rec.Start = listed.Start
		if rec.Count == 0 {
			rec.Count = listed.Count
		}
		if rec.ItemCreatedAt.IsZero() {
			rec.ItemCreatedAt = listed.ItemCreatedAt
		}
		if rec.ItemName == "" {
			rec.ItemName = listed.ItemName
		}
		if rec.ProfileID == uuid.Nil {
			rec.ProfileID = listed.ProfileID
		}
		if !rec.BIN {
			rec.BIN = listed.BIN
		}
		if rec.StartingBid == 0 {
			rec.StartingBid = listed.StartingBid
		}
	}
}
