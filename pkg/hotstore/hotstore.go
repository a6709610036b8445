// Package hotstore defines the wide-column hot store abstraction:
// batched inserts, an exists-check for idempotent writes, tag-scoped
// time-range scans, and secondary-index lookups by auction uuid,
// seller, and highest bidder.
package hotstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/filter"
)

// Aggregate is the result of DailyAggregate: max/min/median/mean/mode
// over the matching auctions' highest bid, plus the volume (count).
type Aggregate struct {
	Max    int64   `json:"max"`
	Min    int64   `json:"min"`
	Median int64   `json:"median"`
	Mean   float64 `json:"mean"`
	Mode   int64   `json:"mode"`
	Volume int     `json:"volume"`
}

// SummaryRow is one memoized daily aggregate, keyed by
// (tag, filter_key) with the day as the clustering dimension. Rows are
// immutable once a day is finalized; concurrent recomputes write
// identical content.
type SummaryRow struct {
	Tag       string            `json:"tag"`
	FilterKey string            `json:"filter_key"`
	Day       time.Time         `json:"day"`
	Filters   map[string]string `json:"filters,omitempty"`
	Aggregate Aggregate         `json:"aggregate"`
}

// RowKey identifies one stored auction row
// (tag, time_key, is_sold, end, auction_uuid) for deletion by the
// archive migrator.
type RowKey struct {
	Tag     string
	TimeKey int16
	IsSold  bool
	End     time.Time
	UUID    uuid.UUID
}

// Iterator is the lazy, finite, non-restartable stream a range scan
// returns. Callers must Close it when done, whether or not they
// exhaust it.
type Iterator interface {
	// Next advances and reports the next auction, or ok=false when the
	// stream is exhausted (err is nil in that case).
	Next(ctx context.Context) (a auction.Auction, ok bool, err error)
	Close() error
}

// Store is the hot store's public surface.
type Store interface {
	// Insert writes one auction plus its bids. If a version of the same
	// uuid already exists with the same seller, Insert is a no-op
	// (idempotent at-least-once write).
	Insert(ctx context.Context, a auction.Auction) error

	// InsertBatchSameTag writes a batch of auctions that all share a
	// single tag as one unlogged-style batch. Callers are expected to
	// have already applied retrofit (pkg/ingest) before calling this.
	InsertBatchSameTag(ctx context.Context, batch []auction.Auction) error

	// InsertBids writes standalone bid rows, grouped by bidder, without
	// an accompanying auction row (used by the live consumer's bid
	// micro-batches).
	InsertBids(ctx context.Context, auctionUUID uuid.UUID, bids []auction.Bid) error

	// Range scans tag in (t0, t1], descending by bucket, optionally
	// filtered by is_sold, up to limit results.
	Range(ctx context.Context, tag string, t0, t1 time.Time, isSold *bool, limit int) (Iterator, error)

	// GetByUUID returns every stored version of auctionUUID.
	GetByUUID(ctx context.Context, auctionUUID uuid.UUID) ([]auction.Auction, error)

	// GetCombined returns every version of auctionUUID folded into one
	// record per the combine-versions rule (auction.Combine).
	GetCombined(ctx context.Context, auctionUUID uuid.UUID) (*auction.Auction, error)

	// RecentBySeller returns auctions by seller ending in
	// [before-30d, before).
	RecentBySeller(ctx context.Context, seller uuid.UUID, before time.Time, limit int) ([]auction.Auction, error)

	// DailyAggregate reads the sold auctions ending within that day
	// (from every bucket the day overlaps), applies pred, and computes
	// the summary statistics for that day.
	DailyAggregate(ctx context.Context, tag string, pred filter.Predicate, day time.Time) (Aggregate, error)

	// ReadSummaries returns the memoized daily aggregates for
	// (tag, filterKey) with day in (start, end], ascending by day.
	ReadSummaries(ctx context.Context, tag, filterKey string, start, end time.Time) ([]SummaryRow, error)

	// WriteSummary stores one daily aggregate. Writing the same
	// (tag, filter_key, day) twice is a last-writer-wins overwrite of
	// identical content.
	WriteSummary(ctx context.Context, row SummaryRow) error

	// DeleteRowsMatching removes the given rows (used by the archive
	// migrator only after verification succeeds).
	DeleteRowsMatching(ctx context.Context, rows []RowKey) error

	// DistinctTags enumerates every tag with at least one stored row
	// (used by the archive migrator to iterate tags).
	DistinctTags(ctx context.Context) ([]string, error)

	Close() error
}
