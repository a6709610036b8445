package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/config"
	"github.com/sbauctions/archive/pkg/hotstore"
)

// Source pages the relational database being phased out, by
// primary-key window [offset, offset+limit).
type Source interface {
	Page(ctx context.Context, offset int64, limit int) ([]auction.Auction, error)
}

// BidRef pairs a bid with the auction it was placed on, for the
// standalone bid micro-batches.
type BidRef struct {
	Auction uuid.UUID
	Bid     auction.Bid
}

// Historical drains the legacy source into the hot store through the
// worker pool, checkpointing the import offset with a safety lag.
type Historical struct {
	source Source
	store  hotstore.Store
	pool   *Pool
	offset *Offset

	batchSize int

	// now is swappable for tests.
	now func() time.Time
}

// NewHistorical builds the migrator with the standard batch size.
func NewHistorical(source Source, store hotstore.Store, pool *Pool, offset *Offset) *Historical {
	return &Historical{
		source:    source,
		store:     store,
		pool:      pool,
		offset:    offset,
		batchSize: config.HistoricalBatchSize,
		now:       time.Now,
	}
}

// Run pages the source until empty. Each page is fanned into per-tag
// auction micro-batches and per-bidder bid micro-batches on the pool;
// a trailing task checkpoints the offset five batches behind the page
// so the checkpoint never overtakes in-flight work.
func (h *Historical) Run(ctx context.Context) error {
	off := h.offset.Get()
	log.Printf("ingest: historical migration starting at offset %d", off)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rows, err := h.source.Page(ctx, off, h.batchSize)
		if err != nil {
			return fmt.Errorf("ingest: paging source at %d: %w", off, err)
		}
		if len(rows) == 0 {
			break
		}

		h.enqueuePage(rows)

		checkpoint := off - int64(config.OffsetCheckpointLagBatches*h.batchSize)
		h.pool.Enqueue(func(ctx context.Context) error {
			return h.offset.Set(ctx, checkpoint)
		})

		off += int64(h.batchSize)
		h.applyBackpressure(ctx)
	}

	// Every page is enqueued; the trailing task moves the checkpoint to
	// the end of the source.
	h.pool.Enqueue(func(ctx context.Context) error {
		return h.offset.Force(ctx, off)
	})

	log.Printf("ingest: historical migration enqueued through offset %d", off)
	return nil
}

// enqueuePage splits one source page into micro-batches.
func (h *Historical) enqueuePage(rows []auction.Auction) {
	now := h.now()

	byTag := make(map[string][]auction.Auction)
	var bids []BidRef
	for _, a := range rows {
		byTag[a.Tag] = append(byTag[a.Tag], a)
		for _, b := range a.Bids {
			bids = append(bids, BidRef{Auction: a.UUID, Bid: b})
		}
	}

	for _, group := range byTag {
		for _, chunk := range chunkAuctions(group, config.AuctionMicroBatchSize) {
			chunk := chunk
			h.pool.Enqueue(func(ctx context.Context) error {
				Retrofit(ctx, h.store, chunk, now)
				return h.store.InsertBatchSameTag(ctx, chunk)
			})
		}
	}

	byBidder := make(map[uuid.UUID][]BidRef)
	for _, ref := range bids {
		byBidder[ref.Bid.BidderUUID] = append(byBidder[ref.Bid.BidderUUID], ref)
	}
	for _, group := range byBidder {
		for _, chunk := range chunkBids(group, config.BidMicroBatchSize) {
			chunk := chunk
			h.pool.Enqueue(func(ctx context.Context) error {
				return insertBidRefs(ctx, h.store, chunk)
			})
		}
	}
}

// applyBackpressure pauses paging while the queue is above the high
// watermark so the pool catches up.
func (h *Historical) applyBackpressure(ctx context.Context) {
	for h.pool.Len() > config.AuctionQueueHighWatermark {
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func insertBidRefs(ctx context.Context, store hotstore.Store, refs []BidRef) error {
	byAuction := make(map[uuid.UUID][]auction.Bid)
	for _, ref := range refs {
		byAuction[ref.Auction] = append(byAuction[ref.Auction], ref.Bid)
	}
	for id, group := range byAuction {
		if err := store.InsertBids(ctx, id, group); err != nil {
			return err
		}
	}
	return nil
}

func chunkAuctions(in []auction.Auction, size int) [][]auction.Auction {
	var out [][]auction.Auction
	for len(in) > size {
		out = append(out, in[:size])
		in = in[size:]
	}
	if len(in) > 0 {
		out = append(out, in)
	}
	return out
}

func chunkBids(in []BidRef, size int) [][]BidRef {
	var out [][]BidRef
	for len(in) > size {
		out = append(out, in[:size])
		in = in[size:]
	}
	if len(in) > 0 {
		out = append(out, in)
	}
	return out
}
