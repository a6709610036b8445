package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/bus"
	"github.com/sbauctions/archive/pkg/config"
	"github.com/sbauctions/archive/pkg/hotstore"
)

// Group chunking for the parallel insert fan-outs.
const (
	tagGroupsPerTask    = 10
	bidderGroupsPerTask = 20
)

// Live consumes the sold/new auction topics after the historical
// migration completes and writes batches through InsertSells. A batch
// that errors is logged and Run moves on to the next one; Subscribe has
// no acknowledgement, so the failure is not reported back to the bus.
// The exists-check makes any redelivery idempotent.
type Live struct {
	bus   bus.Bus
	store hotstore.Store
	feed  *SalesHub

	topicSold string
	topicNew  string
	degree    int

	// now is swappable for tests.
	now func() time.Time
}

// NewLive builds the consumer. feed may be nil when the push feed is
// disabled.
func NewLive(b bus.Bus, store hotstore.Store, feed *SalesHub, topicSold, topicNew string) *Live {
	return &Live{
		bus:       b,
		store:     store,
		feed:      feed,
		topicSold: topicSold,
		topicNew:  topicNew,
		degree:    config.DefaultParallelDegree,
		now:       time.Now,
	}
}

// Run subscribes both topics and processes batches until ctx ends.
func (l *Live) Run(ctx context.Context) error {
	sold, err := l.bus.Subscribe(ctx, l.topicSold, config.BusBatchSize)
	if err != nil {
		return fmt.Errorf("ingest: subscribing %s: %w", l.topicSold, err)
	}
	listed, err := l.bus.Subscribe(ctx, l.topicNew, config.BusBatchSize)
	if err != nil {
		return fmt.Errorf("ingest: subscribing %s: %w", l.topicNew, err)
	}

	log.Printf("ingest: live consumer started (group %s, batch %d)", bus.ConsumerGroup, config.BusBatchSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-sold:
			if !ok {
				return nil
			}
			if err := l.handleBatch(ctx, batch); err != nil {
				log.Printf("ingest: sold batch failed, leaving for redelivery: %v", err)
			}
		case batch, ok := <-listed:
			if !ok {
				return nil
			}
			if err := l.handleBatch(ctx, batch); err != nil {
				log.Printf("ingest: listed batch failed, leaving for redelivery: %v", err)
			}
		}
	}
}

func (l *Live) handleBatch(ctx context.Context, batch bus.Batch) error {
	records := make([]auction.Auction, 0, len(batch))
	for _, msg := range batch {
		var a auction.Auction
		if err := json.Unmarshal(msg, &a); err != nil {
			log.Printf("ingest: dropping undecodable message: %v", err)
			continue
		}
		records = append(records, a)
	}
	return l.InsertSells(ctx, records)
}

// InsertSells writes one decoded batch: two parallel fan-outs of
// bounded degree, one over per-tag auction groups (chunked ten groups
// per task), one over per-bidder bid groups (chunked twenty per task).
// An error in any group fails the whole batch.
func (l *Live) InsertSells(ctx context.Context, records []auction.Auction) error {
	if len(records) == 0 {
		return nil
	}
	now := l.now()

	byTag := make(map[string][]auction.Auction)
	for _, a := range records {
		byTag[a.Tag] = append(byTag[a.Tag], a)
	}
	tagGroups := make([][]auction.Auction, 0, len(byTag))
	for _, group := range byTag {
		tagGroups = append(tagGroups, group)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.degree)
	for start := 0; start < len(tagGroups); start += tagGroupsPerTask {
		chunk := tagGroups[start:min(start+tagGroupsPerTask, len(tagGroups))]
		g.Go(func() error {
			for _, group := range chunk {
				Retrofit(gctx, l.store, group, now)
				if err := l.store.InsertBatchSameTag(gctx, group); err != nil {
					log.Printf("ingest: tag group %q insert failed: %v", group[0].Tag, err)
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	byBidder := make(map[uuid.UUID][]BidRef)
	for _, a := range records {
		for _, b := range a.Bids {
			byBidder[b.BidderUUID] = append(byBidder[b.BidderUUID], BidRef{Auction: a.UUID, Bid: b})
		}
	}
	bidderGroups := make([][]BidRef, 0, len(byBidder))
	for _, group := range byBidder {
		bidderGroups = append(bidderGroups, group)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(l.degree)
	for start := 0; start < len(bidderGroups); start += bidderGroupsPerTask {
		chunk := bidderGroups[start:min(start+bidderGroupsPerTask, len(bidderGroups))]
		g.Go(func() error {
			for _, group := range chunk {
				if err := insertBidRefs(gctx, l.store, group); err != nil {
					log.Printf("ingest: bidder group insert failed: %v", err)
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	l.broadcastSold(records)
	return nil
}

// broadcastSold pushes freshly sold auctions to websocket clients.
func (l *Live) broadcastSold(records []auction.Auction) {
	if l.feed == nil || !l.feed.HasClients() {
		return
	}
	var sold []auction.Auction
	for _, a := range records {
		if a.HighestBid > 0 || len(a.Bids) > 0 {
			sold = append(sold, a)
		}
	}
	if len(sold) == 0 {
		return
	}
	if err := l.feed.Broadcast(map[string]interface{}{
		"type":     "sales_update",
		"count":    len(sold),
		"auctions": sold,
	}); err != nil {
		log.Printf("ingest: broadcasting sales update failed: %v", err)
	}
}

// min returns the minimum of two integers.
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
