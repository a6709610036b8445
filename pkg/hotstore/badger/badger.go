// Package badger implements hotstore.Store on BadgerDB (LSM tree). The
// wide-column layout is emulated with sortable composite keys: the
// partition dimensions (tag, time_key) lead the key, the clustering
// dimensions (is_sold, end, uuid) follow, so a tag-scoped bucket scan is
// a single prefix iteration.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"

	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/filter"
	"github.com/sbauctions/archive/pkg/hotstore"
)

// Key prefixes. Auction rows sort by (tag, time_key, is_sold, end,
// uuid); the u/s/h/i prefixes are the secondary indexes and store the
// primary key as their value; bid rows partition by bidder.
const (
	prefixAuction   = 'a' // tag \x00 time_key(2) is_sold(1) end(8) uuid(16) -> row
	prefixUUIDIdx   = 'u' // uuid(16) primary -> primary key
	prefixSellerIdx = 's' // seller(16) end(8) primary -> primary key
	prefixBidderIdx = 'h' // highest_bidder(16) end(8) primary -> primary key
	prefixItemIdx   = 'i' // item_uid(8) primary -> primary key
	prefixBid       = 'b' // bidder(16) ts(8) auction(16) amount(8) -> bid
	prefixBidIdx    = 'B' // auction(16) bidder(16) ts(8) amount(8) -> bid key
	prefixTag       = 't' // tag -> nil
	prefixSummary   = 'm' // tag \x00 filter_hash(8) day(8) -> summary row
)

// Storage implements hotstore.Store using BadgerDB.
type Storage struct {
	db *badger.DB
}

// Config holds BadgerDB configuration.
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = defaults)
	MaxMemoryMB int64
}

// New opens a BadgerDB-backed hot store.
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// Memory bounds: badger's defaults assume a dedicated box. The
	// memtable/cache split keeps a steady write firehose from growing
	// the heap unbounded.
	var memTableSize int64
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	} else {
		memTableSize = 16 * 1024 * 1024
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithValueThreshold(1024).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close shuts down BadgerDB cleanly.
func (s *Storage) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection. Returns badger's
// ErrNoRewrite when nothing needed collecting.
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// update runs fn in a write transaction, honoring ctx cancellation even
// while badger blocks.
func (s *Storage) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(fn)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("write operation cancelled: %w", ctx.Err())
	}
}

// view runs fn in a read transaction, honoring ctx cancellation.
func (s *Storage) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- s.db.View(fn)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("read operation cancelled: %w", ctx.Err())
	}
}

// --- key encoding ---

func auctionKey(tag string, timeKey int16, isSold bool, end time.Time, id uuid.UUID) []byte {
	key := make([]byte, 0, 1+len(tag)+1+2+1+8+16)
	key = append(key, prefixAuction)
	key = append(key, tag...)
	key = append(key, 0)
	key = binary.BigEndian.AppendUint16(key, uint16(timeKey))
	if isSold {
		key = append(key, 1)
	} else {
		key = append(key, 0)
	}
	key = binary.BigEndian.AppendUint64(key, uint64(end.UnixNano()))
	key = append(key, id[:]...)
	return key
}

func bucketPrefix(tag string, timeKey int16) []byte {
	key := make([]byte, 0, 1+len(tag)+1+2)
	key = append(key, prefixAuction)
	key = append(key, tag...)
	key = append(key, 0)
	key = binary.BigEndian.AppendUint16(key, uint16(timeKey))
	return key
}

// Index keys embed the full primary key so two versions of the same
// auction (listing and sale differ in is_sold) keep distinct entries.

func uuidIdxKey(id uuid.UUID, primary []byte) []byte {
	key := make([]byte, 0, 1+16+len(primary))
	key = append(key, prefixUUIDIdx)
	key = append(key, id[:]...)
	key = append(key, primary...)
	return key
}

func refIdxKey(prefix byte, owner uuid.UUID, end time.Time, primary []byte) []byte {
	key := make([]byte, 0, 1+16+8+len(primary))
	key = append(key, prefix)
	key = append(key, owner[:]...)
	key = binary.BigEndian.AppendUint64(key, uint64(end.UnixNano()))
	key = append(key, primary...)
	return key
}

func itemIdxKey(itemUID int64, primary []byte) []byte {
	key := make([]byte, 0, 1+8+len(primary))
	key = append(key, prefixItemIdx)
	key = binary.BigEndian.AppendUint64(key, uint64(itemUID))
	key = append(key, primary...)
	return key
}

func bidKey(b auction.Bid, auctionUUID uuid.UUID) []byte {
	key := make([]byte, 0, 1+16+8+16+8)
	key = append(key, prefixBid)
	key = append(key, b.BidderUUID[:]...)
	key = binary.BigEndian.AppendUint64(key, uint64(b.Timestamp.UnixNano()))
	key = append(key, auctionUUID[:]...)
	key = binary.BigEndian.AppendUint64(key, uint64(b.Amount))
	return key
}

func bidIdxKey(b auction.Bid, auctionUUID uuid.UUID) []byte {
	key := make([]byte, 0, 1+16+16+8+8)
	key = append(key, prefixBidIdx)
	key = append(key, auctionUUID[:]...)
	key = append(key, b.BidderUUID[:]...)
	key = binary.BigEndian.AppendUint64(key, uint64(b.Timestamp.UnixNano()))
	key = binary.BigEndian.AppendUint64(key, uint64(b.Amount))
	return key
}

func tagKey(tag string) []byte {
	return append([]byte{prefixTag}, tag...)
}

func summaryKey(tag, filterKey string, day time.Time) []byte {
	key := make([]byte, 0, 1+len(tag)+1+8+8)
	key = append(key, prefixSummary)
	key = append(key, tag...)
	key = append(key, 0)
	key = binary.BigEndian.AppendUint64(key, xxhash.Sum64String(filterKey))
	key = binary.BigEndian.AppendUint64(key, uint64(day.Unix()))
	return key
}

func encodeRow(rec auction.StoredAuction) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRow(data []byte) (auction.StoredAuction, error) {
	var rec auction.StoredAuction
	err := json.Unmarshal(data, &rec)
	return rec, err
}

// --- writes ---

// Insert writes one auction plus its bids. The exists-check reads the
// exact (tag, time_key, is_sold, end, uuid) coordinate: a row already
// there with the same seller makes the insert a no-op, so at-least-once
// redelivery is safe; a different seller overwrites deterministically.
func (s *Storage) Insert(ctx context.Context, a auction.Auction) error {
	rec := auction.Encode(a)
	return s.update(ctx, func(txn *badger.Txn) error {
		skip, err := existsSameSeller(txn, rec)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}
		return writeRecord(txn, rec)
	})
}

// InsertBatchSameTag writes a batch of auctions sharing one tag as a
// single transaction, mirroring an unlogged batch routed to one
// partition's coordinator.
func (s *Storage) InsertBatchSameTag(ctx context.Context, batch []auction.Auction) error {
	if len(batch) == 0 {
		return nil
	}
	tag := batch[0].Tag
	for _, a := range batch[1:] {
		if a.Tag != tag {
			return fmt.Errorf("hotstore: batch mixes tags %q and %q", tag, a.Tag)
		}
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		for i, a := range batch {
			if i%100 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}
			rec := auction.Encode(a)
			skip, err := existsSameSeller(txn, rec)
			if err != nil {
				return err
			}
			if skip {
				continue
			}
			if err := writeRecord(txn, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertBids writes standalone bid rows for one auction, without an
// accompanying auction row.
func (s *Storage) InsertBids(ctx context.Context, auctionUUID uuid.UUID, bids []auction.Bid) error {
	if len(bids) == 0 {
		return nil
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		for _, b := range bids {
			if err := writeBid(txn, auctionUUID, b); err != nil {
				return err
			}
		}
		return nil
	})
}

func existsSameSeller(txn *badger.Txn, rec auction.StoredAuction) (bool, error) {
	key := auctionKey(rec.Tag, rec.TimeKey, rec.IsSold, rec.End, rec.UUID)
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var existing auction.StoredAuction
	if err := item.Value(func(val []byte) error {
		var derr error
		existing, derr = decodeRow(val)
		return derr
	}); err != nil {
		return false, err
	}
	return existing.SellerUUID == rec.SellerUUID, nil
}

func writeRecord(txn *badger.Txn, rec auction.StoredAuction) error {
	value, err := encodeRow(rec)
	if err != nil {
		return fmt.Errorf("failed to encode auction: %w", err)
	}

	primary := auctionKey(rec.Tag, rec.TimeKey, rec.IsSold, rec.End, rec.UUID)
	if err := txn.Set(primary, value); err != nil {
		return fmt.Errorf("failed to write auction: %w", err)
	}

	if err := txn.Set(uuidIdxKey(rec.UUID, primary), primary); err != nil {
		return err
	}
	if err := txn.Set(refIdxKey(prefixSellerIdx, rec.SellerUUID, rec.End, primary), primary); err != nil {
		return err
	}
	if err := txn.Set(refIdxKey(prefixBidderIdx, rec.HighestBidder, rec.End, primary), primary); err != nil {
		return err
	}
	if err := txn.Set(itemIdxKey(rec.ItemUID, primary), primary); err != nil {
		return err
	}
	if err := txn.Set(tagKey(rec.Tag), nil); err != nil {
		return err
	}

	for _, b := range rec.Bids {
		if err := writeBid(txn, rec.UUID, b); err != nil {
			return err
		}
	}
	return nil
}

func writeBid(txn *badger.Txn, auctionUUID uuid.UUID, b auction.Bid) error {
	value, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bid: %w", err)
	}
	key := bidKey(b, auctionUUID)
	if err := txn.Set(key, value); err != nil {
		return fmt.Errorf("failed to write bid: %w", err)
	}
	return txn.Set(bidIdxKey(b, auctionUUID), key)
}

// --- reads ---

// GetByUUID returns every stored version of auctionUUID via the uuid
// secondary index. An auction ingested from both the listing and the
// sale events has two versions.
func (s *Storage) GetByUUID(ctx context.Context, auctionUUID uuid.UUID) ([]auction.Auction, error) {
	var out []auction.Auction
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := append([]byte{prefixUUIDIdx}, auctionUUID[:]...)
		rows, err := collectByIndex(txn, prefix)
		if err != nil {
			return err
		}
		out = rows
		return nil
	})
	return out, err
}

// GetCombined folds every version of auctionUUID, plus any standalone
// bid rows written by the live consumer, into one record.
func (s *Storage) GetCombined(ctx context.Context, auctionUUID uuid.UUID) (*auction.Auction, error) {
	versions, err := s.GetByUUID(ctx, auctionUUID)
	if err != nil {
		return nil, err
	}
	combined := auction.Combine(versions)
	if combined == nil {
		return nil, nil
	}

	extra, err := s.bidsByAuction(ctx, auctionUUID)
	if err != nil {
		return nil, err
	}
	if len(extra) > 0 {
		with := *combined
		with.Bids = extra
		if merged := auction.Combine([]auction.Auction{*combined, with}); merged != nil {
			combined = merged
		}
	}
	return combined, nil
}

// bidsByAuction reads the standalone bid partition through its
// auction_uuid index.
func (s *Storage) bidsByAuction(ctx context.Context, auctionUUID uuid.UUID) ([]auction.Bid, error) {
	var out []auction.Bid
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = append([]byte{prefixBidIdx}, auctionUUID[:]...)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var bidRowKey []byte
			if err := it.Item().Value(func(val []byte) error {
				bidRowKey = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}
			item, err := txn.Get(bidRowKey)
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				var b auction.Bid
				if err := json.Unmarshal(val, &b); err != nil {
					return err
				}
				out = append(out, b)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// RecentBySeller returns the seller's auctions ending in
// [before-30d, before), newest first.
func (s *Storage) RecentBySeller(ctx context.Context, seller uuid.UUID, before time.Time, limit int) ([]auction.Auction, error) {
	cutoff := before.Add(-30 * 24 * time.Hour)
	var out []auction.Auction
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = append([]byte{prefixSellerIdx}, seller[:]...)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek key past the prefix range.
		seek := append(append([]byte{prefixSellerIdx}, seller[:]...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		for it.Seek(seek); it.Valid(); it.Next() {
			a, err := loadByIndexItem(txn, it.Item())
			if err != nil {
				return err
			}
			if a == nil {
				continue
			}
			if !a.End.Before(before) {
				continue
			}
			if a.End.Before(cutoff) {
				break
			}
			out = append(out, *a)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func collectByIndex(txn *badger.Txn, prefix []byte) ([]auction.Auction, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []auction.Auction
	for it.Rewind(); it.Valid(); it.Next() {
		a, err := loadByIndexItem(txn, it.Item())
		if err != nil {
			return nil, err
		}
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

// loadByIndexItem follows one secondary-index entry to its primary row.
// A dangling entry (row deleted, index sweep pending) is skipped.
func loadByIndexItem(txn *badger.Txn, item *badger.Item) (*auction.Auction, error) {
	var primary []byte
	if err := item.Value(func(val []byte) error {
		primary = append([]byte(nil), val...)
		return nil
	}); err != nil {
		return nil, err
	}
	row, err := txn.Get(primary)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var a auction.Auction
	if err := row.Value(func(val []byte) error {
		rec, derr := decodeRow(val)
		if derr != nil {
			return derr
		}
		a = auction.Decode(rec)
		return nil
	}); err != nil {
		return nil, err
	}
	return &a, nil
}

// --- range scans ---

// rangeIterator walks buckets from high to low, buffering one bucket at
// a time sorted by end descending. It is lazy across buckets, finite,
// and non-restartable.
type rangeIterator struct {
	s      *Storage
	tag    string
	t0, t1 time.Time
	isSold *bool
	limit  int

	bucket  int16
	low     int16
	buf     []auction.Auction
	pos     int
	emitted int
	closed  bool
}

// Range scans tag with end in (t0, t1], descending by bucket then end.
func (s *Storage) Range(ctx context.Context, tag string, t0, t1 time.Time, isSold *bool, limit int) (hotstore.Iterator, error) {
	high := auction.Bucket(tag, t1)
	low := auction.Bucket(tag, t0)
	if low > high {
		low, high = high, low
	}
	return &rangeIterator{
		s:      s,
		tag:    tag,
		t0:     t0,
		t1:     t1,
		isSold: isSold,
		limit:  limit,
		bucket: high,
		low:    low,
	}, nil
}

func (r *rangeIterator) Next(ctx context.Context) (auction.Auction, bool, error) {
	if r.closed {
		return auction.Auction{}, false, nil
	}
	for {
		if r.limit > 0 && r.emitted >= r.limit {
			return auction.Auction{}, false, nil
		}
		if r.pos < len(r.buf) {
			a := r.buf[r.pos]
			r.pos++
			r.emitted++
			return a, true, nil
		}
		if r.bucket < r.low {
			return auction.Auction{}, false, nil
		}
		if err := r.fill(ctx); err != nil {
			return auction.Auction{}, false, err
		}
	}
}

// fill loads the current bucket into the buffer and steps down.
func (r *rangeIterator) fill(ctx context.Context) error {
	bucket := r.bucket
	r.bucket--
	r.buf = r.buf[:0]
	r.pos = 0

	return r.s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = bucketPrefix(r.tag, bucket)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				rec, derr := decodeRow(val)
				if derr != nil {
					return derr
				}
				if r.isSold != nil && rec.IsSold != *r.isSold {
					return nil
				}
				if !rec.End.After(r.t0) || rec.End.After(r.t1) {
					return nil
				}
				r.buf = append(r.buf, auction.Decode(rec))
				return nil
			}); err != nil {
				return err
			}
		}
		sort.SliceStable(r.buf, func(i, j int) bool {
			return r.buf[i].End.After(r.buf[j].End)
		})
		return nil
	})
}

func (r *rangeIterator) Close() error {
	r.closed = true
	r.buf = nil
	return nil
}

// --- aggregates & summaries ---

// DailyAggregate reads the sold auctions of one day, applies pred, and
// computes the summary statistics over their highest bids.
func (s *Storage) DailyAggregate(ctx context.Context, tag string, pred filter.Predicate, day time.Time) (hotstore.Aggregate, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	sold := true
	it, err := s.Range(ctx, tag, dayStart, dayEnd, &sold, 0)
	if err != nil {
		return hotstore.Aggregate{}, err
	}
	defer it.Close()

	var prices []int64
	for {
		a, ok, err := it.Next(ctx)
		if err != nil {
			return hotstore.Aggregate{}, err
		}
		if !ok {
			break
		}
		if pred != nil && !pred(&a) {
			continue
		}
		prices = append(prices, a.HighestBid)
	}
	return hotstore.ComputeAggregate(prices), nil
}

// ReadSummaries returns memoized daily aggregates for (tag, filterKey)
// with day in (start, end], ascending.
func (s *Storage) ReadSummaries(ctx context.Context, tag, filterKey string, start, end time.Time) ([]hotstore.SummaryRow, error) {
	var out []hotstore.SummaryRow
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := make([]byte, 0, 1+len(tag)+1+8)
		prefix = append(prefix, prefixSummary)
		prefix = append(prefix, tag...)
		prefix = append(prefix, 0)
		prefix = binary.BigEndian.AppendUint64(prefix, xxhash.Sum64String(filterKey))

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				var row hotstore.SummaryRow
				if err := json.Unmarshal(val, &row); err != nil {
					return err
				}
				if !row.Day.After(start) || row.Day.After(end) {
					return nil
				}
				out = append(out, row)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, err
}

// WriteSummary stores one daily aggregate row.
func (s *Storage) WriteSummary(ctx context.Context, row hotstore.SummaryRow) error {
	value, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(summaryKey(row.Tag, row.FilterKey, row.Day), value)
	})
}

// --- deletes & maintenance ---

// DeleteRowsMatching removes the given rows and their secondary-index
// entries. Bid rows are left in place; their partition is archived with
// the auction payload.
func (s *Storage) DeleteRowsMatching(ctx context.Context, rows []hotstore.RowKey) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		for i, rk := range rows {
			if i%100 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			primary := auctionKey(rk.Tag, rk.TimeKey, rk.IsSold, rk.End, rk.UUID)
			item, err := txn.Get(primary)
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var rec auction.StoredAuction
			if err := item.Value(func(val []byte) error {
				var derr error
				rec, derr = decodeRow(val)
				return derr
			}); err != nil {
				return err
			}

			if err := txn.Delete(primary); err != nil {
				return err
			}
			if err := txn.Delete(uuidIdxKey(rec.UUID, primary)); err != nil {
				return err
			}
			if err := txn.Delete(refIdxKey(prefixSellerIdx, rec.SellerUUID, rec.End, primary)); err != nil {
				return err
			}
			if err := txn.Delete(refIdxKey(prefixBidderIdx, rec.HighestBidder, rec.End, primary)); err != nil {
				return err
			}
			if err := txn.Delete(itemIdxKey(rec.ItemUID, primary)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DistinctTags enumerates every tag that has ever had a row.
func (s *Storage) DistinctTags(ctx context.Context) ([]string, error) {
	var out []string
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixTag}
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, string(it.Item().Key()[1:]))
		}
		return nil
	})
	return out, err
}
