// Package coldstore is the object-storage archive: immutable monthly
// blobs per tag, covered by a hierarchical bloom index (one master
// filter over every archived uuid, one filter per tag) so a point
// lookup can skip most objects.
package coldstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/bloom"
)

// ErrNotFound is returned by ObjectClient.Get for a missing key.
var ErrNotFound = errors.New("coldstore: object not found")

// Bloom sizing. The master filter covers every archived uuid; per-tag
// filters are smaller and looser since a false positive only costs one
// extra blob scan.
const (
	MasterBloomCapacity = 100_000_000
	MasterBloomFPR      = 0.001

	TagBloomCapacity = 1_000_000
	TagBloomFPR      = 0.01
)

const (
	masterBloomKey = "index/master_bloom_0.bin"
	indexPrefix    = "index/"
)

// ObjectClient is the object-store boundary (S3 in production, Memory
// in tests).
type ObjectClient interface {
	// Put writes body under key with optional custom metadata.
	Put(ctx context.Context, key string, body []byte, metadata map[string]string) error

	// Get reads the object at key; ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Head reports whether key exists.
	Head(ctx context.Context, key string) (bool, error)

	// List returns every key under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Month identifies one archived month.
type Month struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Params sizes the bloom hierarchy. Zero values take the package
// defaults; tests shrink them to keep filter allocation cheap.
type Params struct {
	MasterCapacity uint64
	MasterFPR      float64
	TagCapacity    uint64
	TagFPR         float64
}

func (p Params) withDefaults() Params {
	if p.MasterCapacity == 0 {
		p.MasterCapacity = MasterBloomCapacity
	}
	if p.MasterFPR == 0 {
		p.MasterFPR = MasterBloomFPR
	}
	if p.TagCapacity == 0 {
		p.TagCapacity = TagBloomCapacity
	}
	if p.TagFPR == 0 {
		p.TagFPR = TagBloomFPR
	}
	return p
}

// Store is the cold archive over an ObjectClient.
type Store struct {
	client ObjectClient
	params Params

	masterMu sync.Mutex
	master   *bloom.Filter

	// Per-tag state. tagLocks serializes concurrent updates to the same
	// tag within this process; across processes the filter blob is
	// last-writer-wins, which only costs extra false positives.
	tagMu    sync.Mutex
	tags     map[string]*tagIndex
	tagLocks map[string]*sync.Mutex
}

// New creates a Store, loading the master bloom if one exists.
func New(ctx context.Context, client ObjectClient, params Params) (*Store, error) {
	s := &Store{
		client:   client,
		params:   params.withDefaults(),
		tags:     make(map[string]*tagIndex),
		tagLocks: make(map[string]*sync.Mutex),
	}

	data, err := client.Get(ctx, masterBloomKey)
	switch {
	case errors.Is(err, ErrNotFound):
		s.master = bloom.New(s.params.MasterCapacity, s.params.MasterFPR)
	case err != nil:
		return nil, fmt.Errorf("coldstore: loading master bloom: %w", err)
	default:
		f, derr := bloom.Deserialize(data)
		if derr != nil {
			return nil, fmt.Errorf("coldstore: corrupt master bloom: %w", derr)
		}
		s.master = f
	}

	return s, nil
}

// SanitizeTag maps a tag to its object-key form: path separators become
// underscores, the null tag becomes "unknown".
func SanitizeTag(tag string) string {
	if tag == "" {
		return "unknown"
	}
	tag = strings.ReplaceAll(tag, "/", "_")
	return strings.ReplaceAll(tag, "\\", "_")
}

// MonthKey returns the object key of a month blob.
func MonthKey(tag string, year, month int) string {
	return fmt.Sprintf("auctions/%s/%d/%02d.blob", SanitizeTag(tag), year, month)
}

// bloomKey returns the object key of a tag's bloom index.
func bloomKey(tag string) string {
	return indexPrefix + SanitizeTag(tag) + "/bloom.bin"
}

func (s *Store) lockTag(tag string) *sync.Mutex {
	s.tagMu.Lock()
	defer s.tagMu.Unlock()
	mu, ok := s.tagLocks[tag]
	if !ok {
		mu = &sync.Mutex{}
		s.tagLocks[tag] = mu
	}
	return mu
}

// StoreMonth seals one (tag, year, month) as an immutable blob and
// folds every uuid into the per-tag and master bloom indexes. Blob and
// index writes are not transactional across objects; a reader racing
// the index refresh only loses the lookup-by-uuid shortcut, never data.
func (s *Store) StoreMonth(ctx context.Context, tag string, year, month int, records []auction.Auction) error {
	mu := s.lockTag(tag)
	mu.Lock()
	defer mu.Unlock()

	body, err := encodeBlob(records)
	if err != nil {
		return fmt.Errorf("coldstore: encoding blob %s/%d/%02d: %w", tag, year, month, err)
	}

	metadata := map[string]string{
		"count": strconv.Itoa(len(records)),
		"tag":   tag,
		"year":  strconv.Itoa(year),
		"month": strconv.Itoa(month),
	}
	if err := s.client.Put(ctx, MonthKey(tag, year, month), body, metadata); err != nil {
		return fmt.Errorf("coldstore: writing blob %s/%d/%02d: %w", tag, year, month, err)
	}

	idx, err := s.tagIndex(ctx, tag)
	if err != nil {
		return err
	}
	for _, rec := range records {
		idx.filter.Add(rec.UUID)
	}
	idx.addMonth(year, month)
	if err := s.client.Put(ctx, bloomKey(tag), idx.serialize(), nil); err != nil {
		return fmt.Errorf("coldstore: writing tag index %s: %w", tag, err)
	}

	s.masterMu.Lock()
	for _, rec := range records {
		s.master.Add(rec.UUID)
	}
	masterBytes := s.master.Serialize()
	s.masterMu.Unlock()

	if err := s.client.Put(ctx, masterBloomKey, masterBytes, nil); err != nil {
		return fmt.Errorf("coldstore: writing master bloom: %w", err)
	}
	return nil
}

// GetMonth reads one month blob; a missing blob is an empty month.
func (s *Store) GetMonth(ctx context.Context, tag string, year, month int) ([]auction.Auction, error) {
	body, err := s.client.Get(ctx, MonthKey(tag, year, month))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("coldstore: reading blob %s/%d/%02d: %w", tag, year, month, err)
	}
	records, err := decodeBlob(body)
	if err != nil {
		return nil, fmt.Errorf("coldstore: corrupt blob %s/%d/%02d: %w", tag, year, month, err)
	}
	return records, nil
}

// MonthExists reports whether a month blob has been sealed.
func (s *Store) MonthExists(ctx context.Context, tag string, year, month int) (bool, error) {
	return s.client.Head(ctx, MonthKey(tag, year, month))
}

// Months lists the archived months of a tag, ascending.
func (s *Store) Months(ctx context.Context, tag string) ([]Month, error) {
	idx, err := s.tagIndex(ctx, tag)
	if err != nil {
		return nil, err
	}
	out := make([]Month, 0, len(idx.months))
	for m := range idx.months {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// MayContain consults the master bloom. false means id was never
// archived; true means maybe - narrowing to a tag requires the per-tag
// scan Lookup performs.
func (s *Store) MayContain(id uuid.UUID) bool {
	s.masterMu.Lock()
	defer s.masterMu.Unlock()
	return s.master.MayContain(id)
}

// Lookup finds every archived version of id: master bloom first, then
// each tag whose filter claims the id, then that tag's month blobs.
func (s *Store) Lookup(ctx context.Context, id uuid.UUID) ([]auction.Auction, error) {
	if !s.MayContain(id) {
		return nil, nil
	}

	keys, err := s.client.List(ctx, indexPrefix)
	if err != nil {
		return nil, fmt.Errorf("coldstore: listing tag indexes: %w", err)
	}

	var out []auction.Auction
	for _, key := range keys {
		tag, ok := tagFromIndexKey(key)
		if !ok {
			continue
		}
		idx, err := s.tagIndex(ctx, tag)
		if err != nil {
			log.Printf("coldstore: skipping unreadable tag index %s: %v", tag, err)
			continue
		}
		if !idx.filter.MayContain(id) {
			continue
		}
		for m := range idx.months {
			records, err := s.GetMonth(ctx, tag, m.Year, m.Month)
			if err != nil {
				log.Printf("coldstore: skipping unreadable blob %s/%d/%02d: %v", tag, m.Year, m.Month, err)
				continue
			}
			for _, rec := range records {
				if rec.UUID == id {
					out = append(out, rec)
				}
			}
		}
	}
	return out, nil
}

// EstimatedFPR exposes the master filter's current estimated false
// positive rate for health reporting.
func (s *Store) EstimatedFPR() float64 {
	s.masterMu.Lock()
	defer s.masterMu.Unlock()
	return s.master.EstimatedFPR()
}

// tagFromIndexKey extracts the sanitized tag from
// "index/{tag}/bloom.bin".
func tagFromIndexKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, indexPrefix)
	if !ok {
		return "", false
	}
	tag, ok := strings.CutSuffix(rest, "/bloom.bin")
	if !ok || tag == "" || strings.Contains(tag, "/") {
		return "", false
	}
	return tag, true
}

// tagIndex loads (or creates) a tag's bloom index, caching it for the
// process lifetime.
func (s *Store) tagIndex(ctx context.Context, tag string) (*tagIndex, error) {
	sanitized := SanitizeTag(tag)

	s.tagMu.Lock()
	if idx, ok := s.tags[sanitized]; ok {
		s.tagMu.Unlock()
		return idx, nil
	}
	s.tagMu.Unlock()

	data, err := s.client.Get(ctx, bloomKey(tag))
	var idx *tagIndex
	switch {
	case errors.Is(err, ErrNotFound):
		idx = newTagIndex(s.params.TagCapacity, s.params.TagFPR)
	case err != nil:
		return nil, fmt.Errorf("coldstore: loading tag index %s: %w", tag, err)
	default:
		idx, err = deserializeTagIndex(data)
		if err != nil {
			return nil, fmt.Errorf("coldstore: corrupt tag index %s: %w", tag, err)
		}
	}

	s.tagMu.Lock()
	if existing, ok := s.tags[sanitized]; ok {
		idx = existing
	} else {
		s.tags[sanitized] = idx
	}
	s.tagMu.Unlock()
	return idx, nil
}
