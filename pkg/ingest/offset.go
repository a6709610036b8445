package ingest

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/sbauctions/archive/pkg/cache"
	"github.com/sbauctions/archive/pkg/config"
)

// Offset is the process-wide import checkpoint: every source row with
// id below it has been enqueued for insertion. Advances are debounced
// (a full debounce window must pass before the cache is touched) and
// strictly monotone.
type Offset struct {
	current atomic.Int64
	store   cache.Cache

	// debounce is 10x the migration batch size.
	debounce int64
}

// LoadOffset reads the persisted checkpoint, starting at zero when none
// exists.
func LoadOffset(ctx context.Context, store cache.Cache, batchSize int64) (*Offset, error) {
	o := &Offset{store: store, debounce: config.OffsetDebounceFactor * batchSize}

	v, ok, err := store.Get(ctx, cache.KeyLastMigratedIndex)
	if err != nil {
		return nil, fmt.Errorf("ingest: loading offset: %w", err)
	}
	if ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: corrupt offset %q: %w", v, err)
		}
		o.current.Store(n)
	}
	return o, nil
}

// Get returns the current checkpoint.
func (o *Offset) Get() int64 {
	return o.current.Load()
}

// Set advances the checkpoint to n if it moved by more than the
// debounce window, writing through to the cache. Regressions are
// ignored: the persisted offset never decreases.
func (o *Offset) Set(ctx context.Context, n int64) error {
	cur := o.current.Load()
	if n <= cur || n-cur <= o.debounce {
		return nil
	}
	if !o.current.CompareAndSwap(cur, n) {
		// Another writer advanced past us; theirs wins.
		return nil
	}
	return o.persist(ctx, n)
}

// Force writes n unconditionally (used when the migrator finishes a
// run), still refusing to move backwards.
func (o *Offset) Force(ctx context.Context, n int64) error {
	for {
		cur := o.current.Load()
		if n <= cur {
			return nil
		}
		if o.current.CompareAndSwap(cur, n) {
			return o.persist(ctx, n)
		}
	}
}

func (o *Offset) persist(ctx context.Context, n int64) error {
	if err := o.store.Set(ctx, cache.KeyLastMigratedIndex, strconv.FormatInt(n, 10)); err != nil {
		return fmt.Errorf("ingest: persisting offset %d: %w", n, err)
	}
	return nil
}
