// Package playernames resolves player uuids to display names through
// the external name-lookup API. Lookups are batched and cached; a uuid
// that cannot be resolved is simply absent from the returned map, and
// no substitute name (such as a uuid form) is filled in.
package playernames

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Resolver maps player uuids to display names.
type Resolver interface {
	// ResolveBatch resolves every uuid it can; absent entries mean the
	// name is unknown.
	ResolveBatch(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Static is a fixed-map Resolver used in tests and as the no-op default.
type Static struct {
	mu    sync.RWMutex
	names map[uuid.UUID]string
}

// NewStatic creates a Static resolver seeded with names (nil is fine).
func NewStatic(names map[uuid.UUID]string) *Static {
	if names == nil {
		names = make(map[uuid.UUID]string)
	}
	return &Static{names: names}
}

func (s *Static) ResolveBatch(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if name, ok := s.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// Add seeds one name (test helper).
func (s *Static) Add(id uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[id] = name
}

// Cached wraps a Resolver with a process-local cache so repeated
// overview renders do not re-query the external API.
type Cached struct {
	inner Resolver

	mu    sync.RWMutex
	cache map[uuid.UUID]string
}

// NewCached wraps inner with an unbounded name cache. Names are stable,
// so the cache never invalidates.
func NewCached(inner Resolver) *Cached {
	return &Cached{inner: inner, cache: make(map[uuid.UUID]string)}
}

func (c *Cached) ResolveBatch(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	var missing []uuid.UUID

	c.mu.RLock()
	for _, id := range ids {
		if name, ok := c.cache[id]; ok {
			out[id] = name
		} else {
			missing = append(missing, id)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	resolved, err := c.inner.ResolveBatch(ctx, missing)
	if err != nil {
		// Partial results are still useful; the caller falls back to
		// uuids for the rest.
		return out, err
	}

	c.mu.Lock()
	for id, name := range resolved {
		c.cache[id] = name
		out[id] = name
	}
	c.mu.Unlock()

	return out, nil
}
