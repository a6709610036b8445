// Package cache is the key-value cache boundary used for the import
// offset and the migration paging cursors. Production deployments point
// it at Redis (REDIS_HOST); tests use the in-memory backend.
package cache

import (
	"context"
	"sync"
)

// Well-known cache keys.
const (
	KeyLastMigratedIndex = "lastMigratedAuctionIndex"
)

// PagingStateKey returns the cache key holding a table's base64 paging
// cursor for the historical migration.
func PagingStateKey(tableName string) string {
	return "cassandra_migration_" + tableName + "_paging_state"
}

// OffsetKey returns the cache key holding a table's migrated row count.
func OffsetKey(tableName string) string {
	return "cassandra_migration_" + tableName + "_offset"
}

// Cache is a minimal string key-value store.
type Cache interface {
	// Get returns the value for key, ok=false if the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error
}

// Memory is a thread-safe in-process Cache.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

func (c *Memory) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *Memory) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}
