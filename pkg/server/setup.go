package server

import (
	"context"
	"log"
	"os"

	"github.com/sbauctions/archive/pkg/cache"
	"github.com/sbauctions/archive/pkg/coldstore"
	s3client "github.com/sbauctions/archive/pkg/coldstore/s3"
	"github.com/sbauctions/archive/pkg/config"
	"github.com/sbauctions/archive/pkg/hotstore"
	badgerstore "github.com/sbauctions/archive/pkg/hotstore/badger"
	"github.com/sbauctions/archive/pkg/restore"
)

// InitializeHotStore opens the badger-backed hot store under the data
// directory.
func InitializeHotStore(dataDir string) (hotstore.Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	log.Println("Initializing hot store (badger, Snappy compression)...")
	store, err := badgerstore.New(badgerstore.Config{Path: dataDir})
	if err != nil {
		return nil, err
	}
	log.Println("Hot store initialized successfully")
	return store, nil
}

// InitializeColdStore builds the archive tier, or returns nil when no
// bucket is configured (archive disabled: the tier router falls back to
// hot-only).
func InitializeColdStore(ctx context.Context, cfg config.Config) (*coldstore.Store, error) {
	if cfg.S3BucketName == "" {
		log.Println("No S3 bucket configured, cold archive disabled")
		return nil, nil
	}

	client, err := s3client.New(ctx, s3client.Config{
		Bucket:    cfg.S3BucketName,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return nil, err
	}

	cold, err := coldstore.New(ctx, client, coldstore.Params{})
	if err != nil {
		return nil, err
	}
	log.Printf("Cold archive initialized (bucket %s)", cfg.S3BucketName)
	return cold, nil
}

// InitializeLegacyDB connects the legacy SQL collaborator, or returns
// nil when no DSN is configured.
func InitializeLegacyDB(cfg config.Config) (*restore.Service, error) {
	if cfg.MySQLDSN == "" {
		log.Println("No legacy database configured, restore endpoints disabled")
		return nil, nil
	}
	svc, err := restore.Open(cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	log.Println("Legacy database connected")
	return svc, nil
}

// InitializeCache returns the offset/paging cache. With no Redis host
// the in-memory backend serves a single-process deployment.
func InitializeCache(cfg config.Config) cache.Cache {
	// The Redis client wiring hangs off REDIS_HOST; the in-memory
	// backend keeps single-node deployments and tests dependency-free.
	log.Printf("Cache backend: in-memory (REDIS_HOST=%s)", cfg.RedisHost)
	return cache.NewMemory()
}
