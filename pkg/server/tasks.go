package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sbauctions/archive/pkg/archive"
	"github.com/sbauctions/archive/pkg/config"
	"github.com/sbauctions/archive/pkg/hotstore"
	badgerstore "github.com/sbauctions/archive/pkg/hotstore/badger"
	"github.com/sbauctions/archive/pkg/server/monitor"
)

// RunArchiveMigration runs the hot->cold migration on its schedule,
// with retry and exponential backoff inside each scheduled run.
func RunArchiveMigration(migrator *archive.Migrator, mm *monitor.MigrationMonitor, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.ArchiveMigrationInterval)
	defer ticker.Stop()

	runWithRetry := func() {
		maxRetries := 3
		baseDelay := 30 * time.Second

		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				delay := baseDelay * time.Duration(1<<(attempt-1)) // 30s, 60s, 120s
				log.Printf("Retrying archive migration in %v (attempt %d/%d)...", delay, attempt+1, maxRetries+1)
				select {
				case <-time.After(delay):
				case <-stop:
					return
				}
			}

			start := time.Now()
			if runMigration(migrator, mm) {
				log.Printf("Archive migration completed in %v (%d months sealed total)",
					time.Since(start).Round(time.Millisecond), migrator.MonthsMigrated())
				return
			}

			status := mm.Status()
			if status.ConsecutiveErrors > 3 {
				log.Printf("ALERT: Archive migration has been failing! Consecutive errors: %d", status.ConsecutiveErrors)
			}
		}

		log.Printf("Archive migration failed after %d attempts, will retry on next schedule", maxRetries+1)
	}

	// Run once on startup (non-blocking).
	go func() {
		log.Println("Running initial archive migration...")
		runWithRetry()
	}()

	for {
		select {
		case <-ticker.C:
			log.Println("Scheduled archive migration started...")
			runWithRetry()
		case <-stop:
			log.Println("Stopping archive migration scheduler")
			return
		}
	}
}

// runMigration executes one migration pass and records the outcome.
func runMigration(migrator *archive.Migrator, mm *monitor.MigrationMonitor) bool {
	err := migrator.RunOnce(context.Background())
	if err == nil {
		mm.RecordSuccess(migrator.MonthsMigrated())
		return true
	}
	mm.RecordFailure(err, migrator.VerificationFailures())
	log.Printf("Archive migration failed: %v", err)
	return false
}

// RunBadgerGC runs the hot store's value-log garbage collection
// periodically to reclaim disk space after archive deletions.
func RunBadgerGC(store hotstore.Store, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	badgerStore, ok := store.(*badgerstore.Storage)
	if !ok {
		log.Println("Hot store is not badger-backed, skipping GC")
		return
	}

	log.Println("Hot store GC scheduler started (runs every 10m)")

	for {
		select {
		case <-ticker.C:
			log.Println("Running hot store garbage collection...")
			start := time.Now()

			// One GC iteration per tick to avoid blocking.
			if err := badgerStore.RunGC(0.5); err != nil {
				log.Printf("GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		case <-stop:
			log.Println("Stopping hot store GC scheduler")
			return
		}
	}
}
