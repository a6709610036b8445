package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/sbauctions/archive/pkg/archive"
	"github.com/sbauctions/archive/pkg/bus"
	"github.com/sbauctions/archive/pkg/config"
	"github.com/sbauctions/archive/pkg/filter"
	"github.com/sbauctions/archive/pkg/ingest"
	"github.com/sbauctions/archive/pkg/playernames"
	"github.com/sbauctions/archive/pkg/query"
	"github.com/sbauctions/archive/pkg/server"
	"github.com/sbauctions/archive/pkg/server/monitor"
	"github.com/sbauctions/archive/pkg/tierrouter"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 30 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage tiers.
	hot, err := server.InitializeHotStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize hot store: %v", err)
	}
	defer hot.Close()

	cold, err := server.InitializeColdStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize cold archive: %v", err)
	}

	legacy, err := server.InitializeLegacyDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect legacy database: %v", err)
	}
	if legacy != nil {
		defer legacy.Close()
	}

	cacheBackend := server.InitializeCache(cfg)

	// Ingest pipeline.
	offset, err := ingest.LoadOffset(ctx, cacheBackend, config.HistoricalBatchSize)
	if err != nil {
		log.Fatalf("Failed to load import offset: %v", err)
	}
	log.Printf("Import offset resumes at %d", offset.Get())

	pool := ingest.NewPool(cfg.IngestWorkers)
	pool.Start(ctx)
	log.Printf("Ingest worker pool started (%d workers)", cfg.IngestWorkers)

	hub := ingest.NewSalesHub()
	go hub.Run(ctx)

	// The bus client is wired per deployment; the in-memory backend
	// keeps single-node setups running without a broker.
	busBackend := bus.NewMemory()
	live := ingest.NewLive(busBackend, hot, hub, cfg.TopicSoldAuction, cfg.TopicNewAuction)

	go func() {
		if legacy != nil {
			historical := ingest.NewHistorical(legacy, hot, pool, offset)
			if err := historical.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("Historical migration stopped: %v", err)
			}
			pool.Wait()
			log.Println("Historical migration drained, switching to live consumer")
		}
		if err := live.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Live consumer stopped: %v", err)
		}
	}()

	// Query side.
	router := tierrouter.New(hot, cold, cfg.RetentionMonths)
	names := playernames.NewCached(playernames.NewStatic(nil))
	engine := query.New(hot, cold, router, filter.MapCompiler{}, names)

	// Background maintenance.
	migrationMonitor := &monitor.MigrationMonitor{}
	storageMonitor := monitor.NewStorageMonitor(cfg.DataDir, cfg.MaxStorageGB*1024*1024*1024)

	var migrator *archive.Migrator
	stop := make(chan bool)
	var wg sync.WaitGroup
	if cold != nil {
		migrator = archive.New(hot, cold, cfg.RetentionMonths)
		wg.Add(1)
		go server.RunArchiveMigration(migrator, migrationMonitor, stop, &wg)
	} else {
		log.Println("Archive migration disabled (no cold store)")
	}
	wg.Add(1)
	go server.RunBadgerGC(hot, stop, &wg)

	// HTTP surface.
	handlers := &server.Handlers{
		Engine:           engine,
		Cold:             cold,
		Restore:          legacy,
		Offset:           offset,
		Migrator:         migrator,
		Pool:             pool,
		Hub:              hub,
		MigrationMonitor: migrationMonitor,
		StorageMonitor:   storageMonitor,
	}

	muxRouter := mux.NewRouter()
	server.SetupRoutes(muxRouter, handlers)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      muxRouter,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.Printf("Auction archive listening on :%s (retention %d months)", cfg.Port, cfg.RetentionMonths)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("Shutting down...")

	close(stop)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	pool.Stop()
	wg.Wait()
	log.Println("Shutdown complete")
}
