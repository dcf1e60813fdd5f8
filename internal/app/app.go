// Package app provides the unified application lifecycle management for Hookstream.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	httpapi "github.com/hookstream/hookstream/internal/api/http"
	"github.com/hookstream/hookstream/internal/broadcast"
	"github.com/hookstream/hookstream/internal/config"
	"github.com/hookstream/hookstream/internal/observability"
	"github.com/hookstream/hookstream/internal/server"
	"github.com/hookstream/hookstream/internal/store"
	"github.com/hookstream/hookstream/internal/timeline"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App manages the Hookstream service lifecycle.
type App struct {
	cfg *config.Config

	// Shared resources
	store       *store.EventStore
	broadcaster *broadcast.Broadcaster
	ingestStats *observability.IngestStats
	shutdown    *server.ShutdownManager

	httpServer *http.Server

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg: cfg,
	}, nil
}

// Start initializes shared resources and starts the HTTP server.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if err := a.startHTTPServer(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	log.Printf("Hookstream started: db=%s addr=%s", a.cfg.DBPath, a.cfg.HTTP.Addr)
	return nil
}

// Store returns the underlying event store.
func (a *App) Store() *store.EventStore {
	return a.store
}

// initSharedResources opens the event store and wires the broadcaster and
// shutdown manager.
func (a *App) initSharedResources() error {
	st, err := store.Open(a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	a.store = st

	migration := st.MigrationStats()
	if migration.AlreadyMigrated {
		log.Printf("Event store opened: %s (%d events, schema current)", a.cfg.DBPath, migration.TotalEvents)
	} else {
		log.Printf("Event store migrated: %s (columns_added=%v backfilled=%d priority=%d regular=%d)",
			a.cfg.DBPath, migration.ColumnsAdded, migration.BackfilledRows,
			migration.PriorityEvents, migration.RegularEvents)
	}

	a.broadcaster = broadcast.New(a.cfg.Broadcast.BufferSize)
	a.ingestStats = observability.NewIngestStats(24 * time.Hour)

	a.shutdown = server.NewShutdownManager(server.ShutdownConfig{
		ShutdownTimeout: a.cfg.HTTP.ShutdownTimeout,
	})
	a.shutdown.RegisterCloser(a.store)

	return nil
}

// startHTTPServer wires the API handlers and starts the listener. The given
// context becomes the base context of every request, so cancelling it on Stop
// unblocks open streams.
func (a *App) startHTTPServer(ctx context.Context) error {
	transformer := timeline.NewTransformer(a.store)
	retention := a.cfg.StoreRetention()

	ingestHandler := httpapi.NewIngestHandler(a.store, a.broadcaster, a.ingestStats)
	recentHandler := httpapi.NewRecentEventsHandler(a.store, retention)
	sessionHandler := httpapi.NewSessionEventsHandler(a.store, retention)
	timelineHandler := httpapi.NewTimelineHandler(transformer)
	streamHandler := httpapi.NewStreamHandler(a.store, a.broadcaster, retention, a.shutdown.ShutdownCh())
	subscribeHandler := httpapi.NewSubscribeHandler(a.broadcaster)
	statsHandler := httpapi.NewStatsHandler(a.store, a.broadcaster, a.ingestStats, retention)

	mux := http.NewServeMux()
	middleware := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(a.shutdown),
		httpapi.RecoveryMiddleware,
		httpapi.RequestIDMiddleware,
		httpapi.CorrelationIDMiddleware,
		httpapi.ContentTypeMiddleware,
	)
	mux.Handle("/v1/events", middleware(ingestHandler))
	mux.Handle("/v1/events/recent", middleware(recentHandler))
	mux.Handle("/v1/events/session/", middleware(sessionHandler))
	mux.Handle("/v1/sessions/", middleware(timelineHandler))
	mux.Handle("/v1/stream", middleware(streamHandler))
	mux.Handle("/v1/stream/", middleware(subscribeHandler))
	mux.Handle("/v1/stats", middleware(statsHandler))
	mux.Handle("/health", httpapi.NewHealthHandler(Version))

	// WriteTimeout stays zero so the stream endpoint can hold connections.
	a.httpServer = &http.Server{
		Addr:        a.cfg.HTTP.Addr,
		Handler:     mux,
		ReadTimeout: a.cfg.HTTP.ReadTimeout,
		IdleTimeout: a.cfg.HTTP.IdleTimeout,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("HTTP server listening on %s", a.cfg.HTTP.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully stops the service and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	log.Printf("Initiating graceful shutdown...")

	if a.cancel != nil {
		a.cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// Shutdown closes the shutdown channel, which terminates open streams so
	// the HTTP server drain below can complete.
	if err := a.shutdown.Shutdown(shutdownCtx, "stop requested"); err != nil {
		log.Printf("Shutdown manager error: %v", err)
	}

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Printf("Shutdown timeout, some goroutines may not have finished")
	}

	log.Printf("Hookstream stopped")
	return nil
}

// cleanup releases shared resources on failed startup. Normal shutdown closes
// the store through the shutdown manager instead.
func (a *App) cleanup() {
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown(ctx context.Context) error {
	if err := a.shutdown.ListenForSignals(ctx); err != nil {
		return err
	}
	return a.Stop(context.Background())
}
