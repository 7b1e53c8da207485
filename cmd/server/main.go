// Package main provides the staking service: the HTTP API consumed by the
// wallet UI and the background exchange-rate recorder.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"solido-stake/internal/api"
	"solido-stake/internal/composer"
	"solido-stake/internal/config"
	"solido-stake/internal/lidoapi"
	"solido-stake/internal/positions"
	"solido-stake/internal/recorder"
	"solido-stake/internal/solana"
	"solido-stake/internal/solido"
	"solido-stake/internal/storage"
	chstore "solido-stake/internal/storage/clickhouse"
	"solido-stake/internal/storage/memory"
	"solido-stake/internal/storage/migrations"
	pgstore "solido-stake/internal/storage/postgres"
	"solido-stake/internal/wallet"
)

// Server holds all components of the service.
type Server struct {
	cfg    config.Config
	addrs  solido.ProgramAddresses
	rpc    *solana.HTTPClient
	stores *allStores
	logger *log.Logger

	// State
	mu          sync.Mutex
	started     time.Time
	lastRecord  time.Time
	recordRuns  int
	recordFails int
}

// allStores holds all storage implementations.
type allStores struct {
	journal storage.OperationJournal
	rates   storage.ExchangeRateStore
}

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	addrs, err := cfg.Addresses()
	if err != nil {
		logger.Fatalf("Invalid program addresses: %v", err)
	}
	logger.Printf("Solido instance %s (program %s)", addrs.InstanceID, addrs.ProgramID)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server := &Server{
		cfg:    cfg,
		addrs:  addrs,
		rpc:    newRPCClient(cfg),
		stores: stores,
		logger: logger,
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

func newRPCClient(cfg config.Config) *solana.HTTPClient {
	return solana.NewHTTPClient(cfg.RPCEndpoint,
		solana.WithTimeout(cfg.RPCTimeout),
		solana.WithMaxRetries(cfg.RPCMaxRetries),
		solana.WithCommitment(cfg.Commitment),
		solana.WithRateLimit(cfg.RPCRateLimit, cfg.RPCRateBurst),
	)
}

// createStores creates the journal and rate history stores. Database stores
// are migrated before use.
func createStores(ctx context.Context, cfg config.Config, logger *log.Logger) (*allStores, func(), error) {
	if cfg.UseMemory {
		logger.Println("Using in-memory storage")
		stores := &allStores{
			journal: memory.NewOperationJournal(),
			rates:   memory.NewExchangeRateStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	stores := &allStores{
		journal: pgstore.NewOperationJournal(pool),
		rates:   chstore.NewExchangeRateStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// Run starts the recorder and the HTTP server and blocks until ctx is done
// or either fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting server...")
	s.started = time.Now()

	errCh := make(chan error, 2)

	go func() {
		err := s.runRecorder(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("recorder: %w", err)
		}
	}()

	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.logger.Printf("Starting HTTP server on %s", s.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		s.logger.Printf("HTTP server shutdown error: %v", shutdownErr)
	}
	return err
}

// runRecorder records the exchange rate on schedule.
func (s *Server) runRecorder(ctx context.Context) error {
	rec := recorder.New(recorder.Options{
		Conn:      s.rpc,
		Addresses: s.addrs,
		Store:     s.stores.rates,
		Interval:  s.cfg.RecordInterval,
		Logger:    log.New(os.Stdout, "[recorder] ", log.LstdFlags|log.Lshortfile),
		OnTick:    s.recordTick,
	})
	return rec.Run(ctx)
}

func (s *Server) recordTick(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordRuns++
	if err != nil {
		s.recordFails++
		return
	}
	s.lastRecord = at
}

// handler wires the API under the status endpoint.
func (s *Server) handler() http.Handler {
	apiLogger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lshortfile)

	var market api.MarketStats
	if s.cfg.StatsURL != "" {
		market = lidoapi.NewClient(s.cfg.StatsURL)
	}

	apiServer := api.New(api.Options{
		RPC:       s.rpc,
		Addresses: s.addrs,
		Composer:  composer.New(composer.Options{Addresses: s.addrs, Logger: apiLogger}),
		Positions: positions.NewAggregator(positions.Options{
			Logger:      apiLogger,
			Concurrency: s.cfg.EnrichConcurrency,
		}),
		Submitter: wallet.NewSubmitter(s.rpc, nil, s.stores.journal, wallet.Config{Logger: apiLogger}),
		Journal:   s.stores.journal,
		Rates:     s.stores.rates,
		Market:    market,
		RateLimit: s.cfg.HTTPRateLimit,
		RateBurst: s.cfg.HTTPRateBurst,
		Logger:    apiLogger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("/", apiServer.Handler())
	return mux
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	Started         time.Time `json:"started"`
	LastRateRecord  time.Time `json:"last_rate_record,omitempty"`
	RecorderRuns    int       `json:"recorder_runs"`
	RecorderFailure int       `json:"recorder_failures"`
	Storage         string    `json:"storage"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	backend := "postgres+clickhouse"
	if s.cfg.UseMemory {
		backend = "memory"
	}

	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		Started:         s.started,
		LastRateRecord:  s.lastRecord,
		RecorderRuns:    s.recordRuns,
		RecorderFailure: s.recordFails,
		Storage:         backend,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
