// Package api exposes staking reads and unsigned transactions over HTTP.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"solido-stake/internal/composer"
	"solido-stake/internal/lidoapi"
	"solido-stake/internal/observability"
	"solido-stake/internal/positions"
	"solido-stake/internal/solana"
	"solido-stake/internal/solido"
	"solido-stake/internal/storage"
	"solido-stake/internal/wallet"
)

// MarketStats supplies off-chain protocol statistics.
type MarketStats interface {
	Stats(ctx context.Context) (*lidoapi.Stats, error)
}

// Options configures the API server.
type Options struct {
	RPC       solana.RPCClient
	Addresses solido.ProgramAddresses

	Composer  *composer.Composer
	Positions *positions.Aggregator
	Submitter *wallet.Submitter

	Journal storage.OperationJournal  // optional
	Rates   storage.ExchangeRateStore // optional
	Market  MarketStats               // optional

	// RateLimit caps /v1 requests per second across all clients. Zero disables it.
	RateLimit float64
	RateBurst int

	Logger *log.Logger
}

// Server serves the HTTP API.
type Server struct {
	rpc       solana.RPCClient
	addrs     solido.ProgramAddresses
	composer  *composer.Composer
	positions *positions.Aggregator
	submitter *wallet.Submitter
	journal   storage.OperationJournal
	rates     storage.ExchangeRateStore
	market    MarketStats
	limiter   *rate.Limiter
	logger    *log.Logger
	now       func() time.Time
}

// New creates an API server. Missing components get defaults built on RPC.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		rpc:       opts.RPC,
		addrs:     opts.Addresses,
		composer:  opts.Composer,
		positions: opts.Positions,
		submitter: opts.Submitter,
		journal:   opts.Journal,
		rates:     opts.Rates,
		market:    opts.Market,
		logger:    logger,
		now:       time.Now,
	}
	if s.composer == nil {
		s.composer = composer.New(composer.Options{Addresses: opts.Addresses, Logger: logger})
	}
	if s.positions == nil {
		s.positions = positions.NewAggregator(positions.Options{Logger: logger})
	}
	if s.submitter == nil {
		s.submitter = wallet.NewSubmitter(opts.RPC, nil, nil, wallet.Config{Logger: logger})
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())

	s.route(mux, "GET /v1/stats", s.handleStats)
	s.route(mux, "GET /v1/quote", s.handleQuote)
	s.route(mux, "GET /v1/rates", s.handleRates)
	s.route(mux, "GET /v1/positions/{owner}", s.handlePositions)
	s.route(mux, "GET /v1/operations/{owner}", s.handleOperations)
	s.route(mux, "POST /v1/transactions", s.handleTransaction)

	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, s.limit(h)))
}

func (s *Server) limit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			observability.RecordRateLimited()
			s.logger.Printf("[api] rate limit exceeded: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			writeError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		observability.RecordHTTPRequest(route, rec.code)
	})
}
