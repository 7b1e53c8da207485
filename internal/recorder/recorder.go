// Package recorder periodically samples the protocol exchange rate.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solido-stake/internal/domain"
	"solido-stake/internal/observability"
	"solido-stake/internal/solido"
	"solido-stake/internal/storage"
)

// Recorder writes one ExchangeRatePoint per tick.
type Recorder struct {
	conn     solido.Connection
	addrs    solido.ProgramAddresses
	store    storage.ExchangeRateStore
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time
	onTick   func(time.Time, error)
}

// Options contains configuration for creating a Recorder.
type Options struct {
	Conn      solido.Connection
	Addresses solido.ProgramAddresses
	Store     storage.ExchangeRateStore
	Interval  time.Duration // Default: 5m
	Logger    *log.Logger
	Now       func() time.Time

	// OnTick is called after every scheduled tick with the tick time and
	// its error. Duplicate points count as success.
	OnTick func(at time.Time, err error)
}

// New creates a new recorder.
func New(opts Options) *Recorder {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Recorder{
		conn:     opts.Conn,
		addrs:    opts.Addresses,
		store:    opts.Store,
		interval: interval,
		logger:   logger,
		now:      now,
		onTick:   opts.OnTick,
	}
}

// Run records immediately and then on every tick.
// It blocks until context is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	r.logger.Printf("[recorder] started, interval: %v", r.interval)

	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("[recorder] stopping")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Recorder) tick(ctx context.Context) {
	at := r.now()
	point, err := r.RecordOnce(ctx)
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		r.logger.Printf("[recorder] point at %d already recorded", point.TimestampMs)
		err = nil
	case err != nil:
		if ctx.Err() == nil {
			r.logger.Printf("[recorder] tick failed: %v", err)
		}
	default:
		r.logger.Printf("[recorder] epoch %d rate %.9f tvl %d", point.Epoch, point.Rate, point.TVL)
	}
	if r.onTick != nil {
		r.onTick(at, err)
	}
}

// RecordOnce reads a fresh snapshot and stores its exchange rate. The point
// is returned alongside storage.ErrDuplicateKey when its timestamp exists.
func (r *Recorder) RecordOnce(ctx context.Context) (point *domain.ExchangeRatePoint, err error) {
	now := r.now()
	defer func() {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return
		}
		observability.RecordRecorderTick(now.Unix(), err)
	}()

	snap, err := solido.FetchSnapshot(ctx, r.conn, r.addrs)
	if err != nil {
		return nil, err
	}

	stats := solido.ComputeStats(snap)
	rate, _ := stats.ExchangeRate.Float64()

	point = &domain.ExchangeRatePoint{
		TimestampMs: now.UnixMilli(),
		Epoch:       stats.RateEpoch,
		SolBalance:  snap.Lido.ExchangeRate.SolBalance,
		StSolSupply: snap.Lido.ExchangeRate.StSolSupply,
		Rate:        rate,
		TVL:         uint64(stats.TotalValueLocked),
	}
	observability.UpdateProtocolStats(rate, point.TVL, uint64(stats.StSolSupply))

	if err := r.store.Insert(ctx, point); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return point, err
		}
		return nil, fmt.Errorf("store exchange rate: %w", err)
	}
	return point, nil
}
