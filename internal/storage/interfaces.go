package storage

import (
	"context"

	"solido-stake/internal/domain"
)

// OperationJournal provides access to the operations journal.
type OperationJournal interface {
	// Insert adds a new record. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, r *domain.OperationRecord) error

	// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.OperationRecord, error)

	// GetBySignature retrieves a record by transaction signature. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.OperationRecord, error)

	// GetByOwner retrieves up to limit records for an owner, newest first.
	// A non-positive limit returns all records.
	GetByOwner(ctx context.Context, owner string, limit int) ([]*domain.OperationRecord, error)
}

// ExchangeRateStore provides access to exchange_rates storage.
type ExchangeRateStore interface {
	// Insert adds a new point. Returns ErrDuplicateKey if timestamp_ms exists.
	Insert(ctx context.Context, p *domain.ExchangeRatePoint) error

	// GetByTimeRange retrieves points within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ExchangeRatePoint, error)

	// GetLatest retrieves the most recent point. Returns ErrNotFound if the store is empty.
	GetLatest(ctx context.Context) (*domain.ExchangeRatePoint, error)
}
