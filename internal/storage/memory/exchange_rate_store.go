package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"solido-stake/internal/domain"
	"solido-stake/internal/storage"
)

// ExchangeRateStore is an in-memory implementation of storage.ExchangeRateStore.
type ExchangeRateStore struct {
	mu   sync.RWMutex
	data []*domain.ExchangeRatePoint // sorted by timestamp_ms
}

// NewExchangeRateStore creates a new in-memory exchange rate store.
func NewExchangeRateStore() *ExchangeRateStore {
	return &ExchangeRateStore{}
}

// Insert adds a new point. Returns ErrDuplicateKey if timestamp_ms exists.
func (s *ExchangeRateStore) Insert(_ context.Context, p *domain.ExchangeRatePoint) error {
	if p == nil || p.TimestampMs <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.data), func(i int) bool { return s.data[i].TimestampMs >= p.TimestampMs })
	if i < len(s.data) && s.data[i].TimestampMs == p.TimestampMs {
		return storage.ErrDuplicateKey
	}

	copy := *p
	s.data = slices.Insert(s.data, i, &copy)
	return nil
}

// GetByTimeRange retrieves points within [start, end] (inclusive), ordered by timestamp ASC.
func (s *ExchangeRateStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.ExchangeRatePoint, error) {
	if start > end {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExchangeRatePoint
	for _, p := range s.data {
		if p.TimestampMs >= start && p.TimestampMs <= end {
			copy := *p
			result = append(result, &copy)
		}
	}
	return result, nil
}

// GetLatest retrieves the most recent point. Returns ErrNotFound if empty.
func (s *ExchangeRateStore) GetLatest(_ context.Context) (*domain.ExchangeRatePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return nil, storage.ErrNotFound
	}
	copy := *s.data[len(s.data)-1]
	return &copy, nil
}

var _ storage.ExchangeRateStore = (*ExchangeRateStore)(nil)
