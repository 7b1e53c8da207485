package memory

import (
	"context"
	"sort"
	"sync"

	"solido-stake/internal/domain"
	"solido-stake/internal/storage"
)

// OperationJournal is an in-memory implementation of storage.OperationJournal.
type OperationJournal struct {
	mu   sync.RWMutex
	data map[string]*domain.OperationRecord // keyed by id
}

// NewOperationJournal creates a new in-memory operation journal.
func NewOperationJournal() *OperationJournal {
	return &OperationJournal{
		data: make(map[string]*domain.OperationRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if id exists.
func (s *OperationJournal) Insert(_ context.Context, r *domain.OperationRecord) error {
	if r == nil || r.ID == "" || !r.Kind.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.ID] = cloneRecord(r)
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *OperationJournal) GetByID(_ context.Context, id string) (*domain.OperationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(r), nil
}

// GetBySignature retrieves a record by transaction signature.
func (s *OperationJournal) GetBySignature(_ context.Context, signature string) (*domain.OperationRecord, error) {
	if signature == "" {
		return nil, storage.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.data {
		if r.Signature == signature {
			return cloneRecord(r), nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByOwner retrieves up to limit records for an owner, newest first.
func (s *OperationJournal) GetByOwner(_ context.Context, owner string, limit int) ([]*domain.OperationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OperationRecord
	for _, r := range s.data {
		if r.Owner == owner {
			result = append(result, cloneRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// cloneRecord deep-copies nullable fields so callers cannot mutate stored state.
func cloneRecord(r *domain.OperationRecord) *domain.OperationRecord {
	cp := *r
	if r.StakeAccount != nil {
		v := *r.StakeAccount
		cp.StakeAccount = &v
	}
	if r.Error != nil {
		v := *r.Error
		cp.Error = &v
	}
	return &cp
}

var _ storage.OperationJournal = (*OperationJournal)(nil)
