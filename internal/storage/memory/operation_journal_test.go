package memory

import (
	"context"
	"errors"
	"testing"

	"solido-stake/internal/domain"
	"solido-stake/internal/storage"
)

func newRecord(id, owner string, createdAt int64) *domain.OperationRecord {
	return &domain.OperationRecord{
		ID:        id,
		Kind:      domain.OperationDeposit,
		Owner:     owner,
		Amount:    1_000_000_000,
		Signature: "sig-" + id,
		Status:    domain.StatusConfirmed,
		CreatedAt: createdAt,
	}
}

func TestOperationJournal_InsertAndGet(t *testing.T) {
	store := NewOperationJournal()
	ctx := context.Background()

	claim := "ClaimAddr"
	r := newRecord("op1", "owner", 1000)
	r.Kind = domain.OperationUnstakeRedeem
	r.StakeAccount = &claim

	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "op1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Kind != domain.OperationUnstakeRedeem {
		t.Errorf("Kind = %s, want unstake", got.Kind)
	}
	if got.StakeAccount == nil || *got.StakeAccount != claim {
		t.Errorf("StakeAccount = %v, want %s", got.StakeAccount, claim)
	}

	// Mutating the returned copy must not affect the store
	*got.StakeAccount = "changed"
	again, _ := store.GetByID(ctx, "op1")
	if *again.StakeAccount != claim {
		t.Errorf("stored record was mutated through returned copy")
	}

	bySig, err := store.GetBySignature(ctx, "sig-op1")
	if err != nil {
		t.Fatalf("GetBySignature failed: %v", err)
	}
	if bySig.ID != "op1" {
		t.Errorf("GetBySignature ID = %s, want op1", bySig.ID)
	}
}

func TestOperationJournal_DuplicateKey(t *testing.T) {
	store := NewOperationJournal()
	ctx := context.Background()

	if err := store.Insert(ctx, newRecord("op1", "owner", 1000)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, newRecord("op1", "owner", 2000))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestOperationJournal_InvalidInput(t *testing.T) {
	store := NewOperationJournal()
	ctx := context.Background()

	bad := newRecord("op1", "owner", 1000)
	bad.Kind = "transfer"

	for _, r := range []*domain.OperationRecord{nil, newRecord("", "owner", 1), bad} {
		if err := store.Insert(ctx, r); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput, got %v", err)
		}
	}
}

func TestOperationJournal_NotFound(t *testing.T) {
	store := NewOperationJournal()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetByID: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetBySignature(ctx, ""); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetBySignature: expected ErrNotFound, got %v", err)
	}
}

func TestOperationJournal_GetByOwner(t *testing.T) {
	store := NewOperationJournal()
	ctx := context.Background()

	for _, r := range []*domain.OperationRecord{
		newRecord("a", "alice", 1000),
		newRecord("b", "alice", 3000),
		newRecord("c", "bob", 2000),
		newRecord("d", "alice", 2000),
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByOwner(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("GetByOwner failed: %v", err)
	}
	want := []string{"b", "d", "a"}
	if len(result) != len(want) {
		t.Fatalf("Expected %d records, got %d", len(want), len(result))
	}
	for i, id := range want {
		if result[i].ID != id {
			t.Errorf("result[%d] = %s, want %s", i, result[i].ID, id)
		}
	}

	limited, _ := store.GetByOwner(ctx, "alice", 2)
	if len(limited) != 2 || limited[0].ID != "b" {
		t.Errorf("limit not applied newest first: %+v", limited)
	}
}
