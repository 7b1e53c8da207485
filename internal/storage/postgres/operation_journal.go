package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solido-stake/internal/domain"
	"solido-stake/internal/storage"
)

// OperationJournal implements storage.OperationJournal using PostgreSQL.
type OperationJournal struct {
	pool *Pool
}

// NewOperationJournal creates a new OperationJournal.
func NewOperationJournal(pool *Pool) *OperationJournal {
	return &OperationJournal{pool: pool}
}

// Compile-time interface check.
var _ storage.OperationJournal = (*OperationJournal)(nil)

const operationColumns = `
	id, kind, owner, amount, stake_account,
	signature, status, error, created_at
`

// Insert adds a new record. Returns ErrDuplicateKey if id exists.
func (s *OperationJournal) Insert(ctx context.Context, r *domain.OperationRecord) (err error) {
	if r == nil || r.ID == "" || !r.Kind.Valid() {
		return storage.ErrInvalidInput
	}
	defer observe("insert_operation", time.Now(), &err)

	query := `
		INSERT INTO operations (` + operationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var signature *string
	if r.Signature != "" {
		signature = &r.Signature
	}

	_, err = s.pool.Exec(ctx, query,
		r.ID, string(r.Kind), r.Owner, int64(r.Amount), r.StakeAccount,
		signature, string(r.Status), r.Error, r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *OperationJournal) GetByID(ctx context.Context, id string) (r *domain.OperationRecord, err error) {
	defer observe("get_operation", time.Now(), &err)

	query := `SELECT ` + operationColumns + ` FROM operations WHERE id = $1`

	r, err = scanOperation(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get operation by id: %w", err)
	}
	return r, nil
}

// GetBySignature retrieves a record by transaction signature.
func (s *OperationJournal) GetBySignature(ctx context.Context, signature string) (r *domain.OperationRecord, err error) {
	defer observe("get_operation", time.Now(), &err)

	query := `SELECT ` + operationColumns + ` FROM operations WHERE signature = $1`

	r, err = scanOperation(s.pool.QueryRow(ctx, query, signature))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get operation by signature: %w", err)
	}
	return r, nil
}

// GetByOwner retrieves up to limit records for an owner, newest first.
func (s *OperationJournal) GetByOwner(ctx context.Context, owner string, limit int) (_ []*domain.OperationRecord, err error) {
	defer observe("list_operations", time.Now(), &err)

	query := `
		SELECT ` + operationColumns + `
		FROM operations
		WHERE owner = $1
		ORDER BY created_at DESC, id ASC
	`
	args := []any{owner}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get operations by owner: %w", err)
	}
	defer rows.Close()

	var records []*domain.OperationRecord
	for rows.Next() {
		r, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operation rows: %w", err)
	}
	return records, nil
}

// scanOperation scans a single row into an OperationRecord.
func scanOperation(row pgx.Row) (*domain.OperationRecord, error) {
	var (
		r         domain.OperationRecord
		kind      string
		status    string
		amount    int64
		signature *string
	)

	err := row.Scan(
		&r.ID, &kind, &r.Owner, &amount, &r.StakeAccount,
		&signature, &status, &r.Error, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Kind = domain.OperationKind(kind)
	r.Status = domain.OperationStatus(status)
	r.Amount = uint64(amount)
	if signature != nil {
		r.Signature = *signature
	}
	return &r, nil
}
