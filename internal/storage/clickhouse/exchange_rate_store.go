package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solido-stake/internal/domain"
	"solido-stake/internal/storage"
)

// ExchangeRateStore implements storage.ExchangeRateStore using ClickHouse.
type ExchangeRateStore struct {
	conn *Conn
}

// NewExchangeRateStore creates a new ExchangeRateStore.
func NewExchangeRateStore(conn *Conn) *ExchangeRateStore {
	return &ExchangeRateStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ExchangeRateStore = (*ExchangeRateStore)(nil)

// Insert adds a new point. Returns ErrDuplicateKey if timestamp_ms exists.
// MergeTree does not enforce uniqueness, so the key is checked before insert.
func (s *ExchangeRateStore) Insert(ctx context.Context, p *domain.ExchangeRatePoint) (err error) {
	if p == nil || p.TimestampMs <= 0 {
		return storage.ErrInvalidInput
	}
	defer observe("insert_rate", time.Now(), &err)

	exists, err := s.exists(ctx, p.TimestampMs)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO exchange_rates (
			timestamp_ms, epoch, sol_balance, st_sol_supply, rate, tvl
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		uint64(p.TimestampMs), p.Epoch, p.SolBalance,
		p.StSolSupply, p.Rate, p.TVL,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves points within [start, end] (inclusive), ordered by timestamp ASC.
func (s *ExchangeRateStore) GetByTimeRange(ctx context.Context, start, end int64) (_ []*domain.ExchangeRatePoint, err error) {
	if start > end || end < 0 {
		return nil, storage.ErrInvalidInput
	}
	if start < 0 {
		start = 0
	}
	defer observe("range_rates", time.Now(), &err)

	query := `
		SELECT timestamp_ms, epoch, sol_balance, st_sol_supply, rate, tvl
		FROM exchange_rates
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanExchangeRates(rows)
}

// GetLatest retrieves the most recent point. Returns ErrNotFound if empty.
func (s *ExchangeRateStore) GetLatest(ctx context.Context) (_ *domain.ExchangeRatePoint, err error) {
	defer observe("latest_rate", time.Now(), &err)

	query := `
		SELECT timestamp_ms, epoch, sol_balance, st_sol_supply, rate, tvl
		FROM exchange_rates
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer rows.Close()

	points, err := scanExchangeRates(rows)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	return points[0], nil
}

func (s *ExchangeRateStore) exists(ctx context.Context, timestampMs int64) (bool, error) {
	query := `SELECT count(*) FROM exchange_rates WHERE timestamp_ms = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanExchangeRates scans multiple rows.
func scanExchangeRates(rows chRows) ([]*domain.ExchangeRatePoint, error) {
	var points []*domain.ExchangeRatePoint

	for rows.Next() {
		var p domain.ExchangeRatePoint
		var timestampMs uint64

		err := rows.Scan(
			&timestampMs, &p.Epoch, &p.SolBalance,
			&p.StSolSupply, &p.Rate, &p.TVL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan exchange rate row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchange rate rows: %w", err)
	}

	return points, nil
}
