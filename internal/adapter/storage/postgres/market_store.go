package postgres

import (
	"context"
	"errors"
	"fmt"

	"wager-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// MarketStore implements ports.MarketStore on a single-row table.
type MarketStore struct {
	pool Pool
}

// NewMarketStore creates a new MarketStore.
func NewMarketStore(pool Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// GetSnapshot returns the current snapshot, or an empty one before the first write.
func (s *MarketStore) GetSnapshot(ctx context.Context) (*domain.MarketSnapshot, error) {
	query := `SELECT morning, evening, set_value, value, updated_at FROM market_snapshot WHERE id = 1`

	m := &domain.MarketSnapshot{}
	err := s.pool.QueryRow(ctx, query).Scan(&m.Morning, &m.Evening, &m.Set, &m.Value, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.MarketSnapshot{}, nil
		}
		return nil, fmt.Errorf("get market snapshot: %w", err)
	}
	return m, nil
}

// PutSnapshot replaces the snapshot in place.
func (s *MarketStore) PutSnapshot(ctx context.Context, m *domain.MarketSnapshot) error {
	query := `INSERT INTO market_snapshot (id, morning, evening, set_value, value, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			morning = EXCLUDED.morning, evening = EXCLUDED.evening,
			set_value = EXCLUDED.set_value, value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	if _, err := s.pool.Exec(ctx, query, m.Morning, m.Evening, m.Set, m.Value, m.UpdatedAt); err != nil {
		return fmt.Errorf("put market snapshot: %w", err)
	}
	return nil
}
