package postgres

import (
	"context"
	"fmt"

	"wager-ledger/internal/core/domain"
)

// HistoryStore implements ports.HistoryStore.
type HistoryStore struct {
	pool Pool
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(pool Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Upsert merges the given results into the day's row. COALESCE keeps a
// stored value over an incoming one, so concurrent or repeated polls never
// erase a result.
func (s *HistoryStore) Upsert(ctx context.Context, date string, morning, evening *string) (*domain.HistoryRecord, error) {
	query := `INSERT INTO daily_history (day, morning, evening, updated_at)
		VALUES ($1::date, $2, $3, NOW())
		ON CONFLICT (day) DO UPDATE SET
			morning = COALESCE(daily_history.morning, EXCLUDED.morning),
			evening = COALESCE(daily_history.evening, EXCLUDED.evening),
			updated_at = NOW()
		RETURNING to_char(day, 'YYYY-MM-DD'), morning, evening`

	r := &domain.HistoryRecord{}
	if err := s.pool.QueryRow(ctx, query, date, morning, evening).Scan(&r.Date, &r.Morning, &r.Evening); err != nil {
		return nil, fmt.Errorf("upsert daily history: %w", err)
	}
	return r, nil
}

// List returns up to limit records, newest day first.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	query := `SELECT to_char(day, 'YYYY-MM-DD'), morning, evening
		FROM daily_history ORDER BY day DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list daily history: %w", err)
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var r domain.HistoryRecord
		if err := rows.Scan(&r.Date, &r.Morning, &r.Evening); err != nil {
			return nil, fmt.Errorf("scan daily history: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily history: %w", err)
	}
	return records, nil
}
