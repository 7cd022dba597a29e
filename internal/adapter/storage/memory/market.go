package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wager-ledger/internal/core/domain"
)

// MarketStore implements ports.MarketStore.
type MarketStore struct {
	s *Store
}

func (m *MarketStore) GetSnapshot(_ context.Context) (*domain.MarketSnapshot, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	snap := m.s.snapshot
	return &snap, nil
}

func (m *MarketStore) PutSnapshot(_ context.Context, snapshot *domain.MarketSnapshot) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	m.s.snapshot = *snapshot
	return nil
}

// HistoryStore implements ports.HistoryStore.
type HistoryStore struct {
	s *Store
}

func (h *HistoryStore) Upsert(_ context.Context, date string, morning, evening *string) (*domain.HistoryRecord, error) {
	if _, err := time.Parse(domain.HistoryDateLayout, date); err != nil {
		return nil, fmt.Errorf("upsert daily history: invalid date %q", date)
	}

	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	existing, ok := h.s.history[date]
	if !ok {
		existing = domain.HistoryRecord{Date: date}
	}
	merged := existing.Merge(morning, evening)
	h.s.history[date] = merged
	return &merged, nil
}

func (h *HistoryStore) List(_ context.Context, limit int) ([]domain.HistoryRecord, error) {
	h.s.mu.RLock()
	defer h.s.mu.RUnlock()

	out := make([]domain.HistoryRecord, 0, len(h.s.history))
	for _, r := range h.s.history {
		out = append(out, r)
	}
	// YYYY-MM-DD sorts lexically.
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
