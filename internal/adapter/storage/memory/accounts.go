package memory

import (
	"context"

	"wager-ledger/internal/core/domain"
)

// AccountStore implements ports.AccountStore.
type AccountStore struct {
	s *Store
}

func (a *AccountStore) Create(_ context.Context, account *domain.Account) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if _, ok := a.s.accounts[account.Username]; ok {
		return domain.ErrAccountExists
	}
	account.Version = 1
	a.s.accounts[account.Username] = account.Clone()
	return nil
}

func (a *AccountStore) Get(_ context.Context, username string) (*domain.Account, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	stored, ok := a.s.accounts[username]
	if !ok {
		return nil, nil
	}
	return stored.Clone(), nil
}

func (a *AccountStore) CompareAndSet(_ context.Context, expectedVersion int64, account *domain.Account) error {
	if account.Balance < 0 {
		return domain.ErrNegativeBalance
	}

	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	stored, ok := a.s.accounts[account.Username]
	if !ok || stored.Version != expectedVersion {
		return domain.ErrVersionConflict
	}

	next := account.Clone()
	next.CreatedAt = stored.CreatedAt
	next.Version = expectedVersion + 1
	next.UpdatedAt = a.s.now()
	a.s.accounts[account.Username] = next

	account.Version = next.Version
	account.UpdatedAt = next.UpdatedAt
	return nil
}

// applyLocked applies a guarded balance change. Caller holds s.mu.
func (s *Store) applyLocked(c domain.BalanceChange) (*domain.Account, error) {
	stored, ok := s.accounts[c.Username]
	if !ok || stored.Version != c.ExpectedVersion || stored.Balance+c.Delta < 0 {
		return nil, domain.ErrVersionConflict
	}
	next := stored.Clone()
	next.Balance += c.Delta
	next.Version++
	next.UpdatedAt = s.now()
	return next, nil
}
