package memory

import (
	"context"
	"sort"

	"wager-ledger/internal/core/domain"
)

// LedgerStore implements ports.LedgerStore.
type LedgerStore struct {
	s *Store
}

func (l *LedgerStore) CommitPlacement(_ context.Context, debit domain.BalanceChange, bets []domain.Bet) (int64, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	next, err := l.s.applyLocked(debit)
	if err != nil {
		return 0, err
	}

	l.s.accounts[next.Username] = next
	for i := range bets {
		b := bets[i]
		l.s.bets[b.ID] = &b
		l.s.betOrder = append(l.s.betOrder, b.ID)
	}
	return next.Balance, nil
}

func (l *LedgerStore) CommitSettlement(_ context.Context, o domain.Outcome) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	bet, ok := l.s.bets[o.BetID]
	if !ok || bet.IsTerminal() {
		return domain.ErrBetNotPending
	}

	var credited *domain.Account
	if o.Credit != nil {
		next, err := l.s.applyLocked(*o.Credit)
		if err != nil {
			return err
		}
		credited = next
	}

	settledAt := o.SettledAt
	bet.Status = o.Status
	bet.WinAmount = o.WinAmount
	bet.SettledAt = &settledAt
	if credited != nil {
		l.s.accounts[credited.Username] = credited
	}
	return nil
}

func (l *LedgerStore) ListPendingBets(_ context.Context, session domain.Session) ([]domain.Bet, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	var out []domain.Bet
	for _, id := range l.s.betOrder {
		b := l.s.bets[id]
		if b.Session == session && b.Status == domain.BetStatusPending {
			out = append(out, copyBet(b))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (l *LedgerStore) ListBetsByAccount(_ context.Context, username string, limit int) ([]domain.Bet, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	var out []domain.Bet
	for i := len(l.s.betOrder) - 1; i >= 0; i-- {
		b := l.s.bets[l.s.betOrder[i]]
		if b.Username == username {
			out = append(out, copyBet(b))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyBet(b *domain.Bet) domain.Bet {
	c := *b
	if b.SettledAt != nil {
		t := *b.SettledAt
		c.SettledAt = &t
	}
	return c
}
