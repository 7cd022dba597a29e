package ports

import (
	"context"

	"wager-ledger/internal/core/domain"
)

// AccountStore owns account records. CompareAndSet is the only way to
// change a stored account; it never retries on its own.
type AccountStore interface {
	// Create inserts a new account with Version 1. Returns domain.ErrAccountExists on duplicates.
	Create(ctx context.Context, account *domain.Account) error
	// Get returns nil, nil when the account does not exist.
	Get(ctx context.Context, username string) (*domain.Account, error)
	// CompareAndSet writes account if the stored version equals expectedVersion,
	// bumping the version. Returns domain.ErrVersionConflict otherwise.
	CompareAndSet(ctx context.Context, expectedVersion int64, account *domain.Account) error
}

// LedgerStore persists bets together with the balance changes they cause.
type LedgerStore interface {
	// CommitPlacement applies debit and inserts bets atomically and returns
	// the new balance. Returns domain.ErrVersionConflict if the guard fails.
	CommitPlacement(ctx context.Context, debit domain.BalanceChange, bets []domain.Bet) (int64, error)
	// CommitSettlement transitions one pending bet and applies its optional
	// credit atomically. Returns domain.ErrBetNotPending if the bet already
	// left PENDING, or domain.ErrVersionConflict if the credit guard fails.
	CommitSettlement(ctx context.Context, outcome domain.Outcome) error
	ListPendingBets(ctx context.Context, session domain.Session) ([]domain.Bet, error)
	ListBetsByAccount(ctx context.Context, username string, limit int) ([]domain.Bet, error)
}

// MarketStore holds the single current market snapshot.
type MarketStore interface {
	// GetSnapshot returns an empty snapshot when none was stored yet.
	GetSnapshot(ctx context.Context) (*domain.MarketSnapshot, error)
	PutSnapshot(ctx context.Context, snapshot *domain.MarketSnapshot) error
}

// HistoryStore keeps one record per calendar day.
type HistoryStore interface {
	// Upsert merges morning/evening into the day's record keeping values already present.
	Upsert(ctx context.Context, date string, morning, evening *string) (*domain.HistoryRecord, error)
	// List returns the newest records first.
	List(ctx context.Context, limit int) ([]domain.HistoryRecord, error)
}

// BlockList is the deny-set of numbers.
type BlockList interface {
	IsBlocked(ctx context.Context, number string) (bool, error)
	Add(ctx context.Context, numbers ...string) error
	Remove(ctx context.Context, number string) error
	Clear(ctx context.Context) error
	List(ctx context.Context) ([]string, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
