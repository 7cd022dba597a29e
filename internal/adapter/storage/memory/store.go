// Package memory keeps all ledger state in process. It backs the "memory"
// storage driver and the service-level concurrency tests.
package memory

import (
	"sync"
	"time"

	"wager-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// Store is the shared state behind the per-port views. A single mutex
// covers accounts and bets so ledger commits are atomic.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	bets     map[uuid.UUID]*domain.Bet
	betOrder []uuid.UUID
	snapshot domain.MarketSnapshot
	history  map[string]domain.HistoryRecord
	blocked  map[string]struct{}
	audit    []domain.AuditLog
	now      func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*domain.Account),
		bets:     make(map[uuid.UUID]*domain.Bet),
		history:  make(map[string]domain.HistoryRecord),
		blocked:  make(map[string]struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Accounts returns the account view of the store.
func (s *Store) Accounts() *AccountStore { return &AccountStore{s: s} }

// Ledger returns the bet ledger view of the store.
func (s *Store) Ledger() *LedgerStore { return &LedgerStore{s: s} }

func (s *Store) Market() *MarketStore { return &MarketStore{s: s} }

func (s *Store) History() *HistoryStore { return &HistoryStore{s: s} }

func (s *Store) Blocks() *BlockList { return &BlockList{s: s} }

func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }
