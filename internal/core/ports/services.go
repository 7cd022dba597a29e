package ports

import (
	"context"
	"time"

	"wager-ledger/internal/core/domain"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(username string, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Username string
	Role     domain.Role
}

// IdempotencyCache stores serialized responses keyed by client idempotency keys.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventPublisher ships committed ledger events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
	Close() error
}

// --- Service Ports (Business Logic) ---

// AuthService defines registration and login.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.Account, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for account registration.
type RegisterRequest struct {
	Username  string
	Password  string
	AvatarRef *string
}

// BettingService places bet batches.
type BettingService interface {
	PlaceBet(ctx context.Context, req PlaceBetRequest) (*domain.Voucher, error)
}

// PlaceBetRequest holds input for one bet batch.
type PlaceBetRequest struct {
	Username       string
	Numbers        []string
	StakePerNumber int64
	IdempotencyKey string // optional
}

// SettlementService settles a session's pending bets.
type SettlementService interface {
	Settle(ctx context.Context, req SettleRequest) (*SettlementResult, error)
}

// SettleRequest holds operator input for a settlement pass.
type SettleRequest struct {
	Session       domain.Session
	WinningNumber string
}

// Payout is the total credited to one account in a settlement pass.
type Payout struct {
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
}

// SettlementResult summarises a settlement pass.
type SettlementResult struct {
	Session       domain.Session `json:"session"`
	WinningNumber string         `json:"winning_number"`
	PayoutRate    string         `json:"payout_rate"`
	Payouts       []Payout       `json:"payouts"`
	Won           int            `json:"won"`
	Lost          int            `json:"lost"`
	Skipped       int            `json:"skipped"` // already terminal when reached
	Failed        int            `json:"failed"`  // left PENDING for the next pass
}

// AccountService covers balance top-ups and account reads.
type AccountService interface {
	TopUp(ctx context.Context, username string, amount int64) (*domain.Account, error)
	GetAccount(ctx context.Context, username string) (*domain.Account, error)
	ListBets(ctx context.Context, username string, limit int) ([]domain.Bet, error)
}

// BlockListService is operator block-list maintenance.
type BlockListService interface {
	SetBlock(ctx context.Context, mode domain.BlockMode, value string) ([]string, error)
	Remove(ctx context.Context, number string) error
	Clear(ctx context.Context) error
	List(ctx context.Context) ([]string, error)
}

// MarketService manages the snapshot, daily history and predictions.
type MarketService interface {
	GetSnapshot(ctx context.Context) (*domain.MarketSnapshot, error)
	UpdateSnapshot(ctx context.Context, snapshot domain.MarketSnapshot) (*domain.MarketSnapshot, error)
	UpsertDailyHistory(ctx context.Context, date string, morning, evening *string) (*domain.HistoryRecord, error)
	ListHistory(ctx context.Context, limit int) ([]domain.HistoryRecord, error)
	Prediction(ctx context.Context) (*Prediction, error)
}

// Prediction is the informational context shown next to the bet form.
type Prediction struct {
	Label          string    `json:"label,omitempty"`
	Formula1       string    `json:"formula1,omitempty"`
	Formula2       string    `json:"formula2,omitempty"`
	Source         string    `json:"source,omitempty"` // morning or evening
	Message        string    `json:"message,omitempty"`
	DoublesWarning bool      `json:"doubles_warning"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}
