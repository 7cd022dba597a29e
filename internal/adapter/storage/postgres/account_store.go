package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wager-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// AccountStore implements ports.AccountStore. The version column is the
// optimistic concurrency token.
type AccountStore struct {
	pool Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Create inserts a new account at version 1.
func (s *AccountStore) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (username, password_hash, balance, role, avatar_ref, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		a.Username, a.PasswordHash, a.Balance, string(a.Role), a.AvatarRef, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return domain.ErrAccountExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	a.Version = 1
	return nil
}

// Get fetches an account by username. Returns nil, nil if absent.
func (s *AccountStore) Get(ctx context.Context, username string) (*domain.Account, error) {
	query := `SELECT username, password_hash, balance, role, avatar_ref, version, created_at, updated_at
		FROM accounts WHERE username = $1`

	a := &domain.Account{}
	var role string
	err := s.pool.QueryRow(ctx, query, username).Scan(
		&a.Username, &a.PasswordHash, &a.Balance, &role, &a.AvatarRef,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.Role = domain.Role(role)
	return a, nil
}

// CompareAndSet overwrites the mutable account fields if the stored version
// still equals expectedVersion. On success a.Version holds the new version.
func (s *AccountStore) CompareAndSet(ctx context.Context, expectedVersion int64, a *domain.Account) error {
	if a.Balance < 0 {
		return domain.ErrNegativeBalance
	}

	query := `UPDATE accounts
		SET password_hash = $1, balance = $2, role = $3, avatar_ref = $4, version = version + 1, updated_at = $5
		WHERE username = $6 AND version = $7`

	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, query,
		a.PasswordHash, a.Balance, string(a.Role), a.AvatarRef, now, a.Username, expectedVersion,
	)
	if err != nil {
		if isPgError(err, pgCheckViolation) {
			return domain.ErrNegativeBalance
		}
		return fmt.Errorf("compare and set account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	a.Version = expectedVersion + 1
	a.UpdatedAt = now
	return nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
