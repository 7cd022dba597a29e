package postgres

import (
	"context"
	"errors"
	"fmt"

	"wager-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const betColumns = `id, username, number, stake, status, session, batch_id, win_amount, created_at, settled_at`

// LedgerStore implements ports.LedgerStore. Every mutation runs in its own
// transaction so bet rows and balance changes commit together.
type LedgerStore struct {
	pool       Pool
	transactor *Transactor
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool Pool) *LedgerStore {
	return &LedgerStore{pool: pool, transactor: NewTransactor(pool)}
}

// CommitPlacement debits the account and inserts the batch's bets atomically.
func (s *LedgerStore) CommitPlacement(ctx context.Context, debit domain.BalanceChange, bets []domain.Bet) (int64, error) {
	var balance int64
	err := s.transactor.WithinTx(ctx, func(tx pgx.Tx) error {
		b, err := applyBalanceChange(ctx, tx, debit)
		if err != nil {
			return err
		}
		balance = b

		query := `INSERT INTO bets (` + betColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		for _, bet := range bets {
			if _, err := tx.Exec(ctx, query,
				bet.ID, bet.Username, bet.Number, bet.Stake, string(bet.Status), string(bet.Session),
				bet.BatchID, bet.WinAmount, bet.CreatedAt, bet.SettledAt,
			); err != nil {
				return fmt.Errorf("insert bet %s: %w", bet.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// CommitSettlement moves one bet out of PENDING and applies its credit, if any.
func (s *LedgerStore) CommitSettlement(ctx context.Context, o domain.Outcome) error {
	return s.transactor.WithinTx(ctx, func(tx pgx.Tx) error {
		query := `UPDATE bets SET status = $1, win_amount = $2, settled_at = $3
			WHERE id = $4 AND status = 'PENDING'`

		tag, err := tx.Exec(ctx, query, string(o.Status), o.WinAmount, o.SettledAt, o.BetID)
		if err != nil {
			return fmt.Errorf("update bet status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrBetNotPending
		}

		if o.Credit != nil {
			if _, err := applyBalanceChange(ctx, tx, *o.Credit); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListPendingBets returns a session's pending bets in placement order.
func (s *LedgerStore) ListPendingBets(ctx context.Context, session domain.Session) ([]domain.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets
		WHERE session = $1 AND status = 'PENDING' ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, string(session))
	if err != nil {
		return nil, fmt.Errorf("list pending bets: %w", err)
	}
	defer rows.Close()
	return scanBets(rows)
}

// ListBetsByAccount returns an account's most recent bets first.
func (s *LedgerStore) ListBetsByAccount(ctx context.Context, username string, limit int) ([]domain.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets
		WHERE username = $1 ORDER BY created_at DESC, id LIMIT $2`

	rows, err := s.pool.Query(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("list bets by account: %w", err)
	}
	defer rows.Close()
	return scanBets(rows)
}

// applyBalanceChange adds c.Delta to the balance guarded by version and
// non-negativity. No matching row means the guard failed.
func applyBalanceChange(ctx context.Context, tx pgx.Tx, c domain.BalanceChange) (int64, error) {
	query := `UPDATE accounts SET balance = balance + $1, version = version + 1, updated_at = NOW()
		WHERE username = $2 AND version = $3 AND balance + $1 >= 0
		RETURNING balance`

	var balance int64
	err := tx.QueryRow(ctx, query, c.Delta, c.Username, c.ExpectedVersion).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrVersionConflict
		}
		return 0, fmt.Errorf("apply balance change: %w", err)
	}
	return balance, nil
}

func scanBets(rows pgx.Rows) ([]domain.Bet, error) {
	var bets []domain.Bet
	for rows.Next() {
		var (
			b       domain.Bet
			status  string
			session string
		)
		if err := rows.Scan(
			&b.ID, &b.Username, &b.Number, &b.Stake, &status, &session,
			&b.BatchID, &b.WinAmount, &b.CreatedAt, &b.SettledAt,
		); err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		b.Status = domain.BetStatus(status)
		b.Session = domain.Session(session)
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bets: %w", err)
	}
	return bets, nil
}
