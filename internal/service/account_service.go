package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"wager-ledger/internal/core/domain"
	"wager-ledger/internal/core/ports"
	"wager-ledger/internal/metrics"
	"wager-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	defaultBetListLimit = 50
	maxBetListLimit     = 200
)

// AccountServiceImpl implements ports.AccountService.
type AccountServiceImpl struct {
	accounts  ports.AccountStore
	ledger    ports.LedgerStore
	publisher ports.EventPublisher
	settings  LedgerSettings
	log       zerolog.Logger
}

// NewAccountService creates a new AccountServiceImpl.
func NewAccountService(
	accounts ports.AccountStore,
	ledger ports.LedgerStore,
	publisher ports.EventPublisher,
	settings LedgerSettings,
	log zerolog.Logger,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		accounts:  accounts,
		ledger:    ledger,
		publisher: publisher,
		settings:  settings,
		log:       log,
	}
}

// TopUp credits amount to username through the same versioned
// compare-and-set every balance write goes through.
func (s *AccountServiceImpl) TopUp(ctx context.Context, username string, amount int64) (*domain.Account, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	for attempt := 1; ; attempt++ {
		account, err := s.accounts.Get(ctx, username)
		if err != nil {
			return nil, apperror.ErrStorageUnavailable(fmt.Errorf("get account: %w", err))
		}
		if account == nil {
			return nil, apperror.ErrAccountNotFound(username)
		}
		if account.Balance > math.MaxInt64-amount {
			return nil, apperror.ErrInvalidAmount().WithDetail("reason", "balance would overflow")
		}

		expected := account.Version
		account.Balance += amount
		err = s.accounts.CompareAndSet(ctx, expected, account)
		if err == nil {
			s.log.Info().Str("username", username).Int64("amount", amount).Int64("balance", account.Balance).Msg("account topped up")
			s.publishTopUp(ctx, account, amount)
			return account, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, apperror.ErrStorageUnavailable(fmt.Errorf("update account: %w", err))
		}

		metrics.VersionConflicts.WithLabelValues("topup").Inc()
		if attempt >= s.settings.MaxPlaceAttempts {
			if s.settings.MaxPlaceAttempts == 1 {
				return nil, apperror.ErrConcurrentModification()
			}
			return nil, apperror.ErrRetryLater()
		}
		if err := ctx.Err(); err != nil {
			return nil, apperror.ErrStorageUnavailable(err)
		}
	}
}

func (s *AccountServiceImpl) publishTopUp(ctx context.Context, account *domain.Account, amount int64) {
	event := domain.LedgerEvent{
		Type: domain.EventTopup,
		Key:  account.Username,
		Payload: map[string]interface{}{
			"username": account.Username,
			"amount":   amount,
			"balance":  account.Balance,
		},
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("username", account.Username).Msg("failed to publish account.topup")
	}
}

func (s *AccountServiceImpl) GetAccount(ctx context.Context, username string) (*domain.Account, error) {
	account, err := s.accounts.Get(ctx, username)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound(username)
	}
	return account, nil
}

// ListBets returns the newest bets of username. limit is clamped to
// [1, 200] and defaults to 50.
func (s *AccountServiceImpl) ListBets(ctx context.Context, username string, limit int) ([]domain.Bet, error) {
	switch {
	case limit <= 0:
		limit = defaultBetListLimit
	case limit > maxBetListLimit:
		limit = maxBetListLimit
	}
	bets, err := s.ledger.ListBetsByAccount(ctx, username, limit)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("list bets: %w", err))
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	return bets, nil
}
