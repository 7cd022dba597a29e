package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"wager-ledger/internal/core/domain"
	"wager-ledger/internal/core/ports"
	"wager-ledger/internal/metrics"
	"wager-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const idempotencyTTL = 24 * time.Hour

// BettingServiceImpl implements ports.BettingService with optimistic
// concurrency on the account version.
type BettingServiceImpl struct {
	accounts  ports.AccountStore
	ledger    ports.LedgerStore
	blocks    ports.BlockList
	cache     ports.IdempotencyCache
	publisher ports.EventPublisher
	settings  LedgerSettings
	log       zerolog.Logger
	now       func() time.Time
}

// NewBettingService creates a new BettingServiceImpl.
func NewBettingService(
	accounts ports.AccountStore,
	ledger ports.LedgerStore,
	blocks ports.BlockList,
	cache ports.IdempotencyCache,
	publisher ports.EventPublisher,
	settings LedgerSettings,
	log zerolog.Logger,
) *BettingServiceImpl {
	return &BettingServiceImpl{
		accounts:  accounts,
		ledger:    ledger,
		blocks:    blocks,
		cache:     cache,
		publisher: publisher,
		settings:  settings,
		log:       log,
		now:       time.Now,
	}
}

// PlaceBet debits len(Numbers)*StakePerNumber and records one pending bet
// per number, all or nothing. Version conflicts re-run the whole attempt
// against fresh state up to MaxPlaceAttempts times.
func (s *BettingServiceImpl) PlaceBet(ctx context.Context, req ports.PlaceBetRequest) (*domain.Voucher, error) {
	voucher, err := s.placeBet(ctx, req)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			metrics.PlaceRejections.WithLabelValues(appErr.Code).Inc()
		}
		return nil, err
	}
	return voucher, nil
}

func (s *BettingServiceImpl) placeBet(ctx context.Context, req ports.PlaceBetRequest) (*domain.Voucher, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.Username, req.IdempotencyKey)
		if cached := s.cachedVoucher(ctx, idempKey); cached != nil {
			if !sameRequest(cached, req) {
				return nil, apperror.ErrInvalidBet("Idempotency-Key was already used for a different bet").
					WithDetail("idempotency_key", req.IdempotencyKey)
			}
			return cached, nil
		}
	}

	for attempt := 1; ; attempt++ {
		voucher, err := s.tryPlace(ctx, req)
		if err == nil {
			s.afterCommit(ctx, idempKey, voucher)
			return voucher, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}

		metrics.VersionConflicts.WithLabelValues("place").Inc()
		s.log.Debug().Str("username", req.Username).Int("attempt", attempt).Msg("placement version conflict")

		if attempt >= s.settings.MaxPlaceAttempts {
			if s.settings.MaxPlaceAttempts == 1 {
				return nil, apperror.ErrConcurrentModification()
			}
			s.log.Warn().Str("username", req.Username).Int("attempts", attempt).Msg("placement retries exhausted")
			return nil, apperror.ErrRetryLater()
		}
		if err := ctx.Err(); err != nil {
			return nil, apperror.ErrStorageUnavailable(err)
		}
	}
}

// validate checks the request shape: numbers first, then stake.
func (s *BettingServiceImpl) validate(req ports.PlaceBetRequest) error {
	if len(req.Numbers) == 0 {
		return apperror.ErrInvalidBet("at least one number is required")
	}
	for _, n := range req.Numbers {
		if !domain.IsValidNumber(n, s.settings.NumberDigits) {
			return apperror.ErrInvalidBet(fmt.Sprintf("number %q must be exactly %d digits", n, s.settings.NumberDigits)).
				WithDetail("number", n)
		}
	}
	if req.StakePerNumber < s.settings.MinStake {
		return apperror.ErrInvalidBet(fmt.Sprintf("stake per number must be at least %d", s.settings.MinStake)).
			WithDetail("min_stake", s.settings.MinStake)
	}
	if req.StakePerNumber > math.MaxInt64/int64(len(req.Numbers)) {
		return apperror.ErrInvalidBet("total cost is too large")
	}
	if decimal.NewFromInt(req.StakePerNumber).Mul(s.settings.PayoutRate).GreaterThan(maxPayout) {
		return apperror.ErrInvalidBet("stake per number is too large to pay out")
	}
	return nil
}

// tryPlace runs one read-check-commit cycle. A returned
// domain.ErrVersionConflict means the account moved underneath it.
func (s *BettingServiceImpl) tryPlace(ctx context.Context, req ports.PlaceBetRequest) (*domain.Voucher, error) {
	for _, n := range req.Numbers {
		blocked, err := s.blocks.IsBlocked(ctx, n)
		if err != nil {
			return nil, apperror.ErrStorageUnavailable(fmt.Errorf("check block list: %w", err))
		}
		if blocked {
			return nil, apperror.ErrBlockedNumber(n)
		}
	}

	account, err := s.accounts.Get(ctx, req.Username)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound(req.Username)
	}

	totalCost := int64(len(req.Numbers)) * req.StakePerNumber
	if totalCost > account.Balance {
		return nil, apperror.ErrInsufficientBalance(totalCost - account.Balance)
	}

	now := s.now().UTC()
	session := domain.SessionAt(now, s.settings.Location, s.settings.CutoffMinutes)
	batchID := uuid.New()

	bets := make([]domain.Bet, len(req.Numbers))
	for i, n := range req.Numbers {
		bets[i] = domain.Bet{
			ID:        uuid.New(),
			Username:  account.Username,
			Number:    n,
			Stake:     req.StakePerNumber,
			Status:    domain.BetStatusPending,
			Session:   session,
			BatchID:   batchID,
			CreatedAt: now,
		}
	}

	debit := domain.BalanceChange{
		Username:        account.Username,
		ExpectedVersion: account.Version,
		Delta:           -totalCost,
	}
	balance, err := s.ledger.CommitPlacement(ctx, debit, bets)
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("commit placement: %w", err))
	}

	return &domain.Voucher{
		BatchID:        batchID,
		Username:       account.Username,
		Numbers:        append([]string(nil), req.Numbers...),
		StakePerNumber: req.StakePerNumber,
		TotalCost:      totalCost,
		Session:        session,
		BalanceAfter:   balance,
		CreatedAt:      now,
	}, nil
}

// afterCommit runs the best-effort side effects of a committed placement.
func (s *BettingServiceImpl) afterCommit(ctx context.Context, idempKey string, v *domain.Voucher) {
	metrics.BetsPlaced.WithLabelValues(string(v.Session)).Add(float64(len(v.Numbers)))
	metrics.StakeTotal.Add(float64(v.TotalCost))

	s.log.Info().
		Str("username", v.Username).
		Str("batch_id", v.BatchID.String()).
		Int("lines", len(v.Numbers)).
		Int64("total_cost", v.TotalCost).
		Str("session", string(v.Session)).
		Msg("bet batch placed")

	if idempKey != "" {
		if data, err := json.Marshal(v); err == nil {
			if err := s.cache.Set(ctx, idempKey, data, idempotencyTTL); err != nil {
				s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache voucher")
			}
		}
	}

	event := domain.LedgerEvent{
		Type:       domain.EventBetPlaced,
		Key:        v.Username,
		Payload:    v,
		OccurredAt: v.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("batch_id", v.BatchID.String()).Msg("failed to publish bet.placed")
	}
}

func (s *BettingServiceImpl) cachedVoucher(ctx context.Context, key string) *domain.Voucher {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("idempotency cache lookup failed, placing normally")
		return nil
	}
	if data == nil {
		return nil
	}
	var v domain.Voucher
	if err := json.Unmarshal(data, &v); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached voucher")
		return nil
	}
	return &v
}

// sameRequest reports whether req asks for the bet recorded in v.
func sameRequest(v *domain.Voucher, req ports.PlaceBetRequest) bool {
	return v.StakePerNumber == req.StakePerNumber && slices.Equal(v.Numbers, req.Numbers)
}
