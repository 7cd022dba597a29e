package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"wager-ledger/internal/core/domain"
	"wager-ledger/internal/core/ports"
	"wager-ledger/internal/metrics"
	"wager-ledger/pkg/apperror"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var maxPayout = decimal.NewFromInt(math.MaxInt64)

// PayoutRateFunc returns the payout multiplier in effect right now.
type PayoutRateFunc func() (decimal.Decimal, error)

// SettlementServiceImpl implements ports.SettlementService. Accounts are
// settled in parallel on a bounded pool; one account's bets run in order
// so their credits never race each other.
type SettlementServiceImpl struct {
	accounts  ports.AccountStore
	ledger    ports.LedgerStore
	publisher ports.EventPublisher
	rate      PayoutRateFunc
	settings  LedgerSettings
	pool      *ants.Pool
	log       zerolog.Logger
	now       func() time.Time
}

// NewSettlementService creates the service and its worker pool. Call
// Close to release the pool.
func NewSettlementService(
	accounts ports.AccountStore,
	ledger ports.LedgerStore,
	publisher ports.EventPublisher,
	rate PayoutRateFunc,
	settings LedgerSettings,
	log zerolog.Logger,
) (*SettlementServiceImpl, error) {
	pool, err := ants.NewPool(settings.SettleWorkers)
	if err != nil {
		return nil, fmt.Errorf("creating settlement pool: %w", err)
	}
	return &SettlementServiceImpl{
		accounts:  accounts,
		ledger:    ledger,
		publisher: publisher,
		rate:      rate,
		settings:  settings,
		pool:      pool,
		log:       log,
		now:       time.Now,
	}, nil
}

// Close releases the worker pool.
func (s *SettlementServiceImpl) Close() {
	s.log.Info().Int("running_workers", s.pool.Running()).Msg("releasing settlement pool")
	s.pool.Release()
}

// tally accumulates the outcome of one settlement pass.
type tally struct {
	mu      sync.Mutex
	payouts map[string]int64
	won     int
	lost    int
	skipped int
	failed  int
}

func (t *tally) record(username string, status betResult, amount int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch status {
	case resultWon:
		t.won++
		t.payouts[username] += amount
	case resultLost:
		t.lost++
	case resultSkipped:
		t.skipped++
	default:
		t.failed++
	}
}

type betResult int

const (
	resultFailed betResult = iota
	resultWon
	resultLost
	resultSkipped
)

func (r betResult) label() string {
	switch r {
	case resultWon:
		return "won"
	case resultLost:
		return "lost"
	case resultSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Settle resolves every pending bet of the session against winningNumber.
// Bets that already left PENDING are skipped, so running it twice pays
// nothing extra. A failing bet stays PENDING and never aborts the scan.
func (s *SettlementServiceImpl) Settle(ctx context.Context, req ports.SettleRequest) (*ports.SettlementResult, error) {
	start := time.Now()
	defer func() { metrics.SettlementDuration.Observe(time.Since(start).Seconds()) }()

	if _, ok := domain.ParseSession(string(req.Session)); !ok {
		return nil, apperror.Validation("session must be morning or evening")
	}
	if !domain.IsValidNumber(req.WinningNumber, s.settings.NumberDigits) {
		return nil, apperror.Validation(fmt.Sprintf("winning number must be exactly %d digits", s.settings.NumberDigits))
	}

	rate, err := s.rate()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("payout rate: %w", err))
	}

	pending, err := s.ledger.ListPendingBets(ctx, req.Session)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("list pending bets: %w", err))
	}

	// Group per account keeping placement order.
	var order []string
	byAccount := make(map[string][]domain.Bet)
	for _, b := range pending {
		if _, ok := byAccount[b.Username]; !ok {
			order = append(order, b.Username)
		}
		byAccount[b.Username] = append(byAccount[b.Username], b)
	}

	t := &tally{payouts: make(map[string]int64)}
	var wg sync.WaitGroup
	for _, username := range order {
		username, bets := username, byAccount[username]
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			s.settleAccount(ctx, username, bets, req.WinningNumber, rate, t)
		})
		if err != nil {
			wg.Done()
			s.log.Error().Err(err).Str("username", username).Msg("failed to submit settlement task")
			for range bets {
				t.record(username, resultFailed, 0)
			}
		}
	}
	wg.Wait()

	result := &ports.SettlementResult{
		Session:       req.Session,
		WinningNumber: req.WinningNumber,
		PayoutRate:    rate.String(),
		Payouts:       make([]ports.Payout, 0, len(t.payouts)),
		Won:           t.won,
		Lost:          t.lost,
		Skipped:       t.skipped,
		Failed:        t.failed,
	}
	for username, amount := range t.payouts {
		result.Payouts = append(result.Payouts, ports.Payout{Username: username, Amount: amount})
	}
	sort.Slice(result.Payouts, func(i, j int) bool { return result.Payouts[i].Username < result.Payouts[j].Username })

	s.log.Info().
		Str("session", string(req.Session)).
		Str("winning_number", req.WinningNumber).
		Int("pending", len(pending)).
		Int("won", result.Won).
		Int("lost", result.Lost).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("settlement pass finished")

	return result, nil
}

func (s *SettlementServiceImpl) settleAccount(ctx context.Context, username string, bets []domain.Bet, winning string, rate decimal.Decimal, t *tally) {
	for i := range bets {
		res, amount := s.settleBet(ctx, &bets[i], winning, rate)
		t.record(username, res, amount)
		metrics.SettledBets.WithLabelValues(res.label()).Inc()
		if res == resultWon {
			metrics.PayoutTotal.Add(float64(amount))
		}
	}
}

// settleBet commits one bet's outcome, re-reading the account version on
// conflict up to MaxSettleAttempts times.
func (s *SettlementServiceImpl) settleBet(ctx context.Context, bet *domain.Bet, winning string, rate decimal.Decimal) (betResult, int64) {
	logger := s.log.With().Str("bet_id", bet.ID.String()).Str("username", bet.Username).Logger()

	win := bet.Number == winning
	var winAmount int64
	if win {
		payout := decimal.NewFromInt(bet.Stake).Mul(rate).Floor()
		if payout.GreaterThan(maxPayout) {
			logger.Error().Str("payout", payout.String()).Msg("payout exceeds balance range, bet left pending")
			return resultFailed, 0
		}
		winAmount = payout.IntPart()
	}

	for attempt := 1; attempt <= s.settings.MaxSettleAttempts; attempt++ {
		outcome := domain.Outcome{
			BetID:     bet.ID,
			Status:    domain.BetStatusLose,
			SettledAt: s.now().UTC(),
		}
		if win {
			account, err := s.accounts.Get(ctx, bet.Username)
			if err != nil {
				logger.Error().Err(err).Msg("failed to load account for payout")
				return resultFailed, 0
			}
			if account == nil {
				logger.Error().Msg("winning bet references a missing account")
				return resultFailed, 0
			}
			if account.Balance > math.MaxInt64-winAmount {
				logger.Error().Int64("balance", account.Balance).Int64("win_amount", winAmount).
					Msg("payout would overflow balance, bet left pending")
				return resultFailed, 0
			}
			outcome.Status = domain.BetStatusWin
			outcome.WinAmount = winAmount
			outcome.Credit = &domain.BalanceChange{
				Username:        bet.Username,
				ExpectedVersion: account.Version,
				Delta:           winAmount,
			}
		}

		err := s.ledger.CommitSettlement(ctx, outcome)
		switch {
		case err == nil:
			s.publishSettled(ctx, bet, outcome)
			if win {
				return resultWon, winAmount
			}
			return resultLost, 0
		case errors.Is(err, domain.ErrBetNotPending):
			return resultSkipped, 0
		case errors.Is(err, domain.ErrVersionConflict):
			metrics.VersionConflicts.WithLabelValues("settle").Inc()
			logger.Debug().Int("attempt", attempt).Msg("settlement version conflict")
			if ctx.Err() != nil {
				return resultFailed, 0
			}
		default:
			logger.Error().Err(err).Msg("failed to commit settlement")
			return resultFailed, 0
		}
	}

	logger.Warn().Int("attempts", s.settings.MaxSettleAttempts).Msg("settlement retries exhausted, bet left pending")
	return resultFailed, 0
}

func (s *SettlementServiceImpl) publishSettled(ctx context.Context, bet *domain.Bet, o domain.Outcome) {
	settled := *bet
	settled.Status = o.Status
	settled.WinAmount = o.WinAmount
	settled.SettledAt = &o.SettledAt

	event := domain.LedgerEvent{
		Type:       domain.EventBetSettled,
		Key:        bet.Username,
		Payload:    settled,
		OccurredAt: o.SettledAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("bet_id", bet.ID.String()).Msg("failed to publish bet.settled")
	}
}
