package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wager-ledger/internal/core/domain"
	"wager-ledger/internal/core/ports"
	"wager-ledger/internal/formula"
	"wager-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 365

	labelForTomorrow = "for tomorrow"
	labelForEvening  = "for evening"
	msgMarketClosed  = "market not open yet"
)

// MarketServiceImpl implements ports.MarketService.
type MarketServiceImpl struct {
	market   ports.MarketStore
	history  ports.HistoryStore
	settings LedgerSettings
	log      zerolog.Logger
	now      func() time.Time
}

func NewMarketService(market ports.MarketStore, history ports.HistoryStore, settings LedgerSettings, log zerolog.Logger) *MarketServiceImpl {
	return &MarketServiceImpl{
		market:   market,
		history:  history,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

func (s *MarketServiceImpl) GetSnapshot(ctx context.Context) (*domain.MarketSnapshot, error) {
	snap, err := s.market.GetSnapshot(ctx)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("get snapshot: %w", err))
	}
	return snap, nil
}

// UpdateSnapshot replaces the current snapshot. Empty fields mean the
// value has not been published yet.
func (s *MarketServiceImpl) UpdateSnapshot(ctx context.Context, snap domain.MarketSnapshot) (*domain.MarketSnapshot, error) {
	snap.Morning = strings.TrimSpace(snap.Morning)
	snap.Evening = strings.TrimSpace(snap.Evening)
	snap.Set = strings.TrimSpace(snap.Set)
	snap.Value = strings.TrimSpace(snap.Value)

	for name, v := range map[string]string{"morning": snap.Morning, "evening": snap.Evening} {
		if v != "" && !domain.IsValidNumber(v, s.settings.NumberDigits) {
			return nil, apperror.ErrInvalidMarketInput(fmt.Sprintf("%s must be exactly %d digits", name, s.settings.NumberDigits))
		}
	}
	if !formula.ValidOperand(snap.Set) {
		return nil, apperror.ErrInvalidMarketInput("set must be a decimal number")
	}
	if !formula.ValidOperand(snap.Value) {
		return nil, apperror.ErrInvalidMarketInput("value must be a decimal number")
	}

	snap.UpdatedAt = s.now().UTC()
	if err := s.market.PutSnapshot(ctx, &snap); err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("put snapshot: %w", err))
	}
	s.log.Info().Str("morning", snap.Morning).Str("evening", snap.Evening).Msg("market snapshot updated")
	return &snap, nil
}

// UpsertDailyHistory records results for date, keeping any value already
// stored for that day.
func (s *MarketServiceImpl) UpsertDailyHistory(ctx context.Context, date string, morning, evening *string) (*domain.HistoryRecord, error) {
	date = strings.TrimSpace(date)
	if _, err := time.Parse(domain.HistoryDateLayout, date); err != nil {
		return nil, apperror.ErrInvalidMarketInput("date must be formatted as YYYY-MM-DD")
	}
	if morning == nil && evening == nil {
		return nil, apperror.ErrInvalidMarketInput("morning or evening is required")
	}
	for name, v := range map[string]*string{"morning": morning, "evening": evening} {
		if v != nil && !domain.IsValidNumber(*v, s.settings.NumberDigits) {
			return nil, apperror.ErrInvalidMarketInput(fmt.Sprintf("%s must be exactly %d digits", name, s.settings.NumberDigits))
		}
	}

	rec, err := s.history.Upsert(ctx, date, morning, evening)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("upsert history: %w", err))
	}
	return rec, nil
}

func (s *MarketServiceImpl) ListHistory(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	records, err := s.history.List(ctx, limit)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("list history: %w", err))
	}
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	return records, nil
}

// Prediction builds the candidate numbers for the next draw from the
// latest published result.
func (s *MarketServiceImpl) Prediction(ctx context.Context) (*ports.Prediction, error) {
	snap, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.settings.Location)
	p := &ports.Prediction{
		DoublesWarning: now.Weekday() == time.Monday || now.Weekday() == time.Friday,
		GeneratedAt:    now.UTC(),
	}

	switch {
	case snap.Evening != "":
		p.Label = labelForTomorrow
		p.Source = string(domain.SessionEvening)
		p.Formula1 = formula.Display(formula.Formula1(snap.Evening))
	case snap.Morning != "":
		p.Label = labelForEvening
		p.Source = string(domain.SessionMorning)
		p.Formula1 = formula.Display(formula.Formula1(snap.Morning))
		p.Formula2 = formula.Display(formula.Formula2(snap.Set, snap.Value))
	default:
		p.Message = msgMarketClosed
	}
	return p, nil
}
