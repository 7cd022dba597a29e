package service

import (
	"fmt"
	"time"

	"wager-ledger/config"

	"github.com/shopspring/decimal"
)

// LedgerSettings is the parsed form of config.LedgerConfig shared by the
// wagering services.
type LedgerSettings struct {
	MinStake          int64
	PayoutRate        decimal.Decimal // rate at startup, used to bound stakes
	NumberDigits      int
	Location          *time.Location
	CutoffMinutes     int
	MaxPlaceAttempts  int
	MaxSettleAttempts int
	SettleWorkers     int
}

// NewLedgerSettings validates and parses cfg.
func NewLedgerSettings(cfg config.LedgerConfig) (LedgerSettings, error) {
	if err := cfg.Validate(); err != nil {
		return LedgerSettings{}, fmt.Errorf("ledger settings: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return LedgerSettings{}, err
	}
	cutoff, err := cfg.CutoffMinutes()
	if err != nil {
		return LedgerSettings{}, err
	}
	rate, err := cfg.PayoutRateDecimal()
	if err != nil {
		return LedgerSettings{}, err
	}
	return LedgerSettings{
		MinStake:          cfg.MinStake,
		PayoutRate:        rate,
		NumberDigits:      cfg.NumberDigits,
		Location:          loc,
		CutoffMinutes:     cutoff,
		MaxPlaceAttempts:  cfg.MaxPlaceAttempts,
		MaxSettleAttempts: cfg.MaxSettleAttempts,
		SettleWorkers:     cfg.SettleWorkers,
	}, nil
}
