package service

import (
	"errors"
	"testing"

	"wager-ledger/config"
	"wager-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		MinStake:          100,
		PayoutRate:        "80",
		NumberDigits:      2,
		Timezone:          "Asia/Yangon",
		SessionCutoff:     "12:00",
		MaxPlaceAttempts:  3,
		MaxSettleAttempts: 3,
		SettleWorkers:     4,
	}
}

func testSettings(t *testing.T) LedgerSettings {
	t.Helper()
	s, err := NewLedgerSettings(testLedgerConfig())
	require.NoError(t, err)
	return s
}

// requireAppError asserts err is an *apperror.AppError with the given code.
func requireAppError(t *testing.T, err error, code string) *apperror.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}
