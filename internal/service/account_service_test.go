package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"wager-ledger/internal/core/domain"
	"wager-ledger/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupAccountService(t *testing.T) (*AccountServiceImpl, *mocks.MockAccountStore, *mocks.MockLedgerStore, *mocks.MockEventPublisher) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	ledger := mocks.NewMockLedgerStore(ctrl)
	publisher := mocks.NewMockEventPublisher(ctrl)
	return NewAccountService(accounts, ledger, publisher, testSettings(t), newTestLogger()), accounts, ledger, publisher
}

func TestAccountService_TopUp_Success(t *testing.T) {
	svc, accounts, _, publisher := setupAccountService(t)

	accounts.EXPECT().Get(gomock.Any(), "alice").Return(&domain.Account{Username: "alice", Balance: 100, Version: 3}, nil)
	accounts.EXPECT().CompareAndSet(gomock.Any(), int64(3), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, a *domain.Account) error {
			assert.Equal(t, int64(600), a.Balance)
			a.Version = 4
			return nil
		})
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e domain.LedgerEvent) error {
			assert.Equal(t, domain.EventTopup, e.Type)
			return nil
		})

	account, err := svc.TopUp(context.Background(), "alice", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(600), account.Balance)
	assert.Equal(t, int64(4), account.Version)
}

func TestAccountService_TopUp_InvalidAmount(t *testing.T) {
	svc, _, _, _ := setupAccountService(t)

	for _, amount := range []int64{0, -5} {
		_, err := svc.TopUp(context.Background(), "alice", amount)
		requireAppError(t, err, "ACC_002")
	}
}

func TestAccountService_TopUp_NotFound(t *testing.T) {
	svc, accounts, _, _ := setupAccountService(t)

	accounts.EXPECT().Get(gomock.Any(), "ghost").Return(nil, nil)

	_, err := svc.TopUp(context.Background(), "ghost", 100)
	requireAppError(t, err, "ACC_001")
}

func TestAccountService_TopUp_RetriesExhausted(t *testing.T) {
	svc, accounts, _, _ := setupAccountService(t)

	accounts.EXPECT().Get(gomock.Any(), "alice").Return(&domain.Account{Username: "alice", Version: 1}, nil).Times(3)
	accounts.EXPECT().CompareAndSet(gomock.Any(), int64(1), gomock.Any()).Return(domain.ErrVersionConflict).Times(3)

	_, err := svc.TopUp(context.Background(), "alice", 100)
	requireAppError(t, err, "BET_005")
}

func TestAccountService_TopUp_StoreFailure(t *testing.T) {
	svc, accounts, _, _ := setupAccountService(t)

	accounts.EXPECT().Get(gomock.Any(), "alice").Return(nil, errors.New("connection reset"))

	_, err := svc.TopUp(context.Background(), "alice", 100)
	requireAppError(t, err, "SYS_002")
}

func TestAccountService_GetAccount(t *testing.T) {
	svc, accounts, _, _ := setupAccountService(t)

	accounts.EXPECT().Get(gomock.Any(), "alice").Return(&domain.Account{Username: "alice", Balance: 42}, nil)
	accounts.EXPECT().Get(gomock.Any(), "bob").Return(nil, nil)

	account, err := svc.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), account.Balance)

	_, err = svc.GetAccount(context.Background(), "bob")
	requireAppError(t, err, "ACC_001")
}

func TestAccountService_ListBets_ClampsLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 50},
		{-1, 50},
		{10, 10},
		{1000, 200},
	}
	for _, tt := range tests {
		svc, _, ledger, _ := setupAccountService(t)
		ledger.EXPECT().ListBetsByAccount(gomock.Any(), "alice", tt.want).Return(nil, nil)

		bets, err := svc.ListBets(context.Background(), "alice", tt.in)
		require.NoError(t, err)
		assert.NotNil(t, bets)
	}
}

func TestAccountService_ConcurrentTopUps(t *testing.T) {
	m := newMemoryLedger(t)
	m.seed(t, "alice", 0)
	m.accounts.settings.MaxPlaceAttempts = 100

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.accounts.TopUp(context.Background(), "alice", 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), m.balance(t, "alice"))
}
