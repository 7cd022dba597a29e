package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"wager-ledger/internal/adapter/messaging"
	"wager-ledger/internal/adapter/storage/memory"
	"wager-ledger/internal/core/domain"
	"wager-ledger/internal/core/ports"
	"wager-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// 09:30 in Asia/Yangon.
var morningUTC = time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

type bettingTestDeps struct {
	svc       *BettingServiceImpl
	accounts  *mocks.MockAccountStore
	ledger    *mocks.MockLedgerStore
	blocks    *mocks.MockBlockList
	cache     *mocks.MockIdempotencyCache
	publisher *mocks.MockEventPublisher
}

func setupBettingService(t *testing.T) *bettingTestDeps {
	ctrl := gomock.NewController(t)
	d := &bettingTestDeps{
		accounts:  mocks.NewMockAccountStore(ctrl),
		ledger:    mocks.NewMockLedgerStore(ctrl),
		blocks:    mocks.NewMockBlockList(ctrl),
		cache:     mocks.NewMockIdempotencyCache(ctrl),
		publisher: mocks.NewMockEventPublisher(ctrl),
	}
	d.svc = NewBettingService(d.accounts, d.ledger, d.blocks, d.cache, d.publisher, testSettings(t), newTestLogger())
	d.svc.now = func() time.Time { return morningUTC }
	return d
}

func TestBettingService_PlaceBet_Success(t *testing.T) {
	d := setupBettingService(t)
	ctx := context.Background()

	d.blocks.EXPECT().IsBlocked(gomock.Any(), gomock.Any()).Return(false, nil).Times(2)
	d.accounts.EXPECT().Get(gomock.Any(), "alice").
		Return(&domain.Account{Username: "alice", Balance: 1000, Version: 4}, nil)
	d.ledger.EXPECT().CommitPlacement(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, debit domain.BalanceChange, bets []domain.Bet) (int64, error) {
			assert.Equal(t, int64(4), debit.ExpectedVersion)
			assert.Equal(t, int64(-400), debit.Delta)
			require.Len(t, bets, 2)
			assert.Equal(t, "12", bets[0].Number)
			assert.Equal(t, "34", bets[1].Number)
			assert.Equal(t, bets[0].BatchID, bets[1].BatchID)
			for _, b := range bets {
				assert.Equal(t, domain.BetStatusPending, b.Status)
				assert.Equal(t, domain.SessionMorning, b.Session)
				assert.Equal(t, int64(200), b.Stake)
			}
			return 600, nil
		})
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e domain.LedgerEvent) error {
			assert.Equal(t, domain.EventBetPlaced, e.Type)
			assert.Equal(t, "alice", e.Key)
			return nil
		})

	v, err := d.svc.PlaceBet(ctx, ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12", "34"}, StakePerNumber: 200})
	require.NoError(t, err)
	assert.Equal(t, int64(400), v.TotalCost)
	assert.Equal(t, int64(600), v.BalanceAfter)
	assert.Equal(t, domain.SessionMorning, v.Session)
	assert.Equal(t, []string{"12", "34"}, v.Numbers)
}

func TestBettingService_PlaceBet_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  ports.PlaceBetRequest
	}{
		{"no numbers", ports.PlaceBetRequest{Username: "alice", StakePerNumber: 100}},
		{"short number", ports.PlaceBetRequest{Username: "alice", Numbers: []string{"5"}, StakePerNumber: 100}},
		{"non-digit", ports.PlaceBetRequest{Username: "alice", Numbers: []string{"1a"}, StakePerNumber: 100}},
		{"stake below minimum", ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12"}, StakePerNumber: 99}},
		{"overflowing total", ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12", "13"}, StakePerNumber: 1 << 62}},
		{"payout out of range", ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12"}, StakePerNumber: 1 << 61}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupBettingService(t)
			_, err := d.svc.PlaceBet(context.Background(), tt.req)
			requireAppError(t, err, "BET_001")
		})
	}
}

func TestBettingService_PlaceBet_BlockedNumber(t *testing.T) {
	d := setupBettingService(t)

	d.blocks.EXPECT().IsBlocked(gomock.Any(), "12").Return(false, nil)
	d.blocks.EXPECT().IsBlocked(gomock.Any(), "77").Return(true, nil)

	_, err := d.svc.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12", "77", "34"}, StakePerNumber: 100})
	appErr := requireAppError(t, err, "BET_002")
	assert.Equal(t, "77", appErr.Details["number"])
}

func TestBettingService_PlaceBet_InsufficientBalance(t *testing.T) {
	d := setupBettingService(t)

	d.blocks.EXPECT().IsBlocked(gomock.Any(), gomock.Any()).Return(false, nil).AnyTimes()
	d.accounts.EXPECT().Get(gomock.Any(), "alice").
		Return(&domain.Account{Username: "alice", Balance: 250, Version: 1}, nil)

	_, err := d.svc.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12", "34", "56"}, StakePerNumber: 100})
	appErr := requireAppError(t, err, "BET_003")
	assert.Equal(t, int64(50), appErr.Details["shortfall"])
}

func TestBettingService_PlaceBet_AccountNotFound(t *testing.T) {
	d := setupBettingService(t)

	d.blocks.EXPECT().IsBlocked(gomock.Any(), gomock.Any()).Return(false, nil)
	d.accounts.EXPECT().Get(gomock.Any(), "ghost").Return(nil, nil)

	_, err := d.svc.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "ghost", Numbers: []string{"12"}, StakePerNumber: 100})
	requireAppError(t, err, "ACC_001")
}

func TestBettingService_PlaceBet_RetriesOnConflict(t *testing.T) {
	d := setupBettingService(t)

	d.blocks.EXPECT().IsBlocked(gomock.Any(), gomock.Any()).Return(false, nil).Times(2)
	gomock.InOrder(
		d.accounts.EXPECT().Get(gomock.Any(), "alice").
			Return(&domain.Account{Username: "alice", Balance: 1000, Version: 1}, nil),
		d.ledger.EXPECT().CommitPlacement(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(int64(0), domain.ErrVersionConflict),
		d.accounts.EXPECT().Get(gomock.Any(), "alice").
			Return(&domain.Account{Username: "alice", Balance: 900, Version: 2}, nil),
		d.ledger.EXPECT().CommitPlacement(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, debit domain.BalanceChange, _ []domain.Bet) (int64, error) {
				assert.Equal(t, int64(2), debit.ExpectedVersion)
				return 800, nil
			}),
	)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	v, err := d.svc.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12"}, StakePerNumber: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(800), v.BalanceAfter)
}

func TestBettingService_PlaceBet_RetriesExhausted(t *testing.T) {
	d := setupBettingService(t)

	d.blocks.EXPECT().IsBlocked(gomock.Any(), gomock.Any()).Return(false, nil).Times(3)
	d.accounts.EXPECT().Get(gomock.Any(), "alice").
		Return(&domain.Account{Username: "alice", Balance: 1000, Version: 1}, nil).Times(3)
	d.ledger.EXPECT().CommitPlacement(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(int64(0), domain.ErrVersionConflict).Times(3)

	_, err := d.svc.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12"}, StakePerNumber: 100})
	requireAppError(t, err, "BET_005")
}

func TestBettingService_PlaceBet_SingleAttemptConflict(t *testing.T) {
	d := setupBettingService(t)
	d.svc.settings.MaxPlaceAttempts = 1

	d.blocks.EXPECT().IsBlocked(gomock.Any(), gomock.Any()).Return(false, nil)
	d.accounts.EXPECT().Get(gomock.Any(), "alice").
		Return(&domain.Account{Username: "alice", Balance: 1000, Version: 1}, nil)
	d.ledger.EXPECT().CommitPlacement(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(int64(0), domain.ErrVersionConflict)

	_, err := d.svc.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12"}, StakePerNumber: 100})
	requireAppError(t, err, "BET_004")
}

func TestBettingService_PlaceBet_StorageFailure(t *testing.T) {
	d := setupBettingService(t)

	d.blocks.EXPECT().IsBlocked(gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	_, err := d.svc.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12"}, StakePerNumber: 100})
	requireAppError(t, err, "SYS_002")
}

func TestBettingService_PlaceBet_IdempotentReplay(t *testing.T) {
	d := setupBettingService(t)
	key := domain.BuildIdempotencyKey("alice", "req-1")

	cached := domain.Voucher{BatchID: uuid.New(), Username: "alice", Numbers: []string{"12"}, StakePerNumber: 100, TotalCost: 100, BalanceAfter: 900}
	data, err := json.Marshal(cached)
	require.NoError(t, err)
	d.cache.EXPECT().Get(gomock.Any(), key).Return(data, nil)

	v, err := d.svc.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12"}, StakePerNumber: 100, IdempotencyKey: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, cached.BatchID, v.BatchID)
}

func TestBettingService_PlaceBet_IdempotencyKeyReusedForDifferentBet(t *testing.T) {
	d := setupBettingService(t)
	key := domain.BuildIdempotencyKey("alice", "req-1")

	cached := domain.Voucher{BatchID: uuid.New(), Username: "alice", Numbers: []string{"12"}, StakePerNumber: 100, TotalCost: 100, BalanceAfter: 900}
	data, err := json.Marshal(cached)
	require.NoError(t, err)
	d.cache.EXPECT().Get(gomock.Any(), key).Return(data, nil)

	_, err = d.svc.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "alice", Numbers: []string{"13"}, StakePerNumber: 100, IdempotencyKey: "req-1"})
	appErr := requireAppError(t, err, "BET_001")
	assert.Equal(t, "req-1", appErr.Details["idempotency_key"])
}

func TestBettingService_PlaceBet_PublishFailureDoesNotFail(t *testing.T) {
	d := setupBettingService(t)

	d.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)
	d.blocks.EXPECT().IsBlocked(gomock.Any(), gomock.Any()).Return(false, nil)
	d.accounts.EXPECT().Get(gomock.Any(), "alice").
		Return(&domain.Account{Username: "alice", Balance: 1000, Version: 1}, nil)
	d.ledger.EXPECT().CommitPlacement(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(900), nil)
	d.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), idempotencyTTL).Return(nil)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker unavailable"))

	v, err := d.svc.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12"}, StakePerNumber: 100, IdempotencyKey: "req-2"})
	require.NoError(t, err)
	assert.Equal(t, int64(900), v.BalanceAfter)
}

func TestBettingService_SessionFollowsCutoff(t *testing.T) {
	d := setupBettingService(t)
	// 12:00 local is already evening.
	d.svc.now = func() time.Time { return time.Date(2026, 3, 2, 5, 30, 0, 0, time.UTC) }

	d.blocks.EXPECT().IsBlocked(gomock.Any(), gomock.Any()).Return(false, nil)
	d.accounts.EXPECT().Get(gomock.Any(), "alice").
		Return(&domain.Account{Username: "alice", Balance: 1000, Version: 1}, nil)
	d.ledger.EXPECT().CommitPlacement(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(900), nil)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	v, err := d.svc.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12"}, StakePerNumber: 100})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEvening, v.Session)
}

// ==================== In-memory ledger properties ====================

type memoryLedger struct {
	store    *memory.Store
	betting  *BettingServiceImpl
	settle   *SettlementServiceImpl
	accounts *AccountServiceImpl
}

func newMemoryLedger(t *testing.T) *memoryLedger {
	t.Helper()
	store := memory.NewStore()
	settings := testSettings(t)
	rate := func() (decimal.Decimal, error) { return testLedgerConfig().PayoutRateDecimal() }

	settle, err := NewSettlementService(store.Accounts(), store.Ledger(), messaging.NopPublisher{}, rate, settings, newTestLogger())
	require.NoError(t, err)
	t.Cleanup(settle.Close)

	m := &memoryLedger{
		store:    store,
		betting:  NewBettingService(store.Accounts(), store.Ledger(), store.Blocks(), memory.NewIdempotencyCache(), messaging.NopPublisher{}, settings, newTestLogger()),
		settle:   settle,
		accounts: NewAccountService(store.Accounts(), store.Ledger(), messaging.NopPublisher{}, settings, newTestLogger()),
	}
	m.betting.now = func() time.Time { return morningUTC }
	return m
}

func (m *memoryLedger) seed(t *testing.T, username string, balance int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.store.Accounts().Create(ctx, &domain.Account{Username: username, Role: domain.RoleUser}))
	if balance > 0 {
		_, err := m.accounts.TopUp(ctx, username, balance)
		require.NoError(t, err)
	}
}

func (m *memoryLedger) balance(t *testing.T, username string) int64 {
	t.Helper()
	a, err := m.store.Accounts().Get(context.Background(), username)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.Balance
}

func TestBettingService_ConcurrentOverdraw(t *testing.T) {
	m := newMemoryLedger(t)
	m.seed(t, "alice", 100)
	m.betting.settings.MaxPlaceAttempts = 10

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.betting.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "alice", Numbers: []string{"42"}, StakePerNumber: 100})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, int64(0), m.balance(t, "alice"))

	bets, err := m.store.Ledger().ListBetsByAccount(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Len(t, bets, 1)
}

func TestBettingService_ConcurrentPlacementsConserveBalance(t *testing.T) {
	m := newMemoryLedger(t)
	m.seed(t, "alice", 10_000)
	m.betting.settings.MaxPlaceAttempts = 50

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.betting.PlaceBet(context.Background(), ports.PlaceBetRequest{Username: "alice", Numbers: []string{"10", "20"}, StakePerNumber: 100})
		}()
	}
	wg.Wait()

	bets, err := m.store.Ledger().ListBetsByAccount(context.Background(), "alice", 0)
	require.NoError(t, err)
	var staked int64
	for _, b := range bets {
		staked += b.Stake
	}
	assert.Equal(t, int64(10_000)-staked, m.balance(t, "alice"))
	assert.GreaterOrEqual(t, m.balance(t, "alice"), int64(0))
}

func TestBettingService_BlockedNumberRejectsWholeBatch(t *testing.T) {
	m := newMemoryLedger(t)
	m.seed(t, "alice", 1000)
	ctx := context.Background()
	require.NoError(t, m.store.Blocks().Add(ctx, "34"))

	_, err := m.betting.PlaceBet(ctx, ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12", "34"}, StakePerNumber: 100})
	requireAppError(t, err, "BET_002")

	assert.Equal(t, int64(1000), m.balance(t, "alice"))
	bets, err := m.store.Ledger().ListBetsByAccount(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, bets)
}

func TestBettingService_IdempotencyKeyPlacesOnce(t *testing.T) {
	m := newMemoryLedger(t)
	m.seed(t, "alice", 1000)
	ctx := context.Background()
	req := ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12"}, StakePerNumber: 100, IdempotencyKey: "once"}

	first, err := m.betting.PlaceBet(ctx, req)
	require.NoError(t, err)
	second, err := m.betting.PlaceBet(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.BatchID, second.BatchID)
	assert.Equal(t, int64(900), m.balance(t, "alice"))
}

func TestBettingService_IdempotencyKeyRejectsDifferentStake(t *testing.T) {
	m := newMemoryLedger(t)
	m.seed(t, "alice", 1000)
	ctx := context.Background()

	_, err := m.betting.PlaceBet(ctx, ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12"}, StakePerNumber: 100, IdempotencyKey: "k"})
	require.NoError(t, err)

	_, err = m.betting.PlaceBet(ctx, ports.PlaceBetRequest{Username: "alice", Numbers: []string{"12"}, StakePerNumber: 200, IdempotencyKey: "k"})
	requireAppError(t, err, "BET_001")
	assert.Equal(t, int64(900), m.balance(t, "alice"))
}
