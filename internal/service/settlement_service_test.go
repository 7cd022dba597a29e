package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"wager-ledger/internal/adapter/messaging"
	"wager-ledger/internal/core/domain"
	"wager-ledger/internal/core/ports"
	"wager-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func fixedRate(r string) PayoutRateFunc {
	return func() (decimal.Decimal, error) { return decimal.NewFromString(r) }
}

func setupSettlementService(t *testing.T, rate string) (*SettlementServiceImpl, *mocks.MockAccountStore, *mocks.MockLedgerStore, *mocks.MockEventPublisher) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	ledger := mocks.NewMockLedgerStore(ctrl)
	publisher := mocks.NewMockEventPublisher(ctrl)

	svc, err := NewSettlementService(accounts, ledger, publisher, fixedRate(rate), testSettings(t), newTestLogger())
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, accounts, ledger, publisher
}

func pendingBet(username, number string, stake int64) domain.Bet {
	return domain.Bet{
		ID:       uuid.New(),
		Username: username,
		Number:   number,
		Stake:    stake,
		Status:   domain.BetStatusPending,
		Session:  domain.SessionMorning,
	}
}

func TestSettlementService_Settle_WinAndLose(t *testing.T) {
	svc, accounts, ledger, publisher := setupSettlementService(t, "80")
	win := pendingBet("alice", "42", 100)
	lose := pendingBet("bob", "17", 300)

	ledger.EXPECT().ListPendingBets(gomock.Any(), domain.SessionMorning).Return([]domain.Bet{win, lose}, nil)
	accounts.EXPECT().Get(gomock.Any(), "alice").Return(&domain.Account{Username: "alice", Version: 7}, nil)
	ledger.EXPECT().CommitSettlement(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, o domain.Outcome) error {
			switch o.BetID {
			case win.ID:
				assert.Equal(t, domain.BetStatusWin, o.Status)
				assert.Equal(t, int64(8000), o.WinAmount)
				if assert.NotNil(t, o.Credit) {
					assert.Equal(t, int64(7), o.Credit.ExpectedVersion)
					assert.Equal(t, int64(8000), o.Credit.Delta)
				}
			case lose.ID:
				assert.Equal(t, domain.BetStatusLose, o.Status)
				assert.Nil(t, o.Credit)
			default:
				t.Errorf("unexpected bet %s", o.BetID)
			}
			return nil
		}).Times(2)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	res, err := svc.Settle(context.Background(), ports.SettleRequest{Session: domain.SessionMorning, WinningNumber: "42"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Won)
	assert.Equal(t, 1, res.Lost)
	assert.Equal(t, "80", res.PayoutRate)
	assert.Equal(t, []ports.Payout{{Username: "alice", Amount: 8000}}, res.Payouts)
}

func TestSettlementService_Settle_FloorsFractionalPayout(t *testing.T) {
	svc, accounts, ledger, publisher := setupSettlementService(t, "85.5")
	bet := pendingBet("alice", "42", 101)

	ledger.EXPECT().ListPendingBets(gomock.Any(), domain.SessionMorning).Return([]domain.Bet{bet}, nil)
	accounts.EXPECT().Get(gomock.Any(), "alice").Return(&domain.Account{Username: "alice", Version: 1}, nil)
	ledger.EXPECT().CommitSettlement(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, o domain.Outcome) error {
			// 101 * 85.5 = 8635.5
			assert.Equal(t, int64(8635), o.WinAmount)
			return nil
		})
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	res, err := svc.Settle(context.Background(), ports.SettleRequest{Session: domain.SessionMorning, WinningNumber: "42"})
	require.NoError(t, err)
	assert.Equal(t, int64(8635), res.Payouts[0].Amount)
}

func TestSettlementService_Settle_RetriesCreditConflict(t *testing.T) {
	svc, accounts, ledger, publisher := setupSettlementService(t, "80")
	bet := pendingBet("alice", "42", 100)

	ledger.EXPECT().ListPendingBets(gomock.Any(), domain.SessionMorning).Return([]domain.Bet{bet}, nil)
	gomock.InOrder(
		accounts.EXPECT().Get(gomock.Any(), "alice").Return(&domain.Account{Username: "alice", Version: 1}, nil),
		ledger.EXPECT().CommitSettlement(gomock.Any(), gomock.Any()).Return(domain.ErrVersionConflict),
		accounts.EXPECT().Get(gomock.Any(), "alice").Return(&domain.Account{Username: "alice", Version: 2}, nil),
		ledger.EXPECT().CommitSettlement(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, o domain.Outcome) error {
				if assert.NotNil(t, o.Credit) {
					assert.Equal(t, int64(2), o.Credit.ExpectedVersion)
				}
				return nil
			}),
	)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	res, err := svc.Settle(context.Background(), ports.SettleRequest{Session: domain.SessionMorning, WinningNumber: "42"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Won)
	assert.Equal(t, 0, res.Failed)
}

func TestSettlementService_Settle_ExhaustedLeavesPending(t *testing.T) {
	svc, accounts, ledger, _ := setupSettlementService(t, "80")
	bet := pendingBet("alice", "42", 100)

	ledger.EXPECT().ListPendingBets(gomock.Any(), domain.SessionMorning).Return([]domain.Bet{bet}, nil)
	accounts.EXPECT().Get(gomock.Any(), "alice").Return(&domain.Account{Username: "alice", Version: 1}, nil).Times(3)
	ledger.EXPECT().CommitSettlement(gomock.Any(), gomock.Any()).Return(domain.ErrVersionConflict).Times(3)

	res, err := svc.Settle(context.Background(), ports.SettleRequest{Session: domain.SessionMorning, WinningNumber: "42"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, res.Payouts)
}

func TestSettlementService_Settle_SkipsAlreadySettled(t *testing.T) {
	svc, _, ledger, _ := setupSettlementService(t, "80")
	bet := pendingBet("bob", "11", 100)

	ledger.EXPECT().ListPendingBets(gomock.Any(), domain.SessionMorning).Return([]domain.Bet{bet}, nil)
	ledger.EXPECT().CommitSettlement(gomock.Any(), gomock.Any()).Return(domain.ErrBetNotPending)

	res, err := svc.Settle(context.Background(), ports.SettleRequest{Session: domain.SessionMorning, WinningNumber: "42"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
}

func TestSettlementService_Settle_OneFailureDoesNotAbort(t *testing.T) {
	svc, _, ledger, publisher := setupSettlementService(t, "80")
	broken := pendingBet("bob", "11", 100)
	fine := pendingBet("bob", "12", 100)

	ledger.EXPECT().ListPendingBets(gomock.Any(), domain.SessionMorning).Return([]domain.Bet{broken, fine}, nil)
	ledger.EXPECT().CommitSettlement(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, o domain.Outcome) error {
			if o.BetID == broken.ID {
				return errors.New("disk full")
			}
			return nil
		}).Times(2)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	res, err := svc.Settle(context.Background(), ports.SettleRequest{Session: domain.SessionMorning, WinningNumber: "42"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Lost)
}

func TestSettlementService_Settle_Validation(t *testing.T) {
	svc, _, _, _ := setupSettlementService(t, "80")

	_, err := svc.Settle(context.Background(), ports.SettleRequest{Session: "noon", WinningNumber: "42"})
	requireAppError(t, err, "REQ_001")

	_, err = svc.Settle(context.Background(), ports.SettleRequest{Session: domain.SessionEvening, WinningNumber: "4"})
	requireAppError(t, err, "REQ_001")
}

func TestSettlementService_Settle_ListFailure(t *testing.T) {
	svc, _, ledger, _ := setupSettlementService(t, "80")

	ledger.EXPECT().ListPendingBets(gomock.Any(), domain.SessionEvening).Return(nil, errors.New("timeout"))

	_, err := svc.Settle(context.Background(), ports.SettleRequest{Session: domain.SessionEvening, WinningNumber: "42"})
	requireAppError(t, err, "SYS_002")
}

func TestSettlementService_SettleTwicePaysOnce(t *testing.T) {
	m := newMemoryLedger(t)
	m.seed(t, "alice", 1000)
	m.seed(t, "bob", 1000)
	ctx := context.Background()

	_, err := m.betting.PlaceBet(ctx, ports.PlaceBetRequest{Username: "alice", Numbers: []string{"42", "43"}, StakePerNumber: 100})
	require.NoError(t, err)
	_, err = m.betting.PlaceBet(ctx, ports.PlaceBetRequest{Username: "bob", Numbers: []string{"42"}, StakePerNumber: 200})
	require.NoError(t, err)

	req := ports.SettleRequest{Session: domain.SessionMorning, WinningNumber: "42"}
	first, err := m.settle.Settle(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Won)
	assert.Equal(t, 1, first.Lost)
	assert.Equal(t, []ports.Payout{{Username: "alice", Amount: 8000}, {Username: "bob", Amount: 16000}}, first.Payouts)

	second, err := m.settle.Settle(ctx, req)
	require.NoError(t, err)
	assert.Zero(t, second.Won+second.Lost+second.Failed)

	assert.Equal(t, int64(1000-200+8000), m.balance(t, "alice"))
	assert.Equal(t, int64(1000-200+16000), m.balance(t, "bob"))

	pending, err := m.store.Ledger().ListPendingBets(ctx, domain.SessionMorning)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSettlementService_IgnoresOtherSession(t *testing.T) {
	m := newMemoryLedger(t)
	m.seed(t, "alice", 1000)
	ctx := context.Background()

	_, err := m.betting.PlaceBet(ctx, ports.PlaceBetRequest{Username: "alice", Numbers: []string{"42"}, StakePerNumber: 100})
	require.NoError(t, err)

	res, err := m.settle.Settle(ctx, ports.SettleRequest{Session: domain.SessionEvening, WinningNumber: "42"})
	require.NoError(t, err)
	assert.Zero(t, res.Won)
	assert.Equal(t, int64(900), m.balance(t, "alice"))
}

func TestSettlementService_PayoutOutOfRangeLeavesPending(t *testing.T) {
	m := newMemoryLedger(t)
	m.seed(t, "alice", 1<<62)
	ctx := context.Background()

	// Stakes this large are refused at placement, so commit the bet directly.
	account, err := m.store.Accounts().Get(ctx, "alice")
	require.NoError(t, err)
	bet := pendingBet("alice", "42", 1<<61)
	_, err = m.store.Ledger().CommitPlacement(ctx, domain.BalanceChange{
		Username:        "alice",
		ExpectedVersion: account.Version,
		Delta:           -(1 << 61),
	}, []domain.Bet{bet})
	require.NoError(t, err)

	res, err := m.settle.Settle(ctx, ports.SettleRequest{Session: domain.SessionMorning, WinningNumber: "42"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Won)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, res.Payouts)
	assert.Equal(t, int64(1<<61), m.balance(t, "alice"))

	pending, err := m.store.Ledger().ListPendingBets(ctx, domain.SessionMorning)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, bet.ID, pending[0].ID)
}

func TestSettlementService_BalanceOverflowLeavesPending(t *testing.T) {
	m := newMemoryLedger(t)
	m.seed(t, "alice", math.MaxInt64-100)
	ctx := context.Background()

	_, err := m.betting.PlaceBet(ctx, ports.PlaceBetRequest{Username: "alice", Numbers: []string{"42"}, StakePerNumber: 100})
	require.NoError(t, err)

	res, err := m.settle.Settle(ctx, ports.SettleRequest{Session: domain.SessionMorning, WinningNumber: "42"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, int64(math.MaxInt64-200), m.balance(t, "alice"))

	pending, err := m.store.Ledger().ListPendingBets(ctx, domain.SessionMorning)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

// failingLedger fails the first failWins winning commits, then delegates.
type failingLedger struct {
	ports.LedgerStore
	mu       sync.Mutex
	failWins int
}

func (f *failingLedger) CommitSettlement(ctx context.Context, o domain.Outcome) error {
	f.mu.Lock()
	if o.Credit != nil && f.failWins > 0 {
		f.failWins--
		f.mu.Unlock()
		return errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.LedgerStore.CommitSettlement(ctx, o)
}

func TestSettlementService_ResumedPassMatchesUninterrupted(t *testing.T) {
	ctx := context.Background()
	req := ports.SettleRequest{Session: domain.SessionMorning, WinningNumber: "42"}
	place := func(m *memoryLedger) {
		m.seed(t, "alice", 1000)
		_, err := m.betting.PlaceBet(ctx, ports.PlaceBetRequest{Username: "alice", Numbers: []string{"42", "42", "17"}, StakePerNumber: 100})
		require.NoError(t, err)
	}

	uninterrupted := newMemoryLedger(t)
	place(uninterrupted)
	_, err := uninterrupted.settle.Settle(ctx, req)
	require.NoError(t, err)

	m := newMemoryLedger(t)
	place(m)
	ledger := &failingLedger{LedgerStore: m.store.Ledger(), failWins: 1}
	svc, err := NewSettlementService(m.store.Accounts(), ledger, messaging.NopPublisher{}, fixedRate("80"), testSettings(t), newTestLogger())
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	first, err := svc.Settle(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Won)
	assert.Equal(t, 1, first.Lost)
	assert.Equal(t, 1, first.Failed)

	pending, err := m.store.Ledger().ListPendingBets(ctx, domain.SessionMorning)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	second, err := svc.Settle(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Won)
	assert.Zero(t, second.Failed)

	assert.Equal(t, int64(700+2*8000), m.balance(t, "alice"))
	assert.Equal(t, uninterrupted.balance(t, "alice"), m.balance(t, "alice"))

	pending, err = m.store.Ledger().ListPendingBets(ctx, domain.SessionMorning)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
