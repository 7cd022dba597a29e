package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"wager-ledger/config"
	"wager-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := new(MockKafkaWriter)
	p := newKafkaPublisher(w, "wager.ledger.events", time.Second, zerolog.Nop())

	event := domain.LedgerEvent{
		Type:       domain.EventBetPlaced,
		Key:        "alice",
		Payload:    map[string]interface{}{"total_cost": 300},
		OccurredAt: time.Date(2026, 10, 18, 5, 0, 0, 0, time.UTC),
	}

	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != "alice" {
			return false
		}
		var decoded domain.LedgerEvent
		if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
			return false
		}
		return decoded.Type == domain.EventBetPlaced &&
			len(msgs[0].Headers) == 1 && string(msgs[0].Headers[0].Value) == "bet.placed"
	})).Return(nil).Once()

	require.NoError(t, p.Publish(context.Background(), event))
	w.AssertExpectations(t)
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	w := new(MockKafkaWriter)
	p := newKafkaPublisher(w, "wager.ledger.events", 0, zerolog.Nop())

	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("leader not available")).Once()

	err := p.Publish(context.Background(), domain.LedgerEvent{Type: domain.EventTopup, Key: "bob"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account.topup")
	assert.Contains(t, err.Error(), "leader not available")
	w.AssertExpectations(t)
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := new(MockKafkaWriter)
	p := newKafkaPublisher(w, "t", 0, zerolog.Nop())
	w.On("Close").Return(nil).Once()

	assert.NoError(t, p.Close())
	w.AssertExpectations(t)
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"k:9092"}}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewKafkaPublisher(config.KafkaConfig{Topic: "t"}, zerolog.Nop())
	assert.Error(t, err)

	p, err := NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"k:9092"}, Topic: "t"}, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	assert.NoError(t, p.Publish(context.Background(), domain.LedgerEvent{}))
	assert.NoError(t, p.Close())
}
