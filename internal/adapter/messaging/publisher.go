// Package messaging publishes committed ledger events to Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wager-ledger/config"
	"wager-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of *kafka.Writer the publisher needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements ports.EventPublisher.
type KafkaPublisher struct {
	writer  KafkaWriter
	topic   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewKafkaPublisher builds a publisher writing to cfg.Topic.
func NewKafkaPublisher(cfg config.KafkaConfig, log zerolog.Logger) (*KafkaPublisher, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is not configured")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           cfg.WriteTimeout,
	}

	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("Kafka publisher configured")
	return newKafkaPublisher(w, cfg.Topic, cfg.WriteTimeout, log), nil
}

func newKafkaPublisher(w KafkaWriter, topic string, timeout time.Duration, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, timeout: timeout, log: log}
}

// Publish writes the event keyed by event.Key so one account's events
// land on one partition in order.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event to %s: %w", event.Type, p.topic, err)
	}

	p.log.Debug().Str("type", string(event.Type)).Str("key", event.Key).Msg("ledger event published")
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.LedgerEvent) error { return nil }
func (NopPublisher) Close() error { return nil }
