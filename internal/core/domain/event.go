package domain

import "time"

// EventType names a ledger event published to downstream consumers.
type EventType string

const (
	EventBetPlaced  EventType = "bet.placed"
	EventBetSettled EventType = "bet.settled"
	EventTopup      EventType = "account.topup"
)

// LedgerEvent is an append-only notification about a committed change.
// Key is used for partitioning so events of one account stay ordered.
type LedgerEvent struct {
	Type       EventType   `json:"type"`
	Key        string      `json:"key"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}
