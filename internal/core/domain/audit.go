package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegister    AuditAction = "REGISTER"
	AuditActionLogin       AuditAction = "LOGIN"
	AuditActionPlaceBet    AuditAction = "PLACE_BET"
	AuditActionTopup       AuditAction = "TOPUP"
	AuditActionSettle      AuditAction = "SETTLE"
	AuditActionBlockChange AuditAction = "BLOCK_CHANGE"
	AuditActionMarket      AuditAction = "MARKET_UPDATE"
	AuditActionHistory     AuditAction = "HISTORY_UPSERT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Username     *string     `json:"username,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
