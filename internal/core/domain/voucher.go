package domain

import (
	"time"

	"github.com/google/uuid"
)

// Voucher is the receipt returned for a committed bet batch.
type Voucher struct {
	BatchID        uuid.UUID `json:"batch_id"`
	Username       string    `json:"username"`
	Numbers        []string  `json:"numbers"`
	StakePerNumber int64     `json:"stake_per_number"`
	TotalCost      int64     `json:"total_cost"`
	Session        Session   `json:"session"`
	BalanceAfter   int64     `json:"balance_after"`
	CreatedAt      time.Time `json:"created_at"`
}
