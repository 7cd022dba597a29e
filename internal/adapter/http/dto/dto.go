package dto

import (
	"time"

	"wager-ledger/internal/core/domain"
)

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Username  string  `json:"username" binding:"required,min=3,max=32,safe_id"`
	Password  string  `json:"password" binding:"required,min=8,max=128" sanitize:"-"`
	AvatarRef *string `json:"avatar_ref,omitempty" binding:"omitempty,max=512,safe_url"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	Username  string  `json:"username"`
	Balance   int64   `json:"balance"`
	Role      string  `json:"role"`
	AvatarRef *string `json:"avatar_ref,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		Username:  a.Username,
		Balance:   a.Balance,
		Role:      string(a.Role),
		AvatarRef: a.AvatarRef,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// PlaceBetRequest is the request body for a bet batch.
type PlaceBetRequest struct {
	Numbers        []string `json:"numbers" binding:"required,min=1,max=100,dive,digits"`
	StakePerNumber int64    `json:"stake_per_number" binding:"required,gt=0"`
}

// BetResponse is one bet line in the history listing.
type BetResponse struct {
	ID        string  `json:"id"`
	BatchID   string  `json:"batch_id"`
	Number    string  `json:"number"`
	Stake     int64   `json:"stake"`
	Status    string  `json:"status"`
	Session   string  `json:"session"`
	WinAmount int64   `json:"win_amount"`
	CreatedAt string  `json:"created_at"`
	SettledAt *string `json:"settled_at,omitempty"`
}

func NewBetResponse(b domain.Bet) BetResponse {
	r := BetResponse{
		ID:        b.ID.String(),
		BatchID:   b.BatchID.String(),
		Number:    b.Number,
		Stake:     b.Stake,
		Status:    string(b.Status),
		Session:   string(b.Session),
		WinAmount: b.WinAmount,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.SettledAt != nil {
		s := b.SettledAt.UTC().Format(time.RFC3339)
		r.SettledAt = &s
	}
	return r
}

// TopupRequest is the request body for an operator top-up.
type TopupRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// SettleRequest is the request body for a settlement pass.
type SettleRequest struct {
	Session       string `json:"session" binding:"required,oneof=morning evening"`
	WinningNumber string `json:"winning_number" binding:"required,digits"`
}

// BlockRequest adds numbers to the block list.
type BlockRequest struct {
	Mode  string `json:"mode" binding:"required,oneof=exact head tail"`
	Value string `json:"value" binding:"required,digits"`
}

// BlockListResponse lists blocked numbers.
type BlockListResponse struct {
	Numbers []string `json:"numbers"`
	Count   int      `json:"count"`
}

// SnapshotRequest replaces the market snapshot. Empty fields are unpublished.
type SnapshotRequest struct {
	Morning string `json:"morning" binding:"max=16"`
	Evening string `json:"evening" binding:"max=16"`
	Set     string `json:"set" binding:"max=32"`
	Value   string `json:"value" binding:"max=32"`
}

// HistoryRequest records one day's results.
type HistoryRequest struct {
	Date    string  `json:"date" binding:"required,len=10"`
	Morning *string `json:"morning,omitempty" binding:"omitempty,digits"`
	Evening *string `json:"evening,omitempty" binding:"omitempty,digits"`
}

// FormulaResponse is the output of a public formula calculator.
type FormulaResponse struct {
	Formula string `json:"formula"`
	Result  string `json:"result"`
}
