package domain

import "time"

// Role is the binary privilege level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account is a player's balance record. Version is the optimistic
// concurrency token: every committed write increments it by one.
type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Argon2id encoded, salt embedded
	Balance      int64     `json:"balance"`
	Role         Role      `json:"role"`
	AvatarRef    *string   `json:"avatar_ref,omitempty"`
	Version      int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin returns true if the account may perform operator actions.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Clone returns a copy that shares no pointers with a.
func (a *Account) Clone() *Account {
	c := *a
	if a.AvatarRef != nil {
		ref := *a.AvatarRef
		c.AvatarRef = &ref
	}
	return &c
}

// BalanceChange describes a guarded balance mutation: apply Delta to
// Username only if the stored version still equals ExpectedVersion.
type BalanceChange struct {
	Username        string
	ExpectedVersion int64
	Delta           int64
}
