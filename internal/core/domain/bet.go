package domain

import (
	"time"

	"github.com/google/uuid"
)

// BetStatus is the lifecycle state of a bet line.
type BetStatus string

const (
	BetStatusPending BetStatus = "PENDING"
	BetStatusWin     BetStatus = "WIN"
	BetStatusLose    BetStatus = "LOSE"
)

// Session is the market cycle a bet is placed against.
type Session string

const (
	SessionMorning Session = "morning"
	SessionEvening Session = "evening"
)

// ParseSession validates a session name.
func ParseSession(s string) (Session, bool) {
	switch Session(s) {
	case SessionMorning, SessionEvening:
		return Session(s), true
	}
	return "", false
}

// SessionAt derives the session tag for t in the market location.
// Times strictly before cutoffMinutes past midnight are morning.
func SessionAt(t time.Time, loc *time.Location, cutoffMinutes int) Session {
	local := t.In(loc)
	if local.Hour()*60+local.Minute() < cutoffMinutes {
		return SessionMorning
	}
	return SessionEvening
}

// Bet is one wagered number inside a batch.
type Bet struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	Number    string     `json:"number"`
	Stake     int64      `json:"stake"`
	Status    BetStatus  `json:"status"`
	Session   Session    `json:"session"`
	BatchID   uuid.UUID  `json:"batch_id"`
	WinAmount int64      `json:"win_amount,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

// IsTerminal returns true once the bet has been settled.
func (b *Bet) IsTerminal() bool {
	return b.Status == BetStatusWin || b.Status == BetStatusLose
}

// Outcome is the settlement decision for a single pending bet.
// Credit is nil for losing bets.
type Outcome struct {
	BetID     uuid.UUID
	Status    BetStatus
	WinAmount int64
	SettledAt time.Time
	Credit    *BalanceChange
}
