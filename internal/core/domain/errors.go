package domain

import "errors"

var (
	// ErrVersionConflict is returned by stores when a guarded write finds a
	// different version than expected. Nothing was written.
	ErrVersionConflict = errors.New("version conflict")

	// ErrBetNotPending is returned when settling a bet that already left PENDING.
	ErrBetNotPending = errors.New("bet is not pending")

	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")

	// ErrNegativeBalance guards the balance >= 0 invariant at the store level.
	ErrNegativeBalance = errors.New("balance would become negative")
)
