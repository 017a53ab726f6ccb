package model

import (
	"errors"
	"time"
)

// Hold represents a temporary reservation of one ticket number created
// at purchase time.  Holds prevent a second buyer from reserving the same
// number while payment is pending.  A hold stops counting once it expires,
// is released, or is confirmed.
//
// Fields:
//
//	TicketNumber  – reserved ticket; at most one hold row per number.
//	ReferenceID   – reference of the purchase that created the hold.
//	HoldStartTime – when the hold was created.
//	HoldExpiry    – HoldStartTime plus the configured hold duration.
//	IsConfirmed   – true once payment has been confirmed.  Confirmed holds
//	                are deleted by the engine rather than retained.
type Hold struct {
	TicketNumber  TicketNumber `json:"ticket_number"`   // held_tickets.ticket_number
	ReferenceID   string       `json:"reference_id"`    // held_tickets.reference_id
	HoldStartTime time.Time    `json:"hold_start_time"` // held_tickets.hold_start_time
	HoldExpiry    time.Time    `json:"hold_expiry"`     // held_tickets.hold_expiry
	IsConfirmed   bool         `json:"is_confirmed"`    // held_tickets.is_confirmed
}

// ActiveAt is the single hold-validity predicate.  A hold keeps its ticket
// held while it is unconfirmed and now has not passed the expiry.  Every
// read path (classification, hold info, conflict checks) goes through it.
func (h Hold) ActiveAt(now time.Time) bool {
	return !h.IsConfirmed && !now.After(h.HoldExpiry)
}

// ExpiredAt reports whether the expiry sweep should delete the hold.  It is
// the exact complement of ActiveAt for unconfirmed holds.
func (h Hold) ExpiredAt(now time.Time) bool {
	return !h.IsConfirmed && h.HoldExpiry.Before(now)
}

// TimeRemaining returns max(0, HoldExpiry-now).
func (h Hold) TimeRemaining(now time.Time) time.Duration {
	d := h.HoldExpiry.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Validate checks that a hold loaded from storage has all required fields.
func (h Hold) Validate() error {
	if err := h.TicketNumber.Validate(); err != nil {
		return err
	}
	if h.ReferenceID == "" {
		return errors.New("hold: reference id is required")
	}
	if h.HoldStartTime.IsZero() || h.HoldExpiry.IsZero() {
		return errors.New("hold: start and expiry times are required")
	}
	if h.HoldExpiry.Before(h.HoldStartTime) {
		return errors.New("hold: expiry precedes start")
	}
	return nil
}

// HoldInfo is a hold plus the time left before it lapses.  A zero
// TimeRemaining means the hold is effectively expired and only waits for
// the sweep to remove it.
type HoldInfo struct {
	Hold
	TimeRemaining time.Duration `json:"-"`
}

// TimeRemainingMillis is TimeRemaining expressed in milliseconds for JSON
// clients rendering a countdown.
func (i HoldInfo) TimeRemainingMillis() int64 {
	return i.TimeRemaining.Milliseconds()
}
