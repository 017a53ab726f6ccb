package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReferencePrefix starts every human-facing purchase reference.
const ReferencePrefix = "REF-"

// ReferenceLength is the number of characters following ReferencePrefix.
const ReferenceLength = 9

// Purchase records a set of tickets bought together.  Purchases are only
// ever appended; the PaymentStatus map is the single mutable part and only
// moves from false to true.
//
// Fields:
//
//	ID            – unique identifier (UUID).
//	ReferenceID   – human-facing reference, REF-XXXXXXXXX.
//	Tickets       – ticket numbers in the order they were selected.
//	TotalCost     – len(Tickets) × unit price at purchase time.
//	PurchaseDate  – creation timestamp (UTC).
//	PaymentStatus – one entry per ticket; true once confirmed.
type Purchase struct {
	ID            string                `json:"id"`             // purchases.id
	ReferenceID   string                `json:"reference_id"`   // purchases.reference_id
	Tickets       []TicketNumber        `json:"tickets"`        // purchase_tickets.ticket_number
	TotalCost     decimal.Decimal       `json:"total_cost"`     // purchases.total_cost
	PurchaseDate  time.Time             `json:"purchase_date"`  // purchases.purchase_date
	PaymentStatus map[TicketNumber]bool `json:"payment_status"` // purchase_tickets.payment_confirmed
}

// Contains reports whether n was bought in this purchase.
func (p *Purchase) Contains(n TicketNumber) bool {
	for _, t := range p.Tickets {
		if t == n {
			return true
		}
	}
	return false
}

// Confirmed reports whether payment for n has been confirmed.
func (p *Purchase) Confirmed(n TicketNumber) bool {
	return p.PaymentStatus[n]
}

// ConfirmedTickets returns the confirmed tickets in purchase order.
func (p *Purchase) ConfirmedTickets() []TicketNumber {
	out := make([]TicketNumber, 0, len(p.Tickets))
	for _, t := range p.Tickets {
		if p.PaymentStatus[t] {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns a deep copy so callers can mutate the result without
// touching the stored record.
func (p Purchase) Clone() Purchase {
	c := p
	c.Tickets = append([]TicketNumber(nil), p.Tickets...)
	c.PaymentStatus = make(map[TicketNumber]bool, len(p.PaymentStatus))
	for k, v := range p.PaymentStatus {
		c.PaymentStatus[k] = v
	}
	return c
}

// Normalize fills in defaults for a record loaded from storage: a missing
// payment status entry means "not confirmed", and entries for tickets that
// are not part of the purchase are dropped.
func (p *Purchase) Normalize() {
	status := make(map[TicketNumber]bool, len(p.Tickets))
	for _, t := range p.Tickets {
		status[t] = p.PaymentStatus[t]
	}
	p.PaymentStatus = status
	p.PurchaseDate = p.PurchaseDate.UTC()
}

// Validate checks the required fields and the ticket set of a purchase.
func (p *Purchase) Validate() error {
	if p.ID == "" {
		return errors.New("purchase: id is required")
	}
	if !ValidReference(p.ReferenceID) {
		return fmt.Errorf("purchase: malformed reference id %q", p.ReferenceID)
	}
	if len(p.Tickets) == 0 {
		return errors.New("purchase: at least one ticket is required")
	}
	seen := make(map[TicketNumber]struct{}, len(p.Tickets))
	for _, t := range p.Tickets {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("purchase: %w", err)
		}
		if _, dup := seen[t]; dup {
			return fmt.Errorf("purchase: duplicate ticket %d", int(t))
		}
		seen[t] = struct{}{}
	}
	if p.TotalCost.IsNegative() {
		return errors.New("purchase: negative total cost")
	}
	if p.PurchaseDate.IsZero() {
		return errors.New("purchase: purchase date is required")
	}
	return nil
}

// ValidReference reports whether ref has the REF-XXXXXXXXX shape, where X
// is an upper-case letter or a digit.
func ValidReference(ref string) bool {
	if !strings.HasPrefix(ref, ReferencePrefix) || len(ref) != len(ReferencePrefix)+ReferenceLength {
		return false
	}
	for _, r := range ref[len(ReferencePrefix):] {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// TotalCost multiplies the unit price by the number of tickets.
func TotalCost(count int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(count)))
}
