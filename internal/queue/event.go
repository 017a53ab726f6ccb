// Package queue defines the ticket events exchanged over the message broker
// together with the RabbitMQ publisher and the audit log consumer.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Event types.  They travel in the AMQP "type" property so the consumer
// can decode the body without peeking into it.
const (
	EventPurchaseCreated = "purchase.created"
	EventTicketConfirmed = "ticket.confirmed"
	EventTicketReleased  = "ticket.released"
)

// Release reasons carried by TicketReleasedEvent.
const (
	ReleaseReasonAdmin   = "admin"
	ReleaseReasonExpired = "expired"
)

// EventHeader is embedded in every event.
type EventHeader struct {
	ID            string `json:"id"`
	PublishedAt   string `json:"published_at"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewEventHeader returns a header with a fresh id and the current time.
func NewEventHeader(correlationID string) EventHeader {
	return EventHeader{
		ID:            uuid.NewString(),
		PublishedAt:   time.Now().UTC().Format(time.RFC3339),
		CorrelationID: correlationID,
	}
}

// PurchaseCreatedEvent is published after a purchase and its holds commit.
type PurchaseCreatedEvent struct {
	Header       EventHeader `json:"header"`
	PurchaseID   string      `json:"purchase_id"`
	ReferenceID  string      `json:"reference_id"`
	Tickets      []int       `json:"tickets"`
	TotalCost    string      `json:"total_cost"`
	PurchaseDate string      `json:"purchase_date"`
	HoldExpiry   string      `json:"hold_expiry"`
}

// TicketConfirmedEvent is published when payment for a ticket is confirmed
// and the ticket becomes sold.
type TicketConfirmedEvent struct {
	Header       EventHeader `json:"header"`
	TicketNumber int         `json:"ticket_number"`
	PurchaseID   string      `json:"purchase_id"`
	ReferenceID  string      `json:"reference_id"`
	ConfirmedAt  string      `json:"confirmed_at"`
}

// TicketReleasedEvent is published when a hold is removed without a sale,
// either by an administrator or by the expiry sweep.
type TicketReleasedEvent struct {
	Header       EventHeader `json:"header"`
	TicketNumber int         `json:"ticket_number"`
	ReferenceID  string      `json:"reference_id,omitempty"`
	Reason       string      `json:"reason"`
	ReleasedAt   string      `json:"released_at"`
}
