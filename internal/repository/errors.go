// Package repository defines the storage abstraction behind the hold
// lifecycle engine together with its in-memory and SQL implementations.
// The sentinel values below allow higher layers such as the service and
// handlers to distinguish between different failure scenarios without
// depending on a particular database driver.
package repository

import (
	"errors"
	"fmt"
)

// ErrConflict is returned when a write cannot be performed because of
// conflicting state.  Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// ErrHoldExists is returned by PutHold when a hold row already exists for
// the ticket.  The unique key on held_tickets.ticket_number is the
// backstop that makes a second concurrent insert fail instead of silently
// overwriting the first.  It wraps ErrConflict.
var ErrHoldExists = fmt.Errorf("%w: hold already exists", ErrConflict)

// ErrPurchaseNotFound is returned when a purchase referenced by ID does
// not exist.
var ErrPurchaseNotFound = errors.New("purchase not found")

// ErrDuplicateReference is returned by PutPurchase when the reference ID
// is already used by another purchase.  It wraps ErrConflict.
var ErrDuplicateReference = fmt.Errorf("%w: duplicate reference id", ErrConflict)

// ErrInvalidRecord is returned when a hold or purchase fails validation,
// either before it is written or after it is read back.  The model error
// is wrapped alongside it.
var ErrInvalidRecord = errors.New("invalid record")

func invalidRecord(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
}
