package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/lottery-storefront/internal/model"
)

// ConflictError is returned by PurchaseAndHold when requested tickets are
// already sold or actively held.  Tickets lists the offending numbers in
// ascending order.  The caller must change its selection; retrying the same
// request will fail the same way.
type ConflictError struct {
	Tickets []model.TicketNumber
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("tickets %s are no longer available", joinTickets(e.Tickets))
}

// NotFoundError is returned when no purchase contains the requested ticket.
type NotFoundError struct {
	Ticket model.TicketNumber
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no purchase contains ticket %d", int(e.Ticket))
}

// StorageError wraps a failure of the underlying store.  The operation was
// rolled back in full and may be retried unchanged.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage failure: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError rejects a request before any storage access.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ErrInvalidPassword is returned by AdminAuth.Authenticate for a wrong
// passphrase.
var ErrInvalidPassword = errors.New("invalid admin password")

func joinTickets(ts []model.TicketNumber) string {
	parts := make([]string, 0, len(ts))
	for _, t := range ts {
		parts = append(parts, strconv.Itoa(int(t)))
	}
	return strings.Join(parts, ", ")
}
