package repository

import (
	"context"
	"time"

	"github.com/iliyamo/lottery-storefront/internal/model"
)

// Store is the single logical store shared by every client session.  All
// reads and writes happen inside WithTx so that each engine operation runs
// to completion as one unit of work.  When fn returns an error every write
// made through tx is discarded; otherwise they are committed together.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the hold store and the purchase ledger within one
// transaction.  Implementations must make the writes of a single WithTx
// call visible to other transactions all at once or not at all.
type Tx interface {
	// GetHold returns the hold row for n, or nil when none exists.  It
	// does not filter expired rows; callers apply model.Hold.ActiveAt.
	GetHold(ctx context.Context, n model.TicketNumber) (*model.Hold, error)
	// ListHolds returns every hold row ordered by ticket number.
	ListHolds(ctx context.Context) ([]model.Hold, error)
	// PutHold inserts a new hold.  It fails with ErrHoldExists when a row
	// for the same ticket is already present.
	PutHold(ctx context.Context, h model.Hold) error
	// DeleteHold removes the hold row for n and reports whether a row
	// existed.
	DeleteHold(ctx context.Context, n model.TicketNumber) (bool, error)
	// DeleteExpiredHolds removes every unconfirmed hold whose expiry is
	// strictly before now and returns the released ticket numbers.
	DeleteExpiredHolds(ctx context.Context, now time.Time) ([]model.TicketNumber, error)

	// ListPurchases returns every purchase ordered by purchase date.
	ListPurchases(ctx context.Context) ([]model.Purchase, error)
	// FindPurchasesByTicket returns the purchases containing n ordered by
	// purchase date.
	FindPurchasesByTicket(ctx context.Context, n model.TicketNumber) ([]model.Purchase, error)
	// SoldTickets returns every ticket whose payment has been confirmed
	// in some purchase, ascending and without duplicates.
	SoldTickets(ctx context.Context) ([]model.TicketNumber, error)
	// ReferenceExists reports whether a purchase already uses ref.
	ReferenceExists(ctx context.Context, ref string) (bool, error)
	// PutPurchase appends a purchase to the ledger.
	PutPurchase(ctx context.Context, p model.Purchase) error
	// SetPaymentStatus marks ticket n of the given purchase as confirmed.
	// It fails with ErrPurchaseNotFound when the purchase does not exist
	// or does not contain n.
	SetPaymentStatus(ctx context.Context, purchaseID string, n model.TicketNumber) error

	// DeleteAll removes every purchase and every hold.
	DeleteAll(ctx context.Context) error
}

// PricingStore persists the pricing ledger.  The newest record is the
// current unit price.
type PricingStore interface {
	// LatestPrice returns the newest record, or nil when the ledger is
	// empty.
	LatestPrice(ctx context.Context) (*model.PricingRecord, error)
	AppendPrice(ctx context.Context, rec model.PricingRecord) error
	// PriceHistory returns up to limit records, newest first.  A limit of
	// zero or less returns the whole ledger.
	PriceHistory(ctx context.Context, limit int) ([]model.PricingRecord, error)
	ClearPrices(ctx context.Context) error
}
