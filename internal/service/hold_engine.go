// Package service implements the hold lifecycle engine of the lottery
// storefront together with its peripheral collaborators: the pricing
// ledger and the admin session.
//
// The engine is the only component that creates, promotes, releases or
// expires holds.  Every operation runs as one repository transaction, so it
// either applies all of its writes or none of them.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/lottery-storefront/internal/logging"
	"github.com/iliyamo/lottery-storefront/internal/metrics"
	"github.com/iliyamo/lottery-storefront/internal/model"
	"github.com/iliyamo/lottery-storefront/internal/queue"
	"github.com/iliyamo/lottery-storefront/internal/repository"
	"github.com/iliyamo/lottery-storefront/internal/utils"
)

// DefaultHoldDuration applies when the engine is built with a non-positive
// duration.
const DefaultHoldDuration = 30 * time.Minute

// maxReferenceAttempts bounds the retries when a generated reference id
// collides with an existing purchase.
const maxReferenceAttempts = 8

// EventPublisher receives ticket events after the transaction that caused
// them has committed.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, event any) error
}

// HoldEngine governs the hold lifecycle: creation at purchase time,
// promotion to sold, manual release and expiry.
type HoldEngine struct {
	store        repository.Store
	holdDuration time.Duration
	now          func() time.Time
	publisher    EventPublisher
	newReference func() (string, error)
	newID        func() string
}

// Option customises a HoldEngine.
type Option func(*HoldEngine)

// WithClock replaces time.Now.  Tests use it to move time past expiry.
func WithClock(now func() time.Time) Option {
	return func(e *HoldEngine) { e.now = now }
}

// WithPublisher sets where ticket events go.  Without it events are
// dropped.
func WithPublisher(p EventPublisher) Option {
	return func(e *HoldEngine) { e.publisher = p }
}

// WithReferenceGenerator replaces the reference id generator.
func WithReferenceGenerator(gen func() (string, error)) Option {
	return func(e *HoldEngine) { e.newReference = gen }
}

// NewHoldEngine returns an engine on top of store.  It panics when store is
// nil.
func NewHoldEngine(store repository.Store, holdDuration time.Duration, opts ...Option) *HoldEngine {
	if store == nil {
		panic("service: nil store")
	}
	if holdDuration <= 0 {
		holdDuration = DefaultHoldDuration
	}
	e := &HoldEngine{
		store:        store,
		holdDuration: holdDuration,
		now:          time.Now,
		publisher:    queue.NopPublisher{},
		newReference: utils.NewReferenceID,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HoldDuration returns the configured hold lifetime.
func (e *HoldEngine) HoldDuration() time.Duration { return e.holdDuration }

func (e *HoldEngine) clock() time.Time { return e.now().UTC() }

// PurchaseAndHold reserves tickets for one buyer.  It checks that none of
// the tickets is sold or actively held and then, in the same transaction,
// creates one Purchase and one Hold per ticket sharing a fresh reference
// id.  Duplicate numbers in the request are collapsed, keeping the first
// occurrence.
//
// It fails with *ValidationError for an empty selection, an out of range
// number or a non-positive price, with *ConflictError naming every taken
// ticket, and with *StorageError when the store fails.  No state changes in
// any failure case.
func (e *HoldEngine) PurchaseAndHold(ctx context.Context, tickets []model.TicketNumber, unitPrice decimal.Decimal) (*model.Purchase, error) {
	if len(tickets) == 0 {
		return nil, validationf("at least one ticket is required")
	}
	for _, t := range tickets {
		if err := t.Validate(); err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
	}
	if !unitPrice.IsPositive() {
		return nil, validationf("unit price must be positive")
	}
	tickets = model.UniqueTickets(tickets)

	now := e.clock()
	var purchase model.Purchase
	var expired []model.TicketNumber

	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		// Sweep first so that stale rows neither count as conflicts nor
		// block the inserts below.
		if expired, err = tx.DeleteExpiredHolds(ctx, now); err != nil {
			return err
		}
		if err := e.checkConflicts(ctx, tx, tickets, now); err != nil {
			return err
		}

		ref, err := e.uniqueReference(ctx, tx)
		if err != nil {
			return err
		}
		purchase = model.Purchase{
			ID:            e.newID(),
			ReferenceID:   ref,
			Tickets:       tickets,
			TotalCost:     model.TotalCost(len(tickets), unitPrice),
			PurchaseDate:  now,
			PaymentStatus: make(map[model.TicketNumber]bool, len(tickets)),
		}
		for _, t := range tickets {
			purchase.PaymentStatus[t] = false
		}
		if err := tx.PutPurchase(ctx, purchase); err != nil {
			return err
		}
		for _, t := range tickets {
			err := tx.PutHold(ctx, model.Hold{
				TicketNumber:  t,
				ReferenceID:   ref,
				HoldStartTime: now,
				HoldExpiry:    now.Add(e.holdDuration),
			})
			if errors.Is(err, repository.ErrHoldExists) {
				// A concurrent purchase won the race for t after our check.
				return &ConflictError{Tickets: []model.TicketNumber{t}}
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			metrics.PurchaseConflicts.Inc()
			logging.FromContext(ctx).WithField("tickets", conflict.Tickets).Info("purchase rejected: tickets taken")
		}
		return nil, e.fail(ctx, "purchase_and_hold", err)
	}

	metrics.PurchasesCreated.Inc()
	metrics.TicketsHeld.Add(float64(len(tickets)))
	e.afterSweep(ctx, expired, now)
	logging.FromContext(ctx).
		WithField("reference_id", purchase.ReferenceID).
		WithField("tickets", len(tickets)).
		Info("purchase created")
	e.publish(ctx, queue.EventPurchaseCreated, queue.PurchaseCreatedEvent{
		Header:       queue.NewEventHeader(logging.CorrelationIDFromContext(ctx)),
		PurchaseID:   purchase.ID,
		ReferenceID:  purchase.ReferenceID,
		Tickets:      ticketInts(purchase.Tickets),
		TotalCost:    purchase.TotalCost.StringFixed(2),
		PurchaseDate: purchase.PurchaseDate.Format(time.RFC3339),
		HoldExpiry:   now.Add(e.holdDuration).Format(time.RFC3339),
	})
	out := purchase.Clone()
	return &out, nil
}

// checkConflicts returns a *ConflictError listing every ticket that is sold
// or actively held at now.
func (e *HoldEngine) checkConflicts(ctx context.Context, tx repository.Tx, tickets []model.TicketNumber, now time.Time) error {
	sold, err := tx.SoldTickets(ctx)
	if err != nil {
		return err
	}
	soldSet := ticketSet(sold)

	var conflicts []model.TicketNumber
	for _, t := range tickets {
		if hasTicket(soldSet, t) {
			conflicts = append(conflicts, t)
			continue
		}
		h, err := tx.GetHold(ctx, t)
		if err != nil {
			return err
		}
		if h == nil {
			continue
		}
		if h.ActiveAt(now) {
			conflicts = append(conflicts, t)
			continue
		}
		// A leftover confirmed row does not hold the ticket; clear it so the
		// insert below does not trip over the unique key.
		if _, err := tx.DeleteHold(ctx, t); err != nil {
			return err
		}
	}
	if len(conflicts) > 0 {
		return &ConflictError{Tickets: model.SortTickets(conflicts)}
	}
	return nil
}

func (e *HoldEngine) uniqueReference(ctx context.Context, tx repository.Tx) (string, error) {
	for i := 0; i < maxReferenceAttempts; i++ {
		ref, err := e.newReference()
		if err != nil {
			return "", err
		}
		exists, err := tx.ReferenceExists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
	}
	return "", errors.New("could not generate a unique reference id")
}

// ConfirmResult identifies the purchase whose payment flag was flipped.
type ConfirmResult struct {
	TicketNumber model.TicketNumber `json:"ticket_number"`
	PurchaseID   string             `json:"purchase_id"`
	ReferenceID  string             `json:"reference_id"`
}

// ConfirmPayment marks ticket n as paid and deletes its hold in one
// transaction, turning a held ticket into a sold one.  When several
// purchases contain n, the one owning the current hold is confirmed; with
// no hold left, the most recent purchase is.  It fails with
// *NotFoundError when no purchase contains n.
func (e *HoldEngine) ConfirmPayment(ctx context.Context, n model.TicketNumber) (*ConfirmResult, error) {
	if err := n.Validate(); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	var res ConfirmResult
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		target, err := owningPurchase(ctx, tx, n)
		if err != nil {
			return err
		}
		if err := tx.SetPaymentStatus(ctx, target.ID, n); err != nil {
			if errors.Is(err, repository.ErrPurchaseNotFound) {
				return &NotFoundError{Ticket: n}
			}
			return err
		}
		if _, err := tx.DeleteHold(ctx, n); err != nil {
			return err
		}
		res = ConfirmResult{TicketNumber: n, PurchaseID: target.ID, ReferenceID: target.ReferenceID}
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "confirm_payment", err)
	}

	metrics.HoldTransitions.WithLabelValues(metrics.OutcomeConfirmed).Inc()
	logging.FromContext(ctx).
		WithField("ticket", int(n)).
		WithField("reference_id", res.ReferenceID).
		Info("payment confirmed")
	e.publish(ctx, queue.EventTicketConfirmed, queue.TicketConfirmedEvent{
		Header:       queue.NewEventHeader(logging.CorrelationIDFromContext(ctx)),
		TicketNumber: int(n),
		PurchaseID:   res.PurchaseID,
		ReferenceID:  res.ReferenceID,
		ConfirmedAt:  e.clock().Format(time.RFC3339),
	})
	return &res, nil
}

// owningPurchase picks the purchase a ticket currently belongs to: the
// one matching the live hold's reference, else the most recent one.
func owningPurchase(ctx context.Context, tx repository.Tx, n model.TicketNumber) (*model.Purchase, error) {
	purchases, err := tx.FindPurchasesByTicket(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(purchases) == 0 {
		return nil, &NotFoundError{Ticket: n}
	}
	hold, err := tx.GetHold(ctx, n)
	if err != nil {
		return nil, err
	}
	if hold != nil {
		for i := range purchases {
			if purchases[i].ReferenceID == hold.ReferenceID {
				return &purchases[i], nil
			}
		}
	}
	return &purchases[len(purchases)-1], nil
}

// ReleaseTicket deletes the hold for n if one exists and reports whether it
// did.  It never touches purchases, so a sold ticket stays sold.
func (e *HoldEngine) ReleaseTicket(ctx context.Context, n model.TicketNumber) (bool, error) {
	if err := n.Validate(); err != nil {
		return false, &ValidationError{Msg: err.Error()}
	}
	var released *model.Hold
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		h, err := tx.GetHold(ctx, n)
		if err != nil || h == nil {
			return err
		}
		if _, err := tx.DeleteHold(ctx, n); err != nil {
			return err
		}
		released = h
		return nil
	})
	if err != nil {
		return false, e.fail(ctx, "release_ticket", err)
	}
	if released == nil {
		return false, nil
	}

	metrics.HoldTransitions.WithLabelValues(metrics.OutcomeReleased).Inc()
	logging.FromContext(ctx).WithField("ticket", int(n)).Info("hold released")
	e.publish(ctx, queue.EventTicketReleased, queue.TicketReleasedEvent{
		Header:       queue.NewEventHeader(logging.CorrelationIDFromContext(ctx)),
		TicketNumber: int(n),
		ReferenceID:  released.ReferenceID,
		Reason:       queue.ReleaseReasonAdmin,
		ReleasedAt:   e.clock().Format(time.RFC3339),
	})
	return true, nil
}

// CleanupExpiredHolds deletes every unconfirmed hold whose expiry has
// passed and returns how many it removed.  It is safe to call at any time
// and as often as wanted.
func (e *HoldEngine) CleanupExpiredHolds(ctx context.Context) (int, error) {
	now := e.clock()
	var expired []model.TicketNumber
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		expired, err = tx.DeleteExpiredHolds(ctx, now)
		return err
	})
	if err != nil {
		return 0, e.fail(ctx, "cleanup_expired_holds", err)
	}
	e.afterSweep(ctx, expired, now)
	return len(expired), nil
}

// GetHoldInfo returns the hold row for n with its remaining time, or nil
// when n has no hold.  It does not delete expired rows; a zero
// TimeRemaining means the hold has lapsed and only awaits the sweep.
func (e *HoldEngine) GetHoldInfo(ctx context.Context, n model.TicketNumber) (*model.HoldInfo, error) {
	if err := n.Validate(); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	now := e.clock()
	var info *model.HoldInfo
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		h, err := tx.GetHold(ctx, n)
		if err != nil || h == nil {
			return err
		}
		info = &model.HoldInfo{Hold: *h, TimeRemaining: h.TimeRemaining(now)}
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "get_hold_info", err)
	}
	return info, nil
}

// ResetAll deletes every purchase and every hold.  Pricing is untouched.
func (e *HoldEngine) ResetAll(ctx context.Context) error {
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.DeleteAll(ctx)
	})
	if err != nil {
		return e.fail(ctx, "reset_all", err)
	}
	logging.FromContext(ctx).Warn("all purchases and holds deleted")
	return nil
}

// Classify sweeps expired holds and partitions the ticket universe into
// sold and held sets at the current time.  Everything else is available.
func (e *HoldEngine) Classify(ctx context.Context) (model.Classification, error) {
	now := e.clock()
	var out model.Classification
	var expired []model.TicketNumber
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if expired, err = tx.DeleteExpiredHolds(ctx, now); err != nil {
			return err
		}
		out, err = classify(ctx, tx, now)
		return err
	})
	if err != nil {
		return model.Classification{}, e.fail(ctx, "classify", err)
	}
	e.afterSweep(ctx, expired, now)
	return out, nil
}

// classify derives the classification from the rows visible in tx.  A
// ticket that is both paid and still has a live hold row is reported as
// sold only.
func classify(ctx context.Context, tx repository.Tx, now time.Time) (model.Classification, error) {
	sold, err := tx.SoldTickets(ctx)
	if err != nil {
		return model.Classification{}, err
	}
	holds, err := tx.ListHolds(ctx)
	if err != nil {
		return model.Classification{}, err
	}
	soldSet := ticketSet(sold)
	held := []model.TicketNumber{}
	for _, h := range holds {
		if hasTicket(soldSet, h.TicketNumber) {
			continue
		}
		if h.ActiveAt(now) {
			held = append(held, h.TicketNumber)
		}
	}
	return model.Classification{Sold: sold, Held: model.SortTickets(held)}, nil
}

// afterSweep records metrics and events for holds removed by an expiry
// sweep.
func (e *HoldEngine) afterSweep(ctx context.Context, expired []model.TicketNumber, now time.Time) {
	if len(expired) == 0 {
		return
	}
	metrics.HoldTransitions.WithLabelValues(metrics.OutcomeExpired).Add(float64(len(expired)))
	logging.FromContext(ctx).WithField("count", len(expired)).Info("expired holds removed")
	for _, t := range expired {
		e.publish(ctx, queue.EventTicketReleased, queue.TicketReleasedEvent{
			Header:       queue.NewEventHeader(logging.CorrelationIDFromContext(ctx)),
			TicketNumber: int(t),
			Reason:       queue.ReleaseReasonExpired,
			ReleasedAt:   now.Format(time.RFC3339),
		})
	}
}

// publish hands an event to the publisher.  Failures are logged and
// counted; they never fail the operation that already committed.
func (e *HoldEngine) publish(ctx context.Context, eventType string, event any) {
	if err := e.publisher.Publish(ctx, eventType, event); err != nil {
		metrics.EventsPublishFailed.WithLabelValues(eventType).Inc()
		logging.FromContext(ctx).WithError(err).WithField("event_type", eventType).Warn("could not publish event")
	}
}

// fail passes domain errors through and wraps everything else in a
// *StorageError.
func (e *HoldEngine) fail(ctx context.Context, op string, err error) error {
	var conflict *ConflictError
	var notFound *NotFoundError
	var invalid *ValidationError
	if errors.As(err, &conflict) || errors.As(err, &notFound) || errors.As(err, &invalid) {
		return err
	}
	metrics.StorageFailures.WithLabelValues(op).Inc()
	logging.FromContext(ctx).WithError(err).WithField("operation", op).Error("storage failure")
	return &StorageError{Op: op, Err: err}
}

func ticketInts(ts []model.TicketNumber) []int {
	out := make([]int, 0, len(ts))
	for _, t := range ts {
		out = append(out, int(t))
	}
	return out
}
