package queue

import (
	"context"
	"errors"

	"github.com/iliyamo/lottery-storefront/internal/logging"
	"github.com/iliyamo/lottery-storefront/internal/metrics"
)

// ErrPublishBufferFull is returned by AsyncPublisher.Publish when the
// background publisher has fallen behind and the event was dropped.
var ErrPublishBufferFull = errors.New("publish buffer full")

type pendingEvent struct {
	correlationID string
	eventType     string
	event         any
}

// AsyncPublisher queues events in memory and hands them to the wrapped
// Publisher from a single background goroutine, so callers never wait on
// the broker.  Run must be started for anything to be delivered.
type AsyncPublisher struct {
	next   Publisher
	events chan pendingEvent
}

// NewAsyncPublisher wraps next with a buffer of the given size.
func NewAsyncPublisher(next Publisher, buffer int) *AsyncPublisher {
	if next == nil {
		panic("queue: nil publisher")
	}
	if buffer <= 0 {
		buffer = 1024
	}
	return &AsyncPublisher{next: next, events: make(chan pendingEvent, buffer)}
}

// Publish enqueues the event and returns immediately.  It never blocks; a
// full buffer drops the event and reports ErrPublishBufferFull.
func (p *AsyncPublisher) Publish(ctx context.Context, eventType string, event any) error {
	select {
	case p.events <- pendingEvent{
		correlationID: logging.CorrelationIDFromContext(ctx),
		eventType:     eventType,
		event:         event,
	}:
		return nil
	default:
		return ErrPublishBufferFull
	}
}

// Run delivers queued events until ctx is cancelled.  Delivery failures
// are counted and logged by event type; they do not stop the loop.
// Events still queued at shutdown are dropped.
func (p *AsyncPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.stop(ctx)
			return nil
		case ev := <-p.events:
			// Both cases may be ready at once; shutdown wins.
			if ctx.Err() != nil {
				p.stop(ctx)
				return nil
			}
			evCtx, _ := logging.WithCorrelationID(ctx, ev.correlationID)
			if err := p.next.Publish(evCtx, ev.eventType, ev.event); err != nil {
				metrics.EventsPublishFailed.WithLabelValues(ev.eventType).Inc()
				logging.FromContext(evCtx).WithError(err).WithField("event_type", ev.eventType).Warn("could not publish event")
			}
		}
	}
}

func (p *AsyncPublisher) stop(ctx context.Context) {
	if n := len(p.events); n > 0 {
		logging.FromContext(ctx).WithField("dropped", n).Warn("publisher stopped with queued events")
	}
}

// Pending reports how many events wait for delivery.
func (p *AsyncPublisher) Pending() int { return len(p.events) }
