package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/iliyamo/lottery-storefront/internal/logging"
)

type recordingPublisher struct {
	mu     sync.Mutex
	types  []string
	corrs  []string
	failOn string
}

func (r *recordingPublisher) Publish(ctx context.Context, eventType string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	r.corrs = append(r.corrs, logging.CorrelationIDFromContext(ctx))
	if eventType == r.failOn {
		return errors.New("broker said no")
	}
	return nil
}

func (r *recordingPublisher) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func TestAsyncPublisher_bufferFullDrops(t *testing.T) {
	p := NewAsyncPublisher(&recordingPublisher{}, 2)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, EventPurchaseCreated, nil))
	require.NoError(t, p.Publish(ctx, EventTicketConfirmed, nil))
	assert.ErrorIs(t, p.Publish(ctx, EventTicketReleased, nil), ErrPublishBufferFull)
	assert.Equal(t, 2, p.Pending())
}

func TestAsyncPublisher_runDeliversInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	next := &recordingPublisher{failOn: EventTicketConfirmed}
	p := NewAsyncPublisher(next, 8)

	reqCtx := logging.ContextWithCorrelationID(context.Background(), "corr-1")
	require.NoError(t, p.Publish(reqCtx, EventPurchaseCreated, nil))
	require.NoError(t, p.Publish(reqCtx, EventTicketConfirmed, nil))
	require.NoError(t, p.Publish(reqCtx, EventTicketReleased, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// A failed delivery does not stop the ones behind it.
	assert.Eventually(t, func() bool { return len(next.published()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{EventPurchaseCreated, EventTicketConfirmed, EventTicketReleased}, next.published())
	next.mu.Lock()
	assert.Equal(t, []string{"corr-1", "corr-1", "corr-1"}, next.corrs)
	next.mu.Unlock()

	cancel()
	require.NoError(t, <-done)
}

func TestNewAsyncPublisher_panicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewAsyncPublisher(nil, 1) })
}
