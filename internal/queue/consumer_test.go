package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAuditLine(t *testing.T) {
	body, err := json.Marshal(PurchaseCreatedEvent{
		Header:      EventHeader{ID: "e1", PublishedAt: "2026-03-01T10:00:00Z"},
		PurchaseID:  "p1",
		ReferenceID: "REF-ABC123DEF",
		Tickets:     []int{42, 7},
		TotalCost:   "10.00",
		HoldExpiry:  "2026-03-01T10:30:00Z",
	})
	require.NoError(t, err)

	line, err := FormatAuditLine(EventPurchaseCreated, body)
	require.NoError(t, err)
	assert.Equal(t, "[2026-03-01T10:00:00Z] Purchase created | reference=REF-ABC123DEF | purchase_id=p1 | total=10.00 | hold_expiry=2026-03-01T10:30:00Z | tickets=[42,7]\n", line)

	body, err = json.Marshal(TicketReleasedEvent{TicketNumber: 9, Reason: ReleaseReasonExpired, ReleasedAt: "t"})
	require.NoError(t, err)
	line, err = FormatAuditLine(EventTicketReleased, body)
	require.NoError(t, err)
	assert.Contains(t, line, "ticket=9")
	assert.Contains(t, line, "reason=expired")

	_, err = FormatAuditLine("something.else", body)
	assert.Error(t, err)
	_, err = FormatAuditLine(EventTicketConfirmed, []byte("{"))
	assert.Error(t, err)
}

func TestAuditConsumer_handleAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.log")
	c := NewAuditConsumer("amqp://unused", "q", path)

	body, err := json.Marshal(TicketConfirmedEvent{TicketNumber: 1, ReferenceID: "REF-ABC123DEF", PurchaseID: "p1", ConfirmedAt: "t"})
	require.NoError(t, err)
	require.NoError(t, c.handle(EventTicketConfirmed, body))
	require.NoError(t, c.handle(EventTicketConfirmed, body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, len(splitLines(string(data))))
}

func TestSleepCtx_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepCtx(ctx, time.Hour))
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
