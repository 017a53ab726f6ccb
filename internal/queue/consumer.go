package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lottery-storefront/internal/logging"
)

// AuditConsumer listens to the ticket events queue and appends one line
// per event to an audit log file.
type AuditConsumer struct {
	url     string
	queue   string
	logPath string
}

// NewAuditConsumer returns a consumer for queue on the broker at url that
// writes to logPath.
func NewAuditConsumer(url, queue, logPath string) *AuditConsumer {
	return &AuditConsumer{url: url, queue: queue, logPath: logPath}
}

// Run connects to RabbitMQ, declares the queue (durable), and consumes
// messages until ctx is cancelled.  It runs a reconnect loop with
// exponential backoff and returns nil once ctx is done; processing errors
// are logged and the offending message is rejected so the service keeps
// operating.
func (c *AuditConsumer) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx).WithField("component", "audit-consumer")
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			logger.WithError(err).Warnf("failed to dial broker; retrying in %s", backoff)
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		logger.WithError(err).Warn("consume loop ended; reconnecting")
		// Sleep briefly before reconnect
		if !sleepCtx(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection, logger *logrus.Entry) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.WithError(err).Warn("set QoS failed")
	}

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Type, d.Body); err != nil {
				logger.WithError(err).WithField("event_type", d.Type).Error("handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *AuditConsumer) handle(eventType string, body []byte) error {
	line, err := FormatAuditLine(eventType, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine decodes an event body and renders it as a single,
// human-friendly log line terminated by a newline.
func FormatAuditLine(eventType string, body []byte) (string, error) {
	switch eventType {
	case EventPurchaseCreated:
		var ev PurchaseCreatedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Purchase created | reference=%s | purchase_id=%s | total=%s | hold_expiry=%s | tickets=%s\n",
			ev.Header.PublishedAt, ev.ReferenceID, ev.PurchaseID, ev.TotalCost, ev.HoldExpiry, joinInts(ev.Tickets)), nil
	case EventTicketConfirmed:
		var ev TicketConfirmedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Ticket sold | ticket=%d | reference=%s | purchase_id=%s\n",
			ev.ConfirmedAt, ev.TicketNumber, ev.ReferenceID, ev.PurchaseID), nil
	case EventTicketReleased:
		var ev TicketReleasedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Ticket released | ticket=%d | reference=%s | reason=%s\n",
			ev.ReleasedAt, ev.TicketNumber, ev.ReferenceID, ev.Reason), nil
	default:
		return "", fmt.Errorf("unknown event type %q", eventType)
	}
}

func joinInts(ns []int) string {
	parts := make([]string, 0, len(ns))
	for _, n := range ns {
		parts = append(parts, strconv.Itoa(n))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
