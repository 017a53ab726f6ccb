// Package logging wires logrus for the storefront.  Request handlers and
// background workers obtain a context-scoped entry through FromContext so
// every line they emit carries the request's correlation id.
package logging

import (
	"context"
	"os"
	"strings"

	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"
)

// CorrelationIDHeader is read from incoming requests and echoed back.
const CorrelationIDHeader = "Correlation-ID"

type ctxKey int

const (
	loggerKey ctxKey = iota
	correlationIDKey
)

// Init configures the standard logrus logger.  Unknown levels fall back to
// info; format "json" selects the JSON formatter, anything else the text
// formatter with full timestamps.
func Init(level, format string) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stdout)
	if strings.EqualFold(format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// ToContext stores entry in ctx.
func ToContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey, entry)
}

// FromContext returns the entry stored in ctx, or a fresh entry on the
// standard logger.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(loggerKey).(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// ContextWithCorrelationID stores id in ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the id stored in ctx, or "" when none.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// NewCorrelationID returns a short random id.
func NewCorrelationID() string {
	return shortuuid.New()
}

// WithCorrelationID returns a context carrying id and a logger entry
// tagged with it.  An empty id is replaced with a fresh one.
func WithCorrelationID(ctx context.Context, id string) (context.Context, string) {
	if id == "" {
		id = NewCorrelationID()
	}
	ctx = ContextWithCorrelationID(ctx, id)
	ctx = ToContext(ctx, logrus.WithFields(logrus.Fields{"correlation_id": id}))
	return ctx, id
}
