// Package audit emits structured audit events for credential and admin
// actions. Events are enriched with the request id and the session user when
// the context carries them.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"newhope.org/internal/obs"
	"newhope.org/internal/session"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// sink is swappable so tests can capture events.
var sink func() zerolog.Logger = obs.Logger

// SetLoggerForTests routes audit events to the given logger and returns a
// restore function. Only intended for test use.
func SetLoggerForTests(l zerolog.Logger) func() {
	prev := sink
	sink = func() zerolog.Logger { return l }
	return func() { sink = prev }
}

// LogEvent writes an audit entry enriched with request and user context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}

	logger := sink()
	evt := logger.Info().
		Str("type", "audit").
		Str("event", event).
		Time("ts", time.Now().UTC())
	if rid := RequestIDFromContext(ctx); rid != "" {
		evt = evt.Str("request_id", rid)
	}
	if user, ok := session.UserFromContext(ctx); ok {
		evt = evt.Int64("user_id", user.ID).Str("role", string(user.Role))
	}
	if len(fields) > 0 {
		evt = evt.Fields(fields)
	}
	evt.Msg("audit")
	return nil
}
