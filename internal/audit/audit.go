// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package audit provides structured audit logging for operations that change
// ground truth or money: config reloads, auth decisions, snapshot ingestion,
// rejected predictions and ledger writes. It follows the WHO/WHAT/WHEN pattern.
package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/betspecs/betspecs/internal/log"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Configuration events
	EventConfigReload      EventType = "config.reload"
	EventConfigReloadError EventType = "config.reload.error"

	// Ground truth
	EventSnapshotIngested EventType = "snapshot.ingested"
	EventSnapshotRejected EventType = "snapshot.rejected"

	// Trust layer
	EventPredictionRejected EventType = "prediction.rejected"

	// Ledger
	EventBetPlaced  EventType = "bet.placed"
	EventBetSettled EventType = "bet.settled"

	// Authentication events
	EventAuthSuccess EventType = "auth.success"
	EventAuthFailure EventType = "auth.failure"
	EventAuthMissing EventType = "auth.missing"

	EventAPIRateLimit EventType = "api.ratelimit"
)

// Event represents a structured audit event.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	Type       EventType         `json:"type"`
	Actor      string            `json:"actor"`  // WHO: token holder, IP, or "system"
	Action     string            `json:"action"` // WHAT
	Resource   string            `json:"resource"`
	Result     string            `json:"result"` // success, failure, denied
	RemoteAddr string            `json:"remote_addr"`
	RequestID  string            `json:"request_id"`
	Details    map[string]string `json:"details,omitempty"`
}

// Logger provides audit logging functionality.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates an audit logger on the "audit" component.
func NewLogger() *Logger {
	return NewLoggerWith(log.WithComponent("audit"))
}

// NewLoggerWith builds an audit logger on top of base.
func NewLoggerWith(base zerolog.Logger) *Logger {
	return &Logger{logger: base.With().Str("log_type", "audit").Logger()}
}

// Log writes an audit event to the audit log.
func (l *Logger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	logEvent := l.logger.Info().
		Time("timestamp", event.Timestamp).
		Str("event_type", string(event.Type)).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("resource", event.Resource).
		Str("result", event.Result)

	if event.RemoteAddr != "" {
		logEvent.Str("remote_addr", event.RemoteAddr)
	}
	if event.RequestID != "" {
		logEvent.Str(log.FieldRequestID, event.RequestID)
	}
	for key, value := range event.Details {
		logEvent.Str(key, value)
	}

	logEvent.Msg("audit event")
}

// LogFromContext fills the request ID from ctx before logging.
func (l *Logger) LogFromContext(ctx context.Context, event Event) {
	if event.RequestID == "" {
		event.RequestID = log.RequestIDFromContext(ctx)
	}
	l.Log(event)
}

// ConfigReload logs a configuration reload event.
func (l *Logger) ConfigReload(actor, result string, details map[string]string) {
	typ := EventConfigReload
	if result != "success" {
		typ = EventConfigReloadError
	}
	l.Log(Event{
		Type:     typ,
		Actor:    actor,
		Action:   "reloaded configuration",
		Resource: "config",
		Result:   result,
		Details:  details,
	})
}

// SnapshotIngested logs an applied odds snapshot.
func (l *Logger) SnapshotIngested(ctx context.Context, source, provider string, events, changed int) {
	l.LogFromContext(ctx, Event{
		Type:     EventSnapshotIngested,
		Actor:    source,
		Action:   "applied odds snapshot",
		Resource: provider,
		Result:   "success",
		Details: map[string]string{
			"events":  strconv.Itoa(events),
			"changed": strconv.Itoa(changed),
		},
	})
}

// SnapshotRejected logs a snapshot that failed validation or storage.
func (l *Logger) SnapshotRejected(ctx context.Context, source, reason string) {
	l.LogFromContext(ctx, Event{
		Type:     EventSnapshotRejected,
		Actor:    source,
		Action:   "rejected odds snapshot",
		Resource: "snapshot",
		Result:   "failure",
		Details:  map[string]string{"error": reason},
	})
}

// PredictionRejected logs a prediction that exhausted its regeneration budget.
func (l *Logger) PredictionRejected(ctx context.Context, eventID string, attempts int, discrepancies []string) {
	details := map[string]string{"attempts": strconv.Itoa(attempts)}
	for i, d := range discrepancies {
		details["discrepancy_"+strconv.Itoa(i)] = d
	}
	l.LogFromContext(ctx, Event{
		Type:     EventPredictionRejected,
		Actor:    "agent",
		Action:   "rejected AI prediction",
		Resource: eventID,
		Result:   "denied",
		Details:  details,
	})
}

// BetPlaced logs a new ledger entry.
func (l *Logger) BetPlaced(ctx context.Context, betID, eventID, stake, odds string) {
	l.LogFromContext(ctx, Event{
		Type:     EventBetPlaced,
		Actor:    "api",
		Action:   "placed bet",
		Resource: betID,
		Result:   "success",
		Details:  map[string]string{"event_id": eventID, "stake": stake, "odds": odds},
	})
}

// BetSettled logs a settlement.
func (l *Logger) BetSettled(ctx context.Context, betID, status, profit string) {
	l.LogFromContext(ctx, Event{
		Type:     EventBetSettled,
		Actor:    "api",
		Action:   "settled bet",
		Resource: betID,
		Result:   status,
		Details:  map[string]string{"profit": profit},
	})
}

// AuthSuccess logs a successful authentication.
func (l *Logger) AuthSuccess(remoteAddr, endpoint string) {
	l.Log(Event{
		Type:       EventAuthSuccess,
		Actor:      remoteAddr,
		Action:     "authenticated successfully",
		Resource:   endpoint,
		Result:     "success",
		RemoteAddr: remoteAddr,
	})
}

// AuthFailure logs a failed authentication attempt.
func (l *Logger) AuthFailure(remoteAddr, endpoint, reason string) {
	l.Log(Event{
		Type:       EventAuthFailure,
		Actor:      remoteAddr,
		Action:     "authentication failed",
		Resource:   endpoint,
		Result:     "failure",
		RemoteAddr: remoteAddr,
		Details:    map[string]string{"reason": reason},
	})
}

// AuthMissing logs a request without authentication.
func (l *Logger) AuthMissing(remoteAddr, endpoint string) {
	l.Log(Event{
		Type:       EventAuthMissing,
		Actor:      remoteAddr,
		Action:     "accessed endpoint without authentication",
		Resource:   endpoint,
		Result:     "denied",
		RemoteAddr: remoteAddr,
	})
}

// RateLimitExceeded logs rate limit violations.
func (l *Logger) RateLimitExceeded(remoteAddr, endpoint string) {
	l.Log(Event{
		Type:       EventAPIRateLimit,
		Actor:      remoteAddr,
		Action:     "rate limit exceeded",
		Resource:   endpoint,
		Result:     "denied",
		RemoteAddr: remoteAddr,
	})
}
