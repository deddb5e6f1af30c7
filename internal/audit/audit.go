// Package audit delivers admin moderation events to the audit log. Delivery
// is best-effort: a failed emit is logged and counted, never returned to the
// moderation action that produced it.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/observability"

	"github.com/google/uuid"
)

// Event is one admin action.
type Event struct {
	ID         string                 `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	Action     string                 `json:"action"`
	TargetType string                 `json:"target_type"`
	TargetID   string                 `json:"target_id"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Emitter delivers events to one sink.
type Emitter interface {
	Name() string
	Emit(ctx context.Context, e Event) error
}

// EmitTimeout bounds one best-effort delivery.
const EmitTimeout = 2 * time.Second

// Record fills in the event id and timestamp and delivers e through emitter.
// It never fails; delivery errors are logged and counted. The caller's
// cancellation does not abort delivery of an already committed action.
func Record(ctx context.Context, emitter Emitter, e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if emitter == nil {
		return e
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), EmitTimeout)
	defer cancel()

	if err := emitter.Emit(ctx, e); err != nil {
		if _, multi := emitter.(Multi); !multi {
			observability.AuditEmitFailures.WithLabelValues(emitter.Name()).Inc()
		}
		middleware.Logger.WarnContext(ctx, "Audit event not delivered",
			slog.String("audit_id", e.ID),
			slog.String("action", e.Action),
			slog.String("target_type", e.TargetType),
			slog.String("target_id", e.TargetID),
			slog.String("error", err.Error()),
		)
	}
	return e
}

// Multi fans an event out to every emitter and joins their errors.
type Multi []Emitter

// Name implements Emitter.
func (m Multi) Name() string { return "multi" }

// Emit implements Emitter. Every sink is attempted even if an earlier one fails.
func (m Multi) Emit(ctx context.Context, e Event) error {
	var errs []error
	for _, em := range m {
		if em == nil {
			continue
		}
		if err := em.Emit(ctx, e); err != nil {
			observability.AuditEmitFailures.WithLabelValues(em.Name()).Inc()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop discards events.
type Noop struct{}

// Name implements Emitter.
func (Noop) Name() string { return "noop" }

// Emit implements Emitter.
func (Noop) Emit(context.Context, Event) error { return nil }

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Name implements Emitter.
func (r *Recorder) Name() string { return "recorder" }

// Emit implements Emitter. When Err is set the event is dropped and Err returned.
func (r *Recorder) Emit(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
