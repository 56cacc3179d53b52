package auth

import (
	"context"
)

// SecurityEventSink consumes audit events. Sinks run best-effort from the
// flows: a failing sink is logged, never allowed to block an
// authentication decision.
type SecurityEventSink interface {
	Record(ctx context.Context, event SecurityEvent) error
}

// SecurityEventSinkFunc adapts a function to the SecurityEventSink interface.
type SecurityEventSinkFunc func(ctx context.Context, event SecurityEvent) error

// Record implements SecurityEventSink.
func (f SecurityEventSinkFunc) Record(ctx context.Context, event SecurityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopSecurityEventSink struct{}

func (noopSecurityEventSink) Record(context.Context, SecurityEvent) error {
	return nil
}

func normalizeEventSink(s SecurityEventSink) SecurityEventSink {
	if s == nil {
		return noopSecurityEventSink{}
	}
	return s
}

// StoreEventSink persists events through the SecurityEvents repository.
type StoreEventSink struct {
	store SecurityEvents
}

// NewStoreEventSink wraps the repository in a sink.
func NewStoreEventSink(store SecurityEvents) *StoreEventSink {
	return &StoreEventSink{store: store}
}

// Record implements SecurityEventSink.
func (s *StoreEventSink) Record(ctx context.Context, event SecurityEvent) error {
	return s.store.Append(ctx, &event)
}
