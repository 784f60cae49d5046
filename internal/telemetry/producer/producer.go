// Package producer defines the interface for publishing security events to
// the monitoring pipeline (e.g. Kafka).
package producer

import (
	"context"

	"viatransfer/auth-service/internal/audit/domain"
)

// Producer publishes security events. Callers use it best-effort: log and
// ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call
	// from a goroutine if needed. Returns an error only on write failure.
	Emit(ctx context.Context, event *domain.Event) error
	// Close releases resources (e.g. the Kafka writer). Safe to call if
	// already closed.
	Close() error
}
