package repository

import (
	"context"
	"time"

	"viatransfer/auth-service/internal/session/domain"
)

// Repository defines persistence for sessions. It carries no business
// logic; liveness rules live in the domain and services.
type Repository interface {
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Create persists a new session row. The session must have ID and
	// SecretHash set; SecretHash is immutable afterwards.
	Create(ctx context.Context, s *domain.Session) error
	// Rotate atomically revokes the session oldID with reason "rotated" and
	// inserts successor, but only if oldID is still unrevoked. Returns true
	// when this caller won; false when the row was already revoked (a
	// concurrent rotation or a prior revocation got there first). On false
	// the successor is not inserted.
	Rotate(ctx context.Context, oldID string, successor *domain.Session) (bool, error)
	// Revoke marks the session revoked with the given reason. Idempotent:
	// revoking an already-revoked session is a no-op success.
	Revoke(ctx context.Context, id string, reason domain.RevokeReason) error
	// RevokeAllForSubject revokes every live session of the subject and
	// returns how many rows were actually revoked.
	RevokeAllForSubject(ctx context.Context, subjectID string, reason domain.RevokeReason) (int64, error)
	// ListActive returns the subject's unrevoked, unexpired sessions.
	ListActive(ctx context.Context, subjectID string) ([]*domain.Session, error)
	// CountActive returns the number of unrevoked, unexpired sessions.
	CountActive(ctx context.Context, subjectID string) (int64, error)
	// PurgeRevokedOlderThan physically deletes revoked rows whose revocation
	// is older than retention, plus rows expired for longer than retention.
	// Storage hygiene only; safe to run concurrently with all other calls.
	PurgeRevokedOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}
