package repository

import (
	"context"

	"viatransfer/auth-service/internal/audit/domain"
)

// Repository defines persistence for security events.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	ListBySubject(ctx context.Context, subjectID string, limit, offset int32) ([]*domain.Event, error)
}
