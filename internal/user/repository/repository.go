package repository

import (
	"context"

	"viatransfer/auth-service/internal/user/domain"
)

// Repository defines the subject lookup the rotation path depends on.
// Role and status must be read fresh here at rotation time; the access
// token's role claim is a cache, never a source of truth.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Subject, error)
}
