package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"viatransfer/auth-service/internal/user/domain"
)

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a subject repository backed by db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type subjectRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Role      string    `db:"role"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GetByID returns the subject for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Subject, error) {
	var row subjectRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, email, role, status, created_at, updated_at FROM subjects WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Subject{
		ID:        row.ID,
		Email:     row.Email,
		Role:      row.Role,
		Status:    domain.SubjectStatus(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Create persists the subject. Used by cmd/seed and tests; the production
// write path for subjects belongs to the user-store service.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Subject) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subjects (id, email, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Email, s.Role, string(s.Status), s.CreatedAt, s.UpdatedAt,
	)
	return err
}
