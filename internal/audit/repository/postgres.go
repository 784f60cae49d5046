package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"viatransfer/auth-service/internal/audit/domain"
)

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a security-event repository backed by db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type eventRow struct {
	ID        string         `db:"id"`
	SubjectID string         `db:"subject_id"`
	Action    string         `db:"action"`
	Resource  string         `db:"resource"`
	IP        sql.NullString `db:"ip"`
	Metadata  sql.NullString `db:"metadata"`
	CreatedAt time.Time      `db:"created_at"`
}

// Create persists the event.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_events (id, subject_id, action, resource, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.SubjectID, e.Action, e.Resource,
		sql.NullString{String: e.IP, Valid: e.IP != ""},
		sql.NullString{String: e.Metadata, Valid: e.Metadata != ""},
		e.CreatedAt,
	)
	return err
}

// ListBySubject returns the subject's events, newest first.
func (r *PostgresRepository) ListBySubject(ctx context.Context, subjectID string, limit, offset int32) ([]*domain.Event, error) {
	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, subject_id, action, resource, ip, metadata, created_at
		FROM security_events
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		subjectID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Event, len(rows))
	for i, row := range rows {
		out[i] = &domain.Event{
			ID:        row.ID,
			SubjectID: row.SubjectID,
			Action:    row.Action,
			Resource:  row.Resource,
			IP:        row.IP.String,
			Metadata:  row.Metadata.String,
			CreatedAt: row.CreatedAt,
		}
	}
	return out, nil
}
