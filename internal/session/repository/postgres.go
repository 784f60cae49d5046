package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"viatransfer/auth-service/internal/session/domain"
)

// PostgresRepository persists sessions in Postgres. Expiry is enforced in
// every read path (expires_at > now()) so callers never duplicate the check,
// and the rotate path uses a conditional update so concurrent rotations of
// one row have exactly one winner.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a session repository backed by db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type sessionRow struct {
	ID            string         `db:"id"`
	SubjectID     string         `db:"subject_id"`
	SecretHash    string         `db:"secret_hash"`
	Revoked       bool           `db:"revoked"`
	RevokedReason sql.NullString `db:"revoked_reason"`
	RevokedAt     sql.NullTime   `db:"revoked_at"`
	ExpiresAt     time.Time      `db:"expires_at"`
	UserAgent     sql.NullString `db:"user_agent"`
	Platform      sql.NullString `db:"platform"`
	Browser       sql.NullString `db:"browser"`
	OS            sql.NullString `db:"os"`
	IssuingIP     sql.NullString `db:"issuing_ip"`
	LastUsedAt    sql.NullTime   `db:"last_used_at"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

const sessionColumns = `id, subject_id, secret_hash, revoked, revoked_reason, revoked_at,
	expires_at, user_agent, platform, browser, os, issuing_ip, last_used_at, created_at, updated_at`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

// Create persists the session. The session must have ID and SecretHash set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, subject_id, secret_hash, revoked, revoked_reason, revoked_at,
			expires_at, user_agent, platform, browser, os, issuing_ip, last_used_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.SubjectID, s.SecretHash, s.Revoked,
		nullString(string(s.RevokedReason)), nullTime(s.RevokedAt),
		s.ExpiresAt,
		nullString(s.DeviceInfo.UserAgent), nullString(s.DeviceInfo.Platform),
		nullString(s.DeviceInfo.Browser), nullString(s.DeviceInfo.OS),
		nullString(s.IssuingIP), nullTime(s.LastUsedAt), s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// Rotate revokes oldID with reason "rotated" and inserts successor in one
// transaction. The UPDATE is guarded on revoked = FALSE; zero rows affected
// means a concurrent caller already consumed the session and this caller
// lost, in which case nothing is inserted and (false, nil) is returned.
func (r *PostgresRepository) Rotate(ctx context.Context, oldID string, successor *domain.Session) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET revoked = TRUE, revoked_reason = $2, revoked_at = $3, last_used_at = $3, updated_at = $3
		WHERE id = $1 AND revoked = FALSE`,
		oldID, string(domain.ReasonRotated), now,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, subject_id, secret_hash, revoked, revoked_reason, revoked_at,
			expires_at, user_agent, platform, browser, os, issuing_ip, last_used_at, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, NULL, NULL, $4, $5, $6, $7, $8, $9, NULL, $10, $10)`,
		successor.ID, successor.SubjectID, successor.SecretHash, successor.ExpiresAt,
		nullString(successor.DeviceInfo.UserAgent), nullString(successor.DeviceInfo.Platform),
		nullString(successor.DeviceInfo.Browser), nullString(successor.DeviceInfo.OS),
		nullString(successor.IssuingIP), successor.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Revoke marks the session revoked. Already-revoked rows are left untouched
// so the first reason sticks; the call still succeeds.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, reason domain.RevokeReason) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET revoked = TRUE, revoked_reason = $2, revoked_at = $3, updated_at = $3
		WHERE id = $1 AND revoked = FALSE`,
		id, string(reason), now,
	)
	return err
}

// RevokeAllForSubject revokes every live session of the subject and returns
// the number of rows revoked.
func (r *PostgresRepository) RevokeAllForSubject(ctx context.Context, subjectID string, reason domain.RevokeReason) (int64, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET revoked = TRUE, revoked_reason = $2, revoked_at = $3, updated_at = $3
		WHERE subject_id = $1 AND revoked = FALSE`,
		subjectID, string(reason), now,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListActive returns the subject's unrevoked, unexpired sessions, newest first.
func (r *PostgresRepository) ListActive(ctx context.Context, subjectID string) ([]*domain.Session, error) {
	var rows []sessionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE subject_id = $1 AND revoked = FALSE AND expires_at > now()
		ORDER BY created_at DESC`,
		subjectID,
	)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Session, len(rows))
	for i := range rows {
		out[i] = rowToDomain(&rows[i])
	}
	return out, nil
}

// CountActive returns the number of unrevoked, unexpired sessions for the subject.
func (r *PostgresRepository) CountActive(ctx context.Context, subjectID string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM sessions
		WHERE subject_id = $1 AND revoked = FALSE AND expires_at > now()`,
		subjectID,
	)
	return n, err
}

// PurgeRevokedOlderThan deletes revoked rows older than retention and rows
// whose expiry passed more than retention ago. Deletion is storage hygiene,
// not a security control; liveness checks never depend on it.
func (r *PostgresRepository) PurgeRevokedOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE (revoked = TRUE AND revoked_at < $1) OR expires_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func rowToDomain(row *sessionRow) *domain.Session {
	if row == nil {
		return nil
	}
	return &domain.Session{
		ID:            row.ID,
		SubjectID:     row.SubjectID,
		SecretHash:    row.SecretHash,
		Revoked:       row.Revoked,
		RevokedReason: domain.RevokeReason(row.RevokedReason.String),
		RevokedAt:     nullTimeToPtr(row.RevokedAt),
		ExpiresAt:     row.ExpiresAt,
		DeviceInfo: domain.DeviceInfo{
			UserAgent: row.UserAgent.String,
			Platform:  row.Platform.String,
			Browser:   row.Browser.String,
			OS:        row.OS.String,
		},
		IssuingIP:  row.IssuingIP.String,
		LastUsedAt: nullTimeToPtr(row.LastUsedAt),
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
