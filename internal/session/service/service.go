// Package service implements session administration: listing a subject's
// active sessions and targeted or blanket revocation. It shares the session
// store with the rotation path but is otherwise independent of it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"viatransfer/auth-service/internal/audit"
	auditdomain "viatransfer/auth-service/internal/audit/domain"
	"viatransfer/auth-service/internal/security"
	"viatransfer/auth-service/internal/session/domain"
	"viatransfer/auth-service/internal/session/repository"
)

// ErrSessionNotFound is returned by RevokeSession when the session does not
// exist or belongs to another subject. The two cases are deliberately
// indistinguishable so session ids cannot be probed.
var ErrSessionNotFound = errors.New("session not found")

// SessionInfo is the client-facing view of a session. It never carries the
// secret hash.
type SessionInfo struct {
	ID         string            `json:"id"`
	DeviceInfo domain.DeviceInfo `json:"deviceInfo"`
	IssuingIP  string            `json:"issuingIp"`
	CreatedAt  time.Time         `json:"createdAt"`
	LastUsedAt *time.Time        `json:"lastUsedAt,omitempty"`
	ExpiresAt  time.Time         `json:"expiresAt"`
}

// Service administers sessions through the shared store.
type Service struct {
	repo  repository.Repository
	audit audit.Logger
}

// NewService returns a session administration service. auditLogger may be nil.
func NewService(repo repository.Repository, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, audit: auditLogger}
}

// Logout revokes the session behind the presented refresh token with reason
// "logout". It always reports success: the client's primary goal is to
// discard its local credentials, and a malformed token, a missing row, or a
// store failure must not block that. Server-side failures are logged.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	sessionID, _, err := security.DecodeRefreshToken(refreshToken)
	if err != nil {
		return nil
	}
	if err := s.repo.Revoke(ctx, sessionID, domain.ReasonLogout); err != nil {
		log.Printf("session: logout revoke failed for %s: %v", sessionID, err)
	}
	return nil
}

// LogoutAll revokes every active session of the subject with reason
// "logout" and returns the count revoked, for "logged out of N devices"
// display. On partial failure the count actually revoked is still reported
// through the error path's event metadata.
func (s *Service) LogoutAll(ctx context.Context, subjectID string) (int64, error) {
	count, err := s.repo.RevokeAllForSubject(ctx, subjectID, domain.ReasonLogout)
	if s.audit != nil {
		s.audit.LogEvent(ctx, subjectID, auditdomain.ActionLogoutAll, "session",
			fmt.Sprintf("sessions_revoked=%d", count))
	}
	return count, err
}

// ListSessions returns the subject's active sessions. Revoked and expired
// rows are excluded by the store; secret hashes never leave the repository
// layer.
func (s *Service) ListSessions(ctx context.Context, subjectID string) ([]SessionInfo, error) {
	sessions, err := s.repo.ListActive(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	out := make([]SessionInfo, len(sessions))
	for i, sess := range sessions {
		out[i] = SessionInfo{
			ID:         sess.ID,
			DeviceInfo: sess.DeviceInfo,
			IssuingIP:  sess.IssuingIP,
			CreatedAt:  sess.CreatedAt,
			LastUsedAt: sess.LastUsedAt,
			ExpiresAt:  sess.ExpiresAt,
		}
	}
	return out, nil
}

// CountActive returns the subject's number of active sessions, used by
// anomaly heuristics upstream.
func (s *Service) CountActive(ctx context.Context, subjectID string) (int64, error) {
	return s.repo.CountActive(ctx, subjectID)
}

// RevokeSession revokes one session after verifying it belongs to
// subjectID, so a caller cannot revoke another subject's session by
// guessing an id.
func (s *Service) RevokeSession(ctx context.Context, subjectID, sessionID string) error {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.SubjectID != subjectID {
		return ErrSessionNotFound
	}
	return s.repo.Revoke(ctx, sessionID, domain.ReasonLogout)
}

// CascadeOnPasswordChange revokes all of the subject's sessions with reason
// "password_change". Invoked by the credential-management flow as a side
// effect of a password update. Returns the count revoked so partial
// application is detectable by the caller.
func (s *Service) CascadeOnPasswordChange(ctx context.Context, subjectID string) (int64, error) {
	count, err := s.repo.RevokeAllForSubject(ctx, subjectID, domain.ReasonPasswordChange)
	if s.audit != nil {
		s.audit.LogEvent(ctx, subjectID, auditdomain.ActionPasswordChange, "session",
			fmt.Sprintf("sessions_revoked=%d", count))
	}
	return count, err
}

// RunPurgeLoop deletes stale rows every interval until ctx is cancelled.
// Revoked rows are kept for retention before removal so reuse incidents
// stay auditable for a while.
func (s *Service) RunPurgeLoop(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.repo.PurgeRevokedOlderThan(ctx, retention)
			if err != nil {
				log.Printf("session: purge failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("session: purged %d stale rows", n)
			}
		}
	}
}
