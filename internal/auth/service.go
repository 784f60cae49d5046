// Package auth implements refresh-token rotation: issuing the initial
// session on login, exchanging a live refresh secret for a new token pair,
// and detecting reuse of consumed secrets.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"viatransfer/auth-service/internal/audit"
	auditdomain "viatransfer/auth-service/internal/audit/domain"
	"viatransfer/auth-service/internal/clientinfo"
	"viatransfer/auth-service/internal/security"
	"viatransfer/auth-service/internal/session/domain"
	userdomain "viatransfer/auth-service/internal/user/domain"
)

// Sentinel errors; the HTTP layer maps them to status codes. Not-found,
// hash-mismatch, expiry, and reuse all collapse into ErrInvalidToken so a
// caller cannot distinguish a still-valid-but-wrong secret from a consumed
// one.
var (
	ErrMissingToken        = errors.New("missing refresh token")
	ErrInvalidToken        = errors.New("invalid or expired refresh token")
	ErrUnknownSubject      = errors.New("unknown or disabled subject")
	ErrServerMisconfigured = errors.New("token signing is not configured")
	ErrStorageUnavailable  = errors.New("session store unavailable")
)

// SessionRepo is the slice of the session repository the rotation path needs.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Rotate(ctx context.Context, oldID string, successor *domain.Session) (bool, error)
	Revoke(ctx context.Context, id string, reason domain.RevokeReason) error
	RevokeAllForSubject(ctx context.Context, subjectID string, reason domain.RevokeReason) (int64, error)
}

// SubjectRepo resolves current subject data. Queried at rotation time, not
// cached, so a role downgrade takes effect on the next rotation.
type SubjectRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.Subject, error)
}

// TokenPair is the result of Issue and Rotate. RefreshToken is plaintext,
// delivered to the client exactly once; only its hash is persisted.
type TokenPair struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
	SubjectID       string
}

// Service is the rotation state machine. Stateless per call; the session
// store is the only shared mutable resource, and no session state is cached
// across requests.
type Service struct {
	sessions   SessionRepo
	subjects   SubjectRepo
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	audit      audit.Logger
	refreshTTL time.Duration
	now        func() time.Time
}

// NewService returns a rotation service with the given dependencies.
// auditLogger may be nil.
func NewService(sessions SessionRepo, subjects SubjectRepo, hasher *security.Hasher, tokens *security.TokenProvider, auditLogger audit.Logger, refreshTTL time.Duration) *Service {
	return &Service{
		sessions:   sessions,
		subjects:   subjects,
		hasher:     hasher,
		tokens:     tokens,
		audit:      auditLogger,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates the initial session for an already-authenticated subject
// and returns its token pair. Called by the login flow after the user store
// has verified credentials.
func (s *Service) Issue(ctx context.Context, subjectID string, meta clientinfo.Metadata) (*TokenPair, error) {
	if s.tokens == nil {
		return nil, ErrServerMisconfigured
	}
	subj, err := s.subjects.GetByID(ctx, subjectID)
	if err != nil {
		return nil, storageErr(err)
	}
	if subj == nil || subj.Status != userdomain.SubjectStatusActive {
		return nil, ErrUnknownSubject
	}
	sess, secret, err := s.newSession(subjectID, meta)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, storageErr(err)
	}
	return s.tokenPair(sess, secret, subj)
}

// Rotate exchanges a presented refresh token for a fresh (access, refresh)
// pair, revoking the consumed session with reason "rotated". A token whose
// secret verifies against an already-revoked session is a reuse signal:
// every live session of that subject is revoked and the caller gets the
// same generic error as for any bad token. An unverified secret never
// changes state, whatever row its id half points at.
func (s *Service) Rotate(ctx context.Context, refreshToken string, meta clientinfo.Metadata) (*TokenPair, error) {
	if s.tokens == nil {
		return nil, ErrServerMisconfigured
	}
	if refreshToken == "" {
		return nil, ErrMissingToken
	}
	sessionID, secret, err := security.DecodeRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, storageErr(err)
	}
	if sess == nil {
		return nil, ErrInvalidToken
	}
	// Proof of possession comes before everything else. Session ids leak
	// (they ride in every access token), so a presented token must verify
	// against the stored hash before it can trip reuse detection or write
	// any state. A mismatch is a plain bad token, nothing more.
	if err := s.hasher.Verify(sess.SecretHash, secret); err != nil {
		return nil, ErrInvalidToken
	}
	if sess.Revoked {
		s.flagReuse(ctx, sess)
		return nil, ErrInvalidToken
	}
	if !sess.IsLive(s.now()) {
		// Lazy expiry: record the terminal state but do not treat it as
		// compromise. The sweep would reclaim the row eventually anyway.
		_ = s.sessions.Revoke(ctx, sess.ID, domain.ReasonExpired)
		return nil, ErrInvalidToken
	}

	subj, err := s.subjects.GetByID(ctx, sess.SubjectID)
	if err != nil {
		return nil, storageErr(err)
	}
	if subj == nil || subj.Status != userdomain.SubjectStatusActive {
		_ = s.sessions.Revoke(ctx, sess.ID, domain.ReasonAdminAction)
		return nil, ErrInvalidToken
	}

	successor, newSecret, err := s.newSession(sess.SubjectID, meta)
	if err != nil {
		return nil, err
	}
	won, err := s.sessions.Rotate(ctx, sess.ID, successor)
	if err != nil {
		// Rotation outcome unknown: the token may still be valid, so the
		// caller must see a retryable server error, never ErrInvalidToken.
		return nil, storageErr(err)
	}
	if !won {
		// A concurrent request consumed this session first; from this
		// caller's perspective the secret was replayed.
		s.flagReuse(ctx, sess)
		return nil, ErrInvalidToken
	}

	return s.tokenPair(successor, newSecret, subj)
}

// newSession builds an unrevoked session row plus its plaintext secret.
// ExpiresAt is an absolute refreshTTL from now, not extended from any prior
// session.
func (s *Service) newSession(subjectID string, meta clientinfo.Metadata) (*domain.Session, []byte, error) {
	secret, err := security.NewRefreshSecret()
	if err != nil {
		return nil, nil, err
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	sess := &domain.Session{
		ID:         uuid.New().String(),
		SubjectID:  subjectID,
		SecretHash: hash,
		ExpiresAt:  now.Add(s.refreshTTL),
		DeviceInfo: meta.DeviceInfo(),
		IssuingIP:  meta.ClientAddress(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return sess, secret, nil
}

func (s *Service) tokenPair(sess *domain.Session, secret []byte, subj *userdomain.Subject) (*TokenPair, error) {
	refreshToken, err := security.EncodeRefreshToken(sess.ID, secret)
	if err != nil {
		return nil, err
	}
	accessToken, expiresAt, err := s.tokens.IssueAccess(sess.ID, subj.ID, subj.Email, subj.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerMisconfigured, err)
	}
	return &TokenPair{
		AccessToken:     accessToken,
		AccessExpiresAt: expiresAt,
		RefreshToken:    refreshToken,
		SubjectID:       subj.ID,
	}, nil
}

// flagReuse handles presentation of an already-consumed secret: revoke
// everything the subject has, and record a security event the operator can
// alert on. The caller still returns the generic invalid-token error.
func (s *Service) flagReuse(ctx context.Context, sess *domain.Session) {
	revoked, err := s.sessions.RevokeAllForSubject(ctx, sess.SubjectID, domain.ReasonReuseDetected)
	metadata := fmt.Sprintf("session_id=%s sessions_revoked=%d", sess.ID, revoked)
	if err != nil {
		// Partial application must be visible to the operator.
		metadata += fmt.Sprintf(" error=%q", err.Error())
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, sess.SubjectID, auditdomain.ActionReuseDetected, "session", metadata)
	}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
