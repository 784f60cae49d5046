package domain

import "time"

// RevokeReason records why a session was revoked. Once set it never changes.
type RevokeReason string

const (
	ReasonLogout         RevokeReason = "logout"
	ReasonRotated        RevokeReason = "rotated"
	ReasonReuseDetected  RevokeReason = "reuse_detected"
	ReasonAdminAction    RevokeReason = "admin_action"
	ReasonPasswordChange RevokeReason = "password_change"
	ReasonExpired        RevokeReason = "expired"
)

// DeviceInfo is a coarse client fingerprint captured at issuance. Advisory
// only; never an authorization input.
type DeviceInfo struct {
	UserAgent string
	Platform  string
	Browser   string
	OS        string
}

// Session is the persisted record backing one refresh-token lineage hop.
// SecretHash is set exactly once at creation; rotation creates a successor
// row instead of overwriting the secret in place.
type Session struct {
	ID            string
	SubjectID     string
	SecretHash    string
	Revoked       bool
	RevokedReason RevokeReason // empty unless Revoked
	RevokedAt     *time.Time   // nil unless Revoked
	ExpiresAt     time.Time
	DeviceInfo    DeviceInfo
	IssuingIP     string
	LastUsedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsLive reports whether the session may still authorize a rotation at the
// given instant. Expiry is checked here, in the same predicate as
// revocation, so callers never depend on a garbage-collection pass having
// run.
func (s *Session) IsLive(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
