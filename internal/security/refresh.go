package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

// Opaque refresh tokens concatenate the 16-byte session id with a 32-byte
// random secret and encode the result as unpadded base64url. The id half
// gives the store an O(1) lookup; the secret half is bcrypt-hashed before
// persistence and never stored in the clear.
const (
	RefreshSecretSize   = 32
	refreshTokenRawSize = 16 + RefreshSecretSize
)

// ErrMalformedRefreshToken is returned when a presented token does not
// decode to the expected shape. Callers collapse it into their generic
// invalid-token error before it reaches a client.
var ErrMalformedRefreshToken = errors.New("malformed refresh token")

// NewRefreshSecret generates a 256-bit random refresh secret.
func NewRefreshSecret() ([]byte, error) {
	secret := make([]byte, RefreshSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// EncodeRefreshToken packs the session id and secret into the transport
// form handed to the client. sessionID must be a canonical UUID string.
func EncodeRefreshToken(sessionID string, secret []byte) (string, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return "", err
	}
	if len(secret) != RefreshSecretSize {
		return "", ErrMalformedRefreshToken
	}
	raw := make([]byte, 0, refreshTokenRawSize)
	raw = append(raw, id[:]...)
	raw = append(raw, secret...)
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeRefreshToken splits a presented token back into session id and
// secret. It validates shape only; the secret is verified against the
// stored hash by the caller.
func DecodeRefreshToken(token string) (sessionID string, secret []byte, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", nil, ErrMalformedRefreshToken
	}
	if len(raw) != refreshTokenRawSize {
		return "", nil, ErrMalformedRefreshToken
	}
	id, err := uuid.FromBytes(raw[:16])
	if err != nil {
		return "", nil, ErrMalformedRefreshToken
	}
	secret = make([]byte, RefreshSecretSize)
	copy(secret, raw[16:])
	return id.String(), secret, nil
}
