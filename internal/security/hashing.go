package security

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies refresh-token secrets using bcrypt. Only the
// hash is ever persisted; callers must not log or store plaintext secrets.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default; tune it via BCRYPT_COST without touching callers.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a salted bcrypt hash of secret, suitable for storage.
func (h *Hasher) Hash(secret []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(secret, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compares secret against the stored hash in constant time. Returns
// nil on match. A malformed hash and a wrong secret produce the same
// externally observable outcome: a non-nil error.
func (h *Hasher) Verify(hash string, secret []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), secret)
}
