package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"viatransfer/auth-service/internal/clientinfo"
	"viatransfer/auth-service/internal/security"
)

const bearerPrefix = "bearer "

// requireAuth validates the Bearer access token and sets the caller's
// identity in the request context. Requests without a valid token get 401.
func requireAuth(tokens *security.TokenProvider, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokens == nil {
			writeJSONError(w, http.StatusInternalServerError, "server misconfigured")
			return
		}
		token := extractBearer(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization")
			return
		}
		sessionID, subjectID, role, err := tokens.ValidateAccess(token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization")
			return
		}
		ctx := WithIdentity(r.Context(), subjectID, sessionID, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearer returns the Bearer token from the Authorization header, or
// "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// ipRateLimiter keeps a token bucket per client IP. Refresh and logout are
// natural credential-stuffing targets, so they sit behind this limiter.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiterEntry
	rps      rate.Limit
	burst    int
}

type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*ipLimiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	if len(l.limiters) > 10000 {
		l.evictStaleLocked()
	}
	return entry.limiter.Allow()
}

// evictStaleLocked drops buckets idle for over an hour. Caller holds mu.
func (l *ipRateLimiter) evictStaleLocked() {
	cutoff := time.Now().Add(-time.Hour)
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

// rateLimit rejects with 429 when the client IP exceeds its bucket.
func rateLimit(l *ipRateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientinfo.FromRequest(r).ClientAddress()
		if !l.allow(ip) {
			writeJSONError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
