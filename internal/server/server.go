// Package server wires the session subsystem to its HTTP surface. The
// transport stays thin: extract inputs, call a service, map its error to a
// status code.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"viatransfer/auth-service/internal/auth"
	"viatransfer/auth-service/internal/security"
	sessionservice "viatransfer/auth-service/internal/session/service"
)

// Server holds the handler dependencies.
type Server struct {
	auth     *auth.Service
	sessions *sessionservice.Service
	tokens   *security.TokenProvider
	db       *sqlx.DB
	limiter  *ipRateLimiter
}

// Options tunes transport behavior.
type Options struct {
	// RateLimitRPS / RateLimitBurst bound per-IP calls to the refresh and
	// logout endpoints.
	RateLimitRPS   float64
	RateLimitBurst int
	// AllowedOrigins enables CORS when non-empty.
	AllowedOrigins []string
}

// New returns the service's HTTP handler. db may be nil (healthz then skips
// the ping); tokens must be non-nil for the protected routes to work.
func New(authSvc *auth.Service, sessionSvc *sessionservice.Service, tokens *security.TokenProvider, db *sqlx.DB, opts Options) http.Handler {
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 5
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 10
	}
	s := &Server{
		auth:     authSvc,
		sessions: sessionSvc,
		tokens:   tokens,
		db:       db,
		limiter:  newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()

	// Refresh and logout take the refresh secret in the body, no Bearer
	// token, and sit behind the per-IP limiter.
	api.Handle("/auth/refresh",
		rateLimit(s.limiter, http.HandlerFunc(s.handleRefresh))).Methods(http.MethodPost)
	api.Handle("/auth/logout",
		rateLimit(s.limiter, http.HandlerFunc(s.handleLogout))).Methods(http.MethodPost)

	// Session administration requires a valid access token.
	api.Handle("/auth/logout-all",
		requireAuth(tokens, http.HandlerFunc(s.handleLogoutAll))).Methods(http.MethodPost)
	api.Handle("/sessions",
		requireAuth(tokens, http.HandlerFunc(s.handleListSessions))).Methods(http.MethodGet)
	api.Handle("/sessions/{id}",
		requireAuth(tokens, http.HandlerFunc(s.handleRevokeSession))).Methods(http.MethodDelete)

	var handler http.Handler = r
	if len(opts.AllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler(handler)
	}
	return otelhttp.NewHandler(handler, "auth-service")
}
