package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"viatransfer/auth-service/internal/auth"
	"viatransfer/auth-service/internal/clientinfo"
	sessionservice "viatransfer/auth-service/internal/session/service"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPairResponse struct {
	AccessToken          string    `json:"accessToken"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
	RefreshToken         string    `json:"refreshToken"`
	SubjectID            string    `json:"subjectId"`
}

type logoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleRefresh exchanges a refresh token for a new pair.
// POST /v1/auth/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pair, err := s.auth.Rotate(r.Context(), req.RefreshToken, clientinfo.FromRequest(r))
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:          pair.AccessToken,
		AccessTokenExpiresAt: pair.AccessExpiresAt,
		RefreshToken:         pair.RefreshToken,
		SubjectID:            pair.SubjectID,
	})
}

// handleLogout revokes the session behind the presented refresh token.
// Always 204: the client must be free to discard its local credentials
// regardless of server-side state.
// POST /v1/auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	_ = s.sessions.Logout(r.Context(), req.RefreshToken)
	w.WriteHeader(http.StatusNoContent)
}

// handleLogoutAll revokes every session of the authenticated subject.
// POST /v1/auth/logout-all
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := GetSubjectID(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	count, err := s.sessions.LogoutAll(r.Context(), subjectID)
	if err != nil {
		// Partial completion: report the count actually revoked so the
		// client can surface it and retry.
		log.Printf("server: logout-all partially applied for %s: %v", subjectID, err)
		writeJSON(w, http.StatusServiceUnavailable, logoutAllResponse{Revoked: count})
		return
	}
	writeJSON(w, http.StatusOK, logoutAllResponse{Revoked: count})
}

// handleListSessions lists the caller's active sessions.
// GET /v1/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := GetSubjectID(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	sessions, err := s.sessions.ListSessions(r.Context(), subjectID)
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleRevokeSession revokes one of the caller's sessions by id.
// DELETE /v1/sessions/{id}
func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := GetSubjectID(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	sessionID := mux.Vars(r)["id"]
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "session id required")
		return
	}
	if err := s.sessions.RevokeSession(r.Context(), subjectID, sessionID); err != nil {
		if errors.Is(err, sessionservice.ErrSessionNotFound) {
			writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSONError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealthz reports liveness, including a DB ping when a pool is wired.
// GET /healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeAuthError maps rotation errors to the client-facing taxonomy.
// Token-shaped problems collapse to one 401; storage trouble is a 503 so
// the client knows the token is not burned and retry is safe.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		writeJSONError(w, http.StatusBadRequest, "refresh token required")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnknownSubject):
		writeJSONError(w, http.StatusUnauthorized, "invalid or expired refresh token")
	case errors.Is(err, auth.ErrStorageUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry")
	case errors.Is(err, auth.ErrServerMisconfigured):
		writeJSONError(w, http.StatusInternalServerError, "server misconfigured")
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: write response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
