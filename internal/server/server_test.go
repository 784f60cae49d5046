package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"viatransfer/auth-service/internal/auth"
	"viatransfer/auth-service/internal/clientinfo"
	"viatransfer/auth-service/internal/security"
	"viatransfer/auth-service/internal/session/domain"
	sessionservice "viatransfer/auth-service/internal/session/service"
	userdomain "viatransfer/auth-service/internal/user/domain"
)

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	getErr   error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*domain.Session)}
}

func (r *fakeSessionStore) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionStore) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *fakeSessionStore) Rotate(ctx context.Context, oldID string, successor *domain.Session) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.sessions[oldID]
	if !ok || old.Revoked {
		return false, nil
	}
	now := time.Now().UTC()
	old.Revoked = true
	old.RevokedReason = domain.ReasonRotated
	old.RevokedAt = &now
	cp := *successor
	r.sessions[successor.ID] = &cp
	return true, nil
}

func (r *fakeSessionStore) Revoke(ctx context.Context, id string, reason domain.RevokeReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Revoked {
		return nil
	}
	now := time.Now().UTC()
	s.Revoked = true
	s.RevokedReason = reason
	s.RevokedAt = &now
	return nil
}

func (r *fakeSessionStore) RevokeAllForSubject(ctx context.Context, subjectID string, reason domain.RevokeReason) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, s := range r.sessions {
		if s.SubjectID == subjectID && !s.Revoked {
			s.Revoked = true
			s.RevokedReason = reason
			s.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionStore) ListActive(ctx context.Context, subjectID string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.SubjectID == subjectID && s.IsLive(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeSessionStore) CountActive(ctx context.Context, subjectID string) (int64, error) {
	list, _ := r.ListActive(ctx, subjectID)
	return int64(len(list)), nil
}

func (r *fakeSessionStore) PurgeRevokedOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

type fakeSubjectStore struct {
	subjects map[string]*userdomain.Subject
}

func (r *fakeSubjectStore) GetByID(ctx context.Context, id string) (*userdomain.Subject, error) {
	s, ok := r.subjects[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

type testEnv struct {
	handler  http.Handler
	authSvc  *auth.Service
	sessions *fakeSessionStore
	tokens   *security.TokenProvider
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("token provider: %v", err)
	}
	sessions := newFakeSessionStore()
	subjects := &fakeSubjectStore{subjects: map[string]*userdomain.Subject{
		"subj-1": {ID: "subj-1", Email: "traveler@example.com", Role: "traveler", Status: userdomain.SubjectStatusActive},
	}}
	authSvc := auth.NewService(sessions, subjects, security.NewHasher(4), tokens, nil, time.Hour)
	sessionSvc := sessionservice.NewService(sessions, nil)
	handler := New(authSvc, sessionSvc, tokens, nil, opts)
	return &testEnv{handler: handler, authSvc: authSvc, sessions: sessions, tokens: tokens}
}

func (e *testEnv) issue(t *testing.T) *auth.TokenPair {
	t.Helper()
	pair, err := e.authSvc.Issue(context.Background(), "subj-1", clientinfo.Metadata{
		UserAgent:  "curl/8.4.0",
		RemoteAddr: "203.0.113.7:1234",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return pair
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRefreshEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})
	pair := env.issue(t)

	w := postJSON(t, env.handler, "/v1/auth/refresh", refreshRequest{RefreshToken: pair.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	var resp tokenPairResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.RefreshToken == "" || resp.RefreshToken == pair.RefreshToken {
		t.Error("response did not carry a fresh refresh token")
	}
	if resp.SubjectID != "subj-1" {
		t.Errorf("subjectId = %q, want subj-1", resp.SubjectID)
	}
	if _, _, _, err := env.tokens.ValidateAccess(resp.AccessToken); err != nil {
		t.Errorf("returned access token does not validate: %v", err)
	}

	// Replaying the consumed token is a 401, same as any bad token.
	w = postJSON(t, env.handler, "/v1/auth/refresh", refreshRequest{RefreshToken: pair.RefreshToken})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("replay status = %d, want 401", w.Code)
	}
}

func TestRefreshEndpointErrorMapping(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := postJSON(t, env.handler, "/v1/auth/refresh", refreshRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty token status = %d, want 400", w.Code)
	}

	w = postJSON(t, env.handler, "/v1/auth/refresh", refreshRequest{RefreshToken: "garbage"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", bytes.NewReader([]byte("{not json")))
	w2 := httptest.NewRecorder()
	env.handler.ServeHTTP(w2, req)
	if w2.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w2.Code)
	}
}

func TestRefreshEndpointStorageUnavailable(t *testing.T) {
	env := newTestEnv(t, Options{})
	pair := env.issue(t)

	env.sessions.mu.Lock()
	env.sessions.getErr = errors.New("connection refused")
	env.sessions.mu.Unlock()

	w := postJSON(t, env.handler, "/v1/auth/refresh", refreshRequest{RefreshToken: pair.RefreshToken})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 (token not burned, retry safe)", w.Code)
	}
}

func TestLogoutEndpointAlways204(t *testing.T) {
	env := newTestEnv(t, Options{})
	pair := env.issue(t)

	for _, token := range []string{pair.RefreshToken, pair.RefreshToken, "garbage", ""} {
		w := postJSON(t, env.handler, "/v1/auth/logout", refreshRequest{RefreshToken: token})
		if w.Code != http.StatusNoContent {
			t.Errorf("logout(%q) status = %d, want 204", token, w.Code)
		}
	}
}

func TestSessionsEndpointRequiresBearer(t *testing.T) {
	env := newTestEnv(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no bearer status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad bearer status = %d, want 401", w.Code)
	}
}

func TestSessionsEndpointListsOwnSessions(t *testing.T) {
	env := newTestEnv(t, Options{})
	pair := env.issue(t)
	env.issue(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	var list []sessionservice.SessionInfo
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("sessions = %d, want 2", len(list))
	}
	if bytes.Contains(w.Body.Bytes(), []byte("secretHash")) || bytes.Contains(w.Body.Bytes(), []byte("$2a$")) {
		t.Error("response leaks secret material")
	}
}

func TestRevokeSessionEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})
	pair := env.issue(t)
	other := env.issue(t)

	otherID, _, err := security.DecodeRefreshToken(other.RefreshToken)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+otherID, nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/sessions/does-not-exist", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", w.Code)
	}
}

func TestLogoutAllEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})
	pair := env.issue(t)
	env.issue(t)
	env.issue(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout-all", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	var resp logoutAllResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Revoked != 3 {
		t.Errorf("revoked = %d, want 3", resp.Revoked)
	}

	// The access token outlives the refresh sessions, but rotation is dead.
	postW := postJSON(t, env.handler, "/v1/auth/refresh", refreshRequest{RefreshToken: pair.RefreshToken})
	if postW.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout-all status = %d, want 401", postW.Code)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRefreshEndpointRateLimited(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitRPS: 1, RateLimitBurst: 2})

	limited := false
	for i := 0; i < 5; i++ {
		w := postJSON(t, env.handler, "/v1/auth/refresh", refreshRequest{RefreshToken: "garbage"})
		if w.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("refresh endpoint was never rate limited")
	}
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"BEARER abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		if got := extractBearer(r); got != tc.want {
			t.Errorf("extractBearer(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
