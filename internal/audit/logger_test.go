package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"viatransfer/auth-service/internal/audit/domain"
)

// mockEventRepo implements the audit repository interface for tests.
type mockEventRepo struct {
	mu        sync.Mutex
	entries   []*domain.Event
	createErr error
}

func (m *mockEventRepo) Create(ctx context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockEventRepo) ListBySubject(ctx context.Context, subjectID string, limit, offset int32) ([]*domain.Event, error) {
	return nil, nil
}

type mockProducer struct {
	mu     sync.Mutex
	events []*domain.Event
	done   chan struct{}
}

func (m *mockProducer) Emit(ctx context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	return nil
}

func (m *mockProducer) Close() error { return nil }

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockEventRepo{}
	ipExtractor := func(ctx context.Context) string {
		return "203.0.113.9"
	}
	logger := NewLogger(repo, nil, ipExtractor)
	ctx := context.Background()

	logger.LogEvent(ctx, "subj-1", domain.ActionReuseDetected, "session", "sessions_revoked=3")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.SubjectID != "subj-1" {
		t.Errorf("subject id = %q, want %q", entry.SubjectID, "subj-1")
	}
	if entry.Action != domain.ActionReuseDetected {
		t.Errorf("action = %q, want %q", entry.Action, domain.ActionReuseDetected)
	}
	if entry.Resource != "session" {
		t.Errorf("resource = %q, want %q", entry.Resource, "session")
	}
	if entry.IP != "203.0.113.9" {
		t.Errorf("ip = %q, want %q", entry.IP, "203.0.113.9")
	}
	if entry.Metadata != "sessions_revoked=3" {
		t.Errorf("metadata = %q, want %q", entry.Metadata, "sessions_revoked=3")
	}
	if entry.ID == "" {
		t.Error("entry ID should be set")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("entry CreatedAt should be set")
	}
}

func TestLogger_LogEvent_NilIPExtractor(t *testing.T) {
	repo := &mockEventRepo{}
	logger := NewLogger(repo, nil, nil)

	logger.LogEvent(context.Background(), "subj-1", domain.ActionLogoutAll, "session", "")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want %q", repo.entries[0].IP, "unknown")
	}
}

func TestLogger_LogEvent_RepoFailureDoesNotPanic(t *testing.T) {
	repo := &mockEventRepo{createErr: errors.New("db down")}
	logger := NewLogger(repo, nil, nil)

	// Best-effort: a failing store must not propagate to the caller.
	logger.LogEvent(context.Background(), "subj-1", domain.ActionLogoutAll, "session", "")
}

func TestLogger_LogEvent_EmitsToProducer(t *testing.T) {
	repo := &mockEventRepo{}
	prod := &mockProducer{done: make(chan struct{})}
	done := prod.done
	logger := NewLogger(repo, prod, nil)

	logger.LogEvent(context.Background(), "subj-1", domain.ActionReuseDetected, "session", "")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer never received the event")
	}
	prod.mu.Lock()
	defer prod.mu.Unlock()
	if len(prod.events) != 1 {
		t.Fatalf("emitted events = %d, want 1", len(prod.events))
	}
	if prod.events[0].Action != domain.ActionReuseDetected {
		t.Errorf("emitted action = %q, want reuse_detected", prod.events[0].Action)
	}
}
