package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"viatransfer/auth-service/internal/audit/domain"
	auditrepo "viatransfer/auth-service/internal/audit/repository"
	"viatransfer/auth-service/internal/telemetry/producer"
)

// emitTimeout bounds a single async publish so slow brokers never hold a
// goroutine for long.
const emitTimeout = 5 * time.Second

// Logger records a security event. Best-effort: failures are logged and do
// not affect the caller; the error a client sees never depends on whether
// the audit write succeeded.
type Logger interface {
	LogEvent(ctx context.Context, subjectID, action, resource, metadata string)
}

// IPExtractor returns the client IP carried in the request context.
type IPExtractor func(context.Context) string

// DBLogger implements Logger by persisting to the security_events table and,
// when a producer is configured, publishing the event for the monitoring
// worker.
type DBLogger struct {
	repo        auditrepo.Repository
	producer    producer.Producer
	ipExtractor IPExtractor
}

// NewLogger returns a Logger that persists to repo and publishes via p.
// p and ipExtractor may be nil; a nil ipExtractor records IP as "unknown".
func NewLogger(repo auditrepo.Repository, p producer.Producer, ipExtractor IPExtractor) *DBLogger {
	return &DBLogger{repo: repo, producer: p, ipExtractor: ipExtractor}
}

// LogEvent writes one security event. Best-effort: errors are logged and
// not returned. The Kafka publish happens on a detached goroutine with its
// own timeout so request cancellation does not abort an in-flight emit.
func (l *DBLogger) LogEvent(ctx context.Context, subjectID, action, resource, metadata string) {
	if l == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	event := &domain.Event{
		ID:        uuid.New().String(),
		SubjectID: subjectID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, event); err != nil {
			log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
		}
	}
	if l.producer != nil {
		go func() {
			emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
			defer cancel()
			if err := l.producer.Emit(emitCtx, event); err != nil {
				log.Printf("audit: async emit failed: %v", err)
			}
		}()
	}
}
