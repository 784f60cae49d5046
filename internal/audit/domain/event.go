package domain

import "time"

// Event actions recorded by this subsystem. reuse_detected is the one the
// security-monitoring pipeline alerts on.
const (
	ActionReuseDetected  = "reuse_detected"
	ActionAdminAction    = "admin_action"
	ActionLogoutAll      = "logout_all"
	ActionPasswordChange = "password_change_cascade"
)

// Event is a structured security event. Persisted to the security_events
// table and, when a broker is configured, published for external
// monitoring. JSON tags define the wire shape consumed by the worker.
type Event struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subjectId"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
