package domain

import "time"

// SubjectStatus gates whether a subject may hold live sessions.
type SubjectStatus string

const (
	SubjectStatusActive   SubjectStatus = "active"
	SubjectStatusDisabled SubjectStatus = "disabled"
)

// Subject is the principal that owns sessions. Password storage and the
// rest of the user profile live in the user-store service; only the fields
// rotation needs are modelled here.
type Subject struct {
	ID        string
	Email     string
	Role      string
	Status    SubjectStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
