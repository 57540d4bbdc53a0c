package intake

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Session is one intake run, mapped from intake_session_map. PatientID is
// nil until demographics have been saved.
type Session struct {
	SessionID      uuid.UUID  `json:"sessionId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	PatientID      *uuid.UUID `json:"patientId,omitempty"`
	CurrentStep    string     `json:"currentStep"`
	Status         Status     `json:"status"`
	CreatedBy      string     `json:"createdBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// SaveResult is what every step save returns.
type SaveResult struct {
	SessionID uuid.UUID `json:"sessionId"`
}

// ExistsResult and DeleteResult are the session probe responses.
type ExistsResult struct {
	Exists bool `json:"exists"`
}

type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

type sessionRow struct {
	SessionID      uuid.UUID  `db:"session_id"`
	OrganizationID uuid.UUID  `db:"organization_id"`
	PatientID      *uuid.UUID `db:"patient_id"`
	CurrentStep    string     `db:"current_step"`
	Status         string     `db:"status"`
	CreatedBy      *string    `db:"created_by"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	CompletedAt    *time.Time `db:"completed_at"`
}

func (r *sessionRow) toSession() *Session {
	s := &Session{
		SessionID:      r.SessionID,
		OrganizationID: r.OrganizationID,
		PatientID:      r.PatientID,
		CurrentStep:    r.CurrentStep,
		Status:         Status(r.Status),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		CompletedAt:    r.CompletedAt,
	}
	if r.CreatedBy != nil {
		s.CreatedBy = *r.CreatedBy
	}
	return s
}
