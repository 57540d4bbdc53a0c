package intake

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/intake/pkg/tristate"
)

type SessionRepository interface {
	Create(ctx context.Context, organizationID uuid.UUID, createdBy string) (*Session, error)
	Get(ctx context.Context, sessionID, organizationID uuid.UUID) (*Session, error)
	List(ctx context.Context, organizationID uuid.UUID, status Status, limit, offset int) ([]*Session, int, error)
	Exists(ctx context.Context, sessionID, organizationID uuid.UUID) (bool, error)
	Delete(ctx context.Context, sessionID, organizationID uuid.UUID) (bool, error)
	// Advance moves the step pointer forward to step (never backwards) and
	// marks the session completed when complete is set.
	Advance(ctx context.Context, sessionID, organizationID uuid.UUID, step string, complete bool) error
	PatientLookup
	PatientLinker
}

// PatientLookup resolves the patient behind an intake session. It returns
// NOT_FOUND when the session has no demographics yet.
type PatientLookup interface {
	PatientID(ctx context.Context, sessionID, organizationID uuid.UUID) (uuid.UUID, error)
}

// PatientLinker records the session to patient mapping, creating the
// session row when the new-patient flow starts with demographics.
type PatientLinker interface {
	LinkPatient(ctx context.Context, sessionID, organizationID, patientID uuid.UUID) error
}

// AnswerRepository persists tri-state selector answers per patient.
type AnswerRepository interface {
	Load(ctx context.Context, patientID, organizationID uuid.UUID, questions ...string) (map[string]tristate.Value, error)
	Save(ctx context.Context, patientID, organizationID uuid.UUID, answers map[string]tristate.Value) error
}
