package insurance

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/intake"
)

// Repository persists the insurance step. Every call is scoped by session
// and organization; a session without a patient is NOT_FOUND.
type Repository interface {
	Snapshot(ctx context.Context, sessionID, organizationID uuid.UUID) (*Snapshot, error)
	UpsertEligibility(ctx context.Context, sessionID, organizationID uuid.UUID, in *Eligibility) (*intake.SaveResult, error)
	// SaveCoverage inserts or updates one coverage through the primary swap
	// function and replaces its authorizations.
	SaveCoverage(ctx context.Context, sessionID, organizationID uuid.UUID, in *Coverage) (*CoverageResult, error)
	DeleteCoverage(ctx context.Context, sessionID, organizationID, coverageID uuid.UUID) (bool, error)
}
