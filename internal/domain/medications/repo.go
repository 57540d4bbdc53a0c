package medications

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/intake"
)

type Repository interface {
	FindBySession(ctx context.Context, sessionID, organizationID uuid.UUID) (*MedicationProfile, error)
	Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *MedicationProfile) (*intake.SaveResult, error)
}
