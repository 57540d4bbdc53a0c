package providers

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/intake"
)

type Repository interface {
	FindBySession(ctx context.Context, sessionID, organizationID uuid.UUID) (*MedicalProviders, error)
	Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *MedicalProviders) (*intake.SaveResult, error)
}
