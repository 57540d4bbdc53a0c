package clinical

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/intake"
)

type Repository interface {
	FindBySession(ctx context.Context, sessionID, organizationID uuid.UUID) (*Assessment, error)
	Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *Assessment) (*intake.SaveResult, error)
}
