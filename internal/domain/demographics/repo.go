package demographics

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/intake"
)

// Repository persists the demographics step. Both keys scope every call.
type Repository interface {
	FindBySession(ctx context.Context, sessionID, organizationID uuid.UUID) (*Demographics, error)
	Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *Demographics) (*intake.SaveResult, error)
}
