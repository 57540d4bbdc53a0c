package clinical

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/validation"
)

type Service struct {
	repo      Repository
	validator *validation.Validator
	tracker   *intake.Tracker
}

func NewService(repo Repository, v *validation.Validator, tracker *intake.Tracker) *Service {
	return &Service{repo: repo, validator: v, tracker: tracker}
}

func (s *Service) Load(ctx context.Context, sessionID, organizationID uuid.UUID) (*Assessment, error) {
	return s.repo.FindBySession(ctx, sessionID, organizationID)
}

// Save stores the assessment and, being the last step, completes the
// session.
func (s *Service) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *Assessment) (*intake.SaveResult, error) {
	in.UpdatedAt = nil
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	res, err := s.repo.Save(ctx, sessionID, organizationID, in)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.StepSaved(ctx, sessionID, organizationID, intake.StepClinical); err != nil {
		return nil, err
	}
	return res, nil
}
