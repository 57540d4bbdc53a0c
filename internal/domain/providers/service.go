package providers

import (
	"context"

	"github.com/go-playground/validator/v10"
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
	v.RegisterStructValidation(providerRules, MedicalProviders{})
	return &Service{repo: repo, validator: v, tracker: tracker}
}

func (s *Service) Load(ctx context.Context, sessionID, organizationID uuid.UUID) (*MedicalProviders, error) {
	return s.repo.FindBySession(ctx, sessionID, organizationID)
}

func (s *Service) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *MedicalProviders) (*intake.SaveResult, error) {
	if !in.HasPCP.IsYes() {
		in.PCP = nil
	}
	if !in.HasBeenEvaluated.IsYes() {
		in.Psychiatrist, in.Evaluator = nil, nil
	}
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	res, err := s.repo.Save(ctx, sessionID, organizationID, in)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.StepSaved(ctx, sessionID, organizationID, intake.StepProviders); err != nil {
		return nil, err
	}
	return res, nil
}

// providerRules requires a psychiatrist or an evaluator once the patient
// has been evaluated.
func providerRules(sl validator.StructLevel) {
	p := sl.Current().Interface().(MedicalProviders)
	if p.HasBeenEvaluated.IsYes() && p.Psychiatrist == nil && p.Evaluator == nil {
		sl.ReportError(p.Psychiatrist, "psychiatrist", "Psychiatrist", "required", "")
	}
}
