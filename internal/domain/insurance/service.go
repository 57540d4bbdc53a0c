package insurance

import (
	"context"
	"strconv"

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
	v.RegisterStructValidation(authorizationRules, Authorization{})
	return &Service{repo: repo, validator: v, tracker: tracker}
}

func (s *Service) Snapshot(ctx context.Context, sessionID, organizationID uuid.UUID) (*Snapshot, error) {
	return s.repo.Snapshot(ctx, sessionID, organizationID)
}

// UpsertEligibility saves the step's screening answers and advances the
// session. Coverages are saved row by row and do not move the pointer.
func (s *Service) UpsertEligibility(ctx context.Context, sessionID, organizationID uuid.UUID, in *Eligibility) (*intake.SaveResult, error) {
	if err := s.ValidateEligibility(in); err != nil {
		return nil, err
	}
	res, err := s.repo.UpsertEligibility(ctx, sessionID, organizationID, in)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.StepSaved(ctx, sessionID, organizationID, intake.StepInsurance); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) SaveCoverage(ctx context.Context, sessionID, organizationID uuid.UUID, in *Coverage) (*CoverageResult, error) {
	if err := s.ValidateCoverage(in); err != nil {
		return nil, err
	}
	return s.repo.SaveCoverage(ctx, sessionID, organizationID, in)
}

// ValidateCoverage clears the mental health details unless that coverage
// is Yes, then checks the coverage. Callers saving several coverages use
// it to report every failure before writing any.
func (s *Service) ValidateCoverage(in *Coverage) error {
	if !in.MentalHealthCoverage.IsYes() {
		in.MHCopay, in.MHDeductible, in.MHVisitLimit = nil, nil, nil
		in.MHPriorAuthRequired = false
	}
	return s.validator.Struct(in)
}

func (s *Service) ValidateEligibility(in *Eligibility) error {
	return s.validator.Struct(in)
}

func (s *Service) DeleteCoverage(ctx context.Context, sessionID, organizationID, coverageID uuid.UUID) (bool, error) {
	return s.repo.DeleteCoverage(ctx, sessionID, organizationID, coverageID)
}

// authorizationRules rejects more visits used than authorized.
func authorizationRules(sl validator.StructLevel) {
	a := sl.Current().Interface().(Authorization)
	if a.VisitsAuthorized != nil && a.VisitsUsed > *a.VisitsAuthorized {
		sl.ReportError(a.VisitsUsed, "visitsUsed", "VisitsUsed", "lte", strconv.Itoa(*a.VisitsAuthorized))
	}
}
