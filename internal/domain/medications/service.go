package medications

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
	v.RegisterStructValidation(profileRules, MedicationProfile{})
	return &Service{repo: repo, validator: v, tracker: tracker}
}

func (s *Service) Load(ctx context.Context, sessionID, organizationID uuid.UUID) (*MedicationProfile, error) {
	return s.repo.FindBySession(ctx, sessionID, organizationID)
}

func (s *Service) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *MedicationProfile) (*intake.SaveResult, error) {
	if !in.TakesMedications.IsYes() {
		in.Medications = nil
	}
	if !in.HasAllergies.IsYes() {
		in.Allergies = ""
	}
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	if in.PharmacyPhone != "" {
		if e164, err := validation.NormalizePhone(in.PharmacyPhone); err == nil {
			in.PharmacyPhone = e164
		}
	}

	res, err := s.repo.Save(ctx, sessionID, organizationID, in)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.StepSaved(ctx, sessionID, organizationID, intake.StepMedications); err != nil {
		return nil, err
	}
	return res, nil
}

// profileRules requires at least one medication behind a Yes answer.
func profileRules(sl validator.StructLevel) {
	p := sl.Current().Interface().(MedicationProfile)
	if p.TakesMedications.IsYes() && len(p.Medications) == 0 {
		sl.ReportError(p.Medications, "medications", "Medications", "required", "")
	}
}
