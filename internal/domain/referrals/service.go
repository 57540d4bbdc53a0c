package referrals

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
	v.RegisterStructValidation(referralRules, Referral{})
	return &Service{repo: repo, validator: v, tracker: tracker}
}

func (s *Service) Load(ctx context.Context, sessionID, organizationID uuid.UUID) (*Referral, error) {
	return s.repo.FindBySession(ctx, sessionID, organizationID)
}

func (s *Service) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *Referral) (*intake.SaveResult, error) {
	clearHidden(in)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	res, err := s.repo.Save(ctx, sessionID, organizationID, in)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.StepSaved(ctx, sessionID, organizationID, intake.StepReferrals); err != nil {
		return nil, err
	}
	return res, nil
}

func clearHidden(in *Referral) {
	if !in.WasReferred.IsYes() {
		in.SourceType, in.ReferrerName, in.ReferrerOrganization = "", "", ""
		in.ReferrerPhone, in.Reason, in.ReferralDate = "", "", ""
	}
	if !in.PriorTreatment.IsYes() {
		in.PriorTreatmentDetails = ""
	}
	if !in.PriorHospitalization.IsYes() {
		in.HospitalizationDetails = ""
	}
	if in.ReferrerPhone != "" {
		if e164, err := validation.NormalizePhone(in.ReferrerPhone); err == nil {
			in.ReferrerPhone = e164
		}
	}
}

// referralRules requires a source once the patient was referred, and a
// referrer name unless the patient referred themselves.
func referralRules(sl validator.StructLevel) {
	r := sl.Current().Interface().(Referral)
	if !r.WasReferred.IsYes() {
		return
	}
	if r.SourceType == "" {
		sl.ReportError(r.SourceType, "sourceType", "SourceType", "required", "")
	}
	if r.SourceType != "self" && r.ReferrerName == "" {
		sl.ReportError(r.ReferrerName, "referrerName", "ReferrerName", "required", "")
	}
}
