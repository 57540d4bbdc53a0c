package demographics

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
	v.RegisterStructValidation(demographicsRules, Demographics{})
	return &Service{repo: repo, validator: v, tracker: tracker}
}

func (s *Service) Load(ctx context.Context, sessionID, organizationID uuid.UUID) (*Demographics, error) {
	return s.repo.FindBySession(ctx, sessionID, organizationID)
}

// Save validates in, normalises phone numbers to E.164 and persists the
// step. Sub-forms hidden behind a selector are discarded first.
func (s *Service) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *Demographics) (*intake.SaveResult, error) {
	clearHidden(in)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	normalizePhones(in)

	res, err := s.repo.Save(ctx, sessionID, organizationID, in)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.StepSaved(ctx, sessionID, organizationID, intake.StepDemographics); err != nil {
		return nil, err
	}
	return res, nil
}

// demographicsRules allows at most one primary phone.
func demographicsRules(sl validator.StructLevel) {
	d := sl.Current().Interface().(Demographics)

	primaries := 0
	for _, p := range d.Phones {
		if p.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		sl.ReportError(d.Phones, "phones", "Phones", "single_primary", "")
	}
}

func clearHidden(d *Demographics) {
	if d.SameAsMailingAddress {
		d.MailingAddress = nil
	}
	if !d.HasLegalGuardian.IsYes() {
		d.LegalGuardian = nil
	}
	if !d.HasPowerOfAttorney.IsYes() {
		d.PowerOfAttorney = nil
	}
}

func normalizePhones(d *Demographics) {
	norm := func(p *string) {
		if *p == "" {
			return
		}
		if e164, err := validation.NormalizePhone(*p); err == nil {
			*p = e164
		}
	}
	for i := range d.Phones {
		norm(&d.Phones[i].Number)
	}
	if d.EmergencyContact != nil {
		norm(&d.EmergencyContact.Phone)
	}
	for _, g := range []*Guardian{d.LegalGuardian, d.PowerOfAttorney} {
		if g != nil {
			norm(&g.Phone)
		}
	}
}
