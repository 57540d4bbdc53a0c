package referrals

import (
	"github.com/ehr/intake/internal/validation"
	"github.com/ehr/intake/pkg/tristate"
)

func fromRow(r *referralRow, answers map[string]tristate.Value) *Referral {
	out := &Referral{
		WasReferred:          answers[QuestionWasReferred],
		PriorTreatment:       answers[QuestionPriorTreatment],
		PriorHospitalization: answers[QuestionPriorHospitalization],
	}
	if r == nil {
		return out
	}
	out.SourceType = deref(r.SourceType)
	out.ReferrerName = deref(r.ReferrerName)
	out.ReferrerOrganization = deref(r.ReferrerOrganization)
	out.ReferrerPhone = deref(r.ReferrerPhone)
	out.Reason = deref(r.Reason)
	if r.ReferralDate != nil {
		out.ReferralDate = r.ReferralDate.Format(validation.DateLayout)
	}
	out.PriorTreatmentDetails = deref(r.PriorTreatmentDetails)
	out.HospitalizationDetails = deref(r.HospitalizationDetails)
	return out
}

// toRow clears every detail whose selector is not Yes.
func toRow(in *Referral) (referralRow, error) {
	var row referralRow
	if in.WasReferred.IsYes() {
		row.SourceType = optional(in.SourceType)
		row.ReferrerName = optional(in.ReferrerName)
		row.ReferrerOrganization = optional(in.ReferrerOrganization)
		row.ReferrerPhone = optional(in.ReferrerPhone)
		row.Reason = optional(in.Reason)
		if in.ReferralDate != "" {
			t, err := validation.ParseDate(in.ReferralDate)
			if err != nil {
				return referralRow{}, err
			}
			row.ReferralDate = &t
		}
	}
	if in.PriorTreatment.IsYes() {
		row.PriorTreatmentDetails = optional(in.PriorTreatmentDetails)
	}
	if in.PriorHospitalization.IsYes() {
		row.HospitalizationDetails = optional(in.HospitalizationDetails)
	}
	return row, nil
}

func answersOf(in *Referral) map[string]tristate.Value {
	return map[string]tristate.Value{
		QuestionWasReferred:          in.WasReferred,
		QuestionPriorTreatment:       in.PriorTreatment,
		QuestionPriorHospitalization: in.PriorHospitalization,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
