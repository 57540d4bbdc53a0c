package medications

import (
	"sort"
	"time"

	"github.com/ehr/intake/internal/validation"
	"github.com/ehr/intake/pkg/tristate"
)

func fromRows(profile *profileRow, meds []medicationRow, answers map[string]tristate.Value) *MedicationProfile {
	out := &MedicationProfile{
		TakesMedications: answers[QuestionTakesMedications],
		HasAllergies:     answers[QuestionHasAllergies],
		Medications:      []Medication{},
	}
	if profile != nil {
		out.Allergies = deref(profile.Allergies)
		out.PharmacyName = deref(profile.PharmacyName)
		out.PharmacyPhone = deref(profile.PharmacyPhone)
	}
	sort.Slice(meds, func(i, j int) bool { return meds[i].Position < meds[j].Position })
	for _, m := range meds {
		out.Medications = append(out.Medications, Medication{
			Name:          m.Name,
			Dosage:        deref(m.Dosage),
			Frequency:     deref(m.Frequency),
			Prescriber:    deref(m.Prescriber),
			StartDate:     formatDate(m.StartDate),
			IsPsychiatric: m.IsPsychiatric,
		})
	}
	if !out.TakesMedications.Answered() && len(out.Medications) > 0 {
		out.TakesMedications = tristate.Yes
	}
	return out
}

// toRows maps the DTO; medications and allergies are only kept behind a
// Yes answer.
func toRows(in *MedicationProfile) (profileRow, []medicationRow, error) {
	profile := profileRow{
		PharmacyName:  optional(in.PharmacyName),
		PharmacyPhone: optional(in.PharmacyPhone),
	}
	if in.HasAllergies.IsYes() {
		profile.Allergies = optional(in.Allergies)
	}

	var meds []medicationRow
	if in.TakesMedications.IsYes() {
		meds = make([]medicationRow, 0, len(in.Medications))
		for i, m := range in.Medications {
			start, err := parseDate(m.StartDate)
			if err != nil {
				return profileRow{}, nil, err
			}
			meds = append(meds, medicationRow{
				Position:      i,
				Name:          m.Name,
				Dosage:        optional(m.Dosage),
				Frequency:     optional(m.Frequency),
				Prescriber:    optional(m.Prescriber),
				StartDate:     start,
				IsPsychiatric: m.IsPsychiatric,
			})
		}
	}
	return profile, meds, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := validation.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(validation.DateLayout)
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
