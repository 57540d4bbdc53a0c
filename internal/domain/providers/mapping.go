package providers

import (
	"time"

	"github.com/ehr/intake/internal/validation"
	"github.com/ehr/intake/pkg/tristate"
)

// fromRows assembles the DTO. A stored answer wins; without one the
// selector is inferred from the rows present.
func fromRows(rows []providerRow, answers map[string]tristate.Value) *MedicalProviders {
	out := &MedicalProviders{
		HasPCP:           answers[QuestionHasPCP],
		HasBeenEvaluated: answers[QuestionHasBeenEvaluated],
	}
	for _, r := range rows {
		p := providerFromRow(r)
		switch r.ProviderType {
		case TypePCP:
			out.PCP = &p
		case TypePsychiatrist:
			out.Psychiatrist = &p
		case TypeEvaluator:
			out.Evaluator = &p
		}
	}
	if !out.HasPCP.Answered() && out.PCP != nil {
		out.HasPCP = tristate.Yes
	}
	if !out.HasBeenEvaluated.Answered() && (out.Psychiatrist != nil || out.Evaluator != nil) {
		out.HasBeenEvaluated = tristate.Yes
	}
	return out
}

// wanted returns the provider per type that should exist after a save; a
// nil entry means the row is deleted.
func wanted(in *MedicalProviders) map[string]*Provider {
	out := map[string]*Provider{TypePCP: nil, TypePsychiatrist: nil, TypeEvaluator: nil}
	if in.HasPCP.IsYes() {
		out[TypePCP] = in.PCP
	}
	if in.HasBeenEvaluated.IsYes() {
		out[TypePsychiatrist] = in.Psychiatrist
		out[TypeEvaluator] = in.Evaluator
	}
	return out
}

func providerToRow(kind string, p *Provider) (providerRow, error) {
	lastVisit, err := parseDate(p.LastVisitDate)
	if err != nil {
		return providerRow{}, err
	}
	evaluated, err := parseDate(p.EvaluationDate)
	if err != nil {
		return providerRow{}, err
	}
	return providerRow{
		ProviderType:   kind,
		Name:           p.Name,
		PracticeName:   optional(p.PracticeName),
		Phone:          optional(p.Phone),
		Fax:            optional(p.Fax),
		Email:          optional(p.Email),
		Address:        optional(p.Address),
		LastVisitDate:  lastVisit,
		EvaluationDate: evaluated,
		Notes:          optional(p.Notes),
	}, nil
}

func providerFromRow(r providerRow) Provider {
	return Provider{
		Name:           r.Name,
		PracticeName:   deref(r.PracticeName),
		Phone:          deref(r.Phone),
		Fax:            deref(r.Fax),
		Email:          deref(r.Email),
		Address:        deref(r.Address),
		LastVisitDate:  formatDate(r.LastVisitDate),
		EvaluationDate: formatDate(r.EvaluationDate),
		Notes:          deref(r.Notes),
	}
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
