package providers

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/intake/pkg/tristate"
)

// Provider types as stored in patient_providers.provider_type.
const (
	TypePCP          = "pcp"
	TypePsychiatrist = "psychiatrist"
	TypeEvaluator    = "evaluator"
)

const (
	QuestionHasPCP           = "has_pcp"
	QuestionHasBeenEvaluated = "has_been_evaluated"
)

// MedicalProviders is the providers step. Each provider sub-form is kept
// only while its selector is Yes.
type MedicalProviders struct {
	HasPCP tristate.Value `json:"hasPCP,omitempty" validate:"tristate"`
	PCP    *Provider      `json:"pcp,omitempty" validate:"required_if=HasPCP Yes"`

	HasBeenEvaluated tristate.Value `json:"hasBeenEvaluated,omitempty" validate:"tristate"`
	Psychiatrist     *Provider      `json:"psychiatrist,omitempty"`
	Evaluator        *Provider      `json:"evaluator,omitempty"`
}

type Provider struct {
	Name           string `json:"name" validate:"required,max=200"`
	PracticeName   string `json:"practiceName,omitempty" validate:"max=200"`
	Phone          string `json:"phone,omitempty" validate:"omitempty,phone"`
	Fax            string `json:"fax,omitempty" validate:"omitempty,phone"`
	Email          string `json:"email,omitempty" validate:"omitempty,email"`
	Address        string `json:"address,omitempty" validate:"max=500"`
	LastVisitDate  string `json:"lastVisitDate,omitempty" validate:"omitempty,isodate,notfuture"`
	EvaluationDate string `json:"evaluationDate,omitempty" validate:"omitempty,isodate,notfuture"`
	Notes          string `json:"notes,omitempty" validate:"max=2000"`
}

// providerRow is one row of v_patient_providers_by_session; the write
// columns are the same minus the scoping keys.
type providerRow struct {
	SessionID      uuid.UUID  `db:"session_id"`
	OrganizationID uuid.UUID  `db:"organization_id"`
	PatientID      uuid.UUID  `db:"patient_id"`
	ProviderType   string     `db:"provider_type"`
	Name           string     `db:"name"`
	PracticeName   *string    `db:"practice_name"`
	Phone          *string    `db:"phone"`
	Fax            *string    `db:"fax"`
	Email          *string    `db:"email"`
	Address        *string    `db:"address"`
	LastVisitDate  *time.Time `db:"last_visit_date"`
	EvaluationDate *time.Time `db:"evaluation_date"`
	Notes          *string    `db:"notes"`
}
