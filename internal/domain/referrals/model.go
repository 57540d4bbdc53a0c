package referrals

import (
	"time"

	"github.com/ehr/intake/pkg/tristate"
)

const (
	QuestionWasReferred          = "was_referred"
	QuestionPriorTreatment       = "prior_treatment"
	QuestionPriorHospitalization = "prior_hospitalization"
)

// Referral covers how the patient came to the clinic and their treatment
// history. Detail fields are only kept behind a Yes answer.
type Referral struct {
	WasReferred          tristate.Value `json:"wasReferred,omitempty" validate:"tristate"`
	SourceType           string         `json:"sourceType,omitempty" validate:"omitempty,oneof=self family physician therapist court school hospital other"`
	ReferrerName         string         `json:"referrerName,omitempty" validate:"max=200"`
	ReferrerOrganization string         `json:"referrerOrganization,omitempty" validate:"max=200"`
	ReferrerPhone        string         `json:"referrerPhone,omitempty" validate:"omitempty,phone"`
	Reason               string         `json:"reason,omitempty" validate:"max=2000"`
	ReferralDate         string         `json:"referralDate,omitempty" validate:"omitempty,isodate,notfuture"`

	PriorTreatment        tristate.Value `json:"priorTreatment,omitempty" validate:"tristate"`
	PriorTreatmentDetails string         `json:"priorTreatmentDetails,omitempty" validate:"required_if=PriorTreatment Yes,max=4000"`

	PriorHospitalization   tristate.Value `json:"priorHospitalization,omitempty" validate:"tristate"`
	HospitalizationDetails string         `json:"hospitalizationDetails,omitempty" validate:"required_if=PriorHospitalization Yes,max=4000"`
}

type referralRow struct {
	SourceType             *string    `db:"source_type"`
	ReferrerName           *string    `db:"referrer_name"`
	ReferrerOrganization   *string    `db:"referrer_organization"`
	ReferrerPhone          *string    `db:"referrer_phone"`
	Reason                 *string    `db:"reason"`
	ReferralDate           *time.Time `db:"referral_date"`
	PriorTreatmentDetails  *string    `db:"prior_treatment_details"`
	HospitalizationDetails *string    `db:"hospitalization_details"`
}
