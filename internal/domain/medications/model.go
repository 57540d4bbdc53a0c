package medications

import (
	"time"

	"github.com/ehr/intake/pkg/tristate"
)

const (
	QuestionTakesMedications = "takes_medications"
	QuestionHasAllergies     = "has_allergies"
)

// MedicationProfile is the medications step: current medications,
// allergies and the preferred pharmacy.
type MedicationProfile struct {
	TakesMedications tristate.Value `json:"takesMedications,omitempty" validate:"tristate"`
	Medications      []Medication   `json:"medications" validate:"max=30,dive"`

	HasAllergies tristate.Value `json:"hasAllergies,omitempty" validate:"tristate"`
	Allergies    string         `json:"allergies,omitempty" validate:"required_if=HasAllergies Yes,max=2000"`

	PharmacyName  string `json:"pharmacyName,omitempty" validate:"max=200"`
	PharmacyPhone string `json:"pharmacyPhone,omitempty" validate:"omitempty,phone"`
}

type Medication struct {
	Name          string `json:"name" validate:"required,max=200"`
	Dosage        string `json:"dosage,omitempty" validate:"max=100"`
	Frequency     string `json:"frequency,omitempty" validate:"max=100"`
	Prescriber    string `json:"prescriber,omitempty" validate:"max=200"`
	StartDate     string `json:"startDate,omitempty" validate:"omitempty,isodate,notfuture"`
	IsPsychiatric bool   `json:"isPsychiatric"`
}

type profileRow struct {
	Allergies     *string `db:"allergies"`
	PharmacyName  *string `db:"pharmacy_name"`
	PharmacyPhone *string `db:"pharmacy_phone"`
}

type medicationRow struct {
	Position      int        `db:"position"`
	Name          string     `db:"name"`
	Dosage        *string    `db:"dosage"`
	Frequency     *string    `db:"frequency"`
	Prescriber    *string    `db:"prescriber"`
	StartDate     *time.Time `db:"start_date"`
	IsPsychiatric bool       `db:"is_psychiatric"`
}
