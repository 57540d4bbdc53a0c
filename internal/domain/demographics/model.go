package demographics

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/intake/pkg/tristate"
)

// Tri-state questions persisted in patient_intake_answers.
const (
	QuestionLegalGuardian   = "has_legal_guardian"
	QuestionPowerOfAttorney = "has_power_of_attorney"
)

var questions = []string{QuestionLegalGuardian, QuestionPowerOfAttorney}

// Demographics is the first intake step: identity, contact, address and
// legal representation.
type Demographics struct {
	FirstName       string `json:"firstName" validate:"required,max=100"`
	MiddleName      string `json:"middleName,omitempty" validate:"max=100"`
	LastName        string `json:"lastName" validate:"required,max=100"`
	PreferredName   string `json:"preferredName,omitempty" validate:"max=100"`
	DateOfBirth     string `json:"dateOfBirth" validate:"required,isodate,notfuture"`
	Gender          string `json:"gender,omitempty" validate:"max=50"`
	GenderIdentity  string `json:"genderIdentity,omitempty" validate:"max=50"`
	Race            string `json:"race,omitempty" validate:"max=100"`
	Ethnicity       string `json:"ethnicity,omitempty" validate:"max=100"`
	MaritalStatus   string `json:"maritalStatus,omitempty" validate:"omitempty,oneof=single married divorced separated widowed partnered other"`
	VeteranStatus   string `json:"veteranStatus,omitempty" validate:"omitempty,oneof=veteran active_duty reserve none"`
	PrimaryLanguage string `json:"primaryLanguage,omitempty" validate:"max=50"`

	Email  string  `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phones []Phone `json:"phones" validate:"max=5,dive"`

	PrimaryAddress       Address  `json:"primaryAddress" validate:"required"`
	MailingAddress       *Address `json:"mailingAddress,omitempty"`
	SameAsMailingAddress bool     `json:"sameAsMailingAddress"`

	EmergencyContact *EmergencyContact `json:"emergencyContact,omitempty"`

	HasLegalGuardian   tristate.Value `json:"hasLegalGuardian,omitempty" validate:"tristate"`
	LegalGuardian      *Guardian      `json:"legalGuardian,omitempty" validate:"required_if=HasLegalGuardian Yes"`
	HasPowerOfAttorney tristate.Value `json:"hasPowerOfAttorney,omitempty" validate:"tristate"`
	PowerOfAttorney    *Guardian      `json:"powerOfAttorney,omitempty" validate:"required_if=HasPowerOfAttorney Yes"`
}

type Phone struct {
	Number    string `json:"number" validate:"required,phone"`
	Type      string `json:"type,omitempty" validate:"omitempty,oneof=mobile home work"`
	IsPrimary bool   `json:"isPrimary"`
}

type Address struct {
	Street1 string `json:"street1" validate:"required,max=200"`
	Street2 string `json:"street2,omitempty" validate:"max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,usstate"`
	ZipCode string `json:"zipCode" validate:"required,zip"`
	County  string `json:"county,omitempty" validate:"max=100"`
	Country string `json:"country,omitempty" validate:"omitempty,len=2"`
}

type EmergencyContact struct {
	Name         string `json:"name" validate:"required,max=200"`
	Relationship string `json:"relationship,omitempty" validate:"max=100"`
	Phone        string `json:"phone" validate:"required,phone"`
}

// Guardian describes a legal guardian or a holder of power of attorney.
type Guardian struct {
	FullName     string `json:"fullName" validate:"required,max=200"`
	Relationship string `json:"relationship,omitempty" validate:"max=100"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,phone"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
}

// Address types, contact kinds and guardian types as stored.
const (
	addressPrimary = "primary"
	addressMailing = "mailing"

	contactPhone     = "phone"
	contactEmergency = "emergency"

	guardianLegal = "legal_guardian"
	guardianPOA   = "power_of_attorney"
)

type patientRow struct {
	ID                   uuid.UUID  `db:"id"`
	OrganizationID       uuid.UUID  `db:"organization_id"`
	SessionID            uuid.UUID  `db:"session_id"`
	FirstName            string     `db:"first_name"`
	MiddleName           *string    `db:"middle_name"`
	LastName             string     `db:"last_name"`
	PreferredName        *string    `db:"preferred_name"`
	DateOfBirth          *time.Time `db:"date_of_birth"`
	Gender               *string    `db:"gender"`
	GenderIdentity       *string    `db:"gender_identity"`
	Race                 *string    `db:"race"`
	Ethnicity            *string    `db:"ethnicity"`
	MaritalStatus        *string    `db:"marital_status"`
	VeteranStatus        *string    `db:"veteran_status"`
	PrimaryLanguage      *string    `db:"primary_language"`
	Email                *string    `db:"email"`
	SameAsMailingAddress bool       `db:"same_as_mailing_address"`
}

type addressRow struct {
	AddressType string  `db:"address_type"`
	Street1     string  `db:"street1"`
	Street2     *string `db:"street2"`
	City        string  `db:"city"`
	State       string  `db:"state"`
	ZipCode     string  `db:"zip_code"`
	County      *string `db:"county"`
	Country     string  `db:"country"`
}

type contactRow struct {
	ContactKind  string  `db:"contact_kind"`
	Position     int     `db:"position"`
	Name         *string `db:"name"`
	Relationship *string `db:"relationship"`
	Phone        string  `db:"phone"`
	PhoneType    *string `db:"phone_type"`
	IsPrimary    bool    `db:"is_primary"`
}

type guardianRow struct {
	GuardianType string  `db:"guardian_type"`
	FullName     string  `db:"full_name"`
	Relationship *string `db:"relationship"`
	Phone        *string `db:"phone"`
	Email        *string `db:"email"`
}
