package insurance

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/intake/pkg/tristate"
)

// Coverage is one insurance plan on file for the patient. ID is nil until
// the coverage has been saved.
type Coverage struct {
	ID                     *uuid.UUID `json:"id,omitempty"`
	CarrierName            string     `json:"carrierName" validate:"required,max=200"`
	PlanName               string     `json:"planName,omitempty" validate:"max=200"`
	PlanType               string     `json:"planType,omitempty" validate:"omitempty,oneof=hmo ppo epo pos hdhp medicaid medicare tricare other"`
	MemberID               string     `json:"memberId" validate:"required,max=50"`
	GroupNumber            string     `json:"groupNumber,omitempty" validate:"max=50"`
	SubscriberName         string     `json:"subscriberName,omitempty" validate:"max=200"`
	SubscriberRelationship string     `json:"subscriberRelationship,omitempty" validate:"omitempty,oneof=self spouse child other"`
	SubscriberDateOfBirth  string     `json:"subscriberDateOfBirth,omitempty" validate:"omitempty,isodate,notfuture"`
	EffectiveDate          string     `json:"effectiveDate,omitempty" validate:"omitempty,isodate"`
	TerminationDate        string     `json:"terminationDate,omitempty" validate:"omitempty,isodate,dateafter=EffectiveDate"`
	IsPrimary              bool       `json:"isPrimary"`
	IsVerified             bool       `json:"isVerified"`

	MentalHealthCoverage tristate.Value `json:"mentalHealthCoverage,omitempty" validate:"tristate"`
	MHCopay              *float64       `json:"mhCopay,omitempty" validate:"omitempty,gte=0"`
	MHDeductible         *float64       `json:"mhDeductible,omitempty" validate:"omitempty,gte=0"`
	MHVisitLimit         *int           `json:"mhVisitLimit,omitempty" validate:"omitempty,gte=0"`
	MHPriorAuthRequired  bool           `json:"mhPriorAuthRequired"`

	Authorizations []Authorization `json:"authorizations" validate:"max=20,dive"`
}

// Authorization is a payer pre-authorization recorded against a coverage.
type Authorization struct {
	ID               *uuid.UUID `json:"id,omitempty"`
	AuthNumber       string     `json:"authNumber" validate:"required,max=50"`
	ServiceType      string     `json:"serviceType,omitempty" validate:"max=100"`
	StartDate        string     `json:"startDate,omitempty" validate:"omitempty,isodate"`
	EndDate          string     `json:"endDate,omitempty" validate:"omitempty,isodate,dateafter=StartDate"`
	VisitsAuthorized *int       `json:"visitsAuthorized,omitempty" validate:"omitempty,gte=0"`
	VisitsUsed       int        `json:"visitsUsed" validate:"gte=0"`
}

// Eligibility is the financial screening recorded once per patient.
type Eligibility struct {
	EligibilityStatus  string         `json:"eligibilityStatus,omitempty" validate:"omitempty,oneof=pending eligible ineligible self_pay"`
	FinancialClass     string         `json:"financialClass,omitempty" validate:"max=50"`
	MedicaidEligible   tristate.Value `json:"medicaidEligible,omitempty" validate:"tristate"`
	MedicareEligible   tristate.Value `json:"medicareEligible,omitempty" validate:"tristate"`
	SlidingFeeEligible tristate.Value `json:"slidingFeeEligible,omitempty" validate:"tristate"`
	HouseholdSize      *int           `json:"householdSize,omitempty" validate:"omitempty,gte=1,lte=20"`
	AnnualIncome       *float64       `json:"annualIncome,omitempty" validate:"omitempty,gte=0"`
	VerifiedBy         string         `json:"verifiedBy,omitempty" validate:"max=200"`
	VerifiedAt         *time.Time     `json:"verifiedAt,omitempty"`
	VerificationNotes  string         `json:"verificationNotes,omitempty" validate:"max=2000"`
}

// Snapshot is the insurance step as read back: eligibility plus every
// coverage, primary first.
type Snapshot struct {
	SessionID   uuid.UUID   `json:"sessionId"`
	PatientID   uuid.UUID   `json:"patientId"`
	Eligibility Eligibility `json:"eligibility"`
	Coverages   []Coverage  `json:"coverages"`
}

// CoverageResult is returned by a coverage save.
type CoverageResult struct {
	SessionID  uuid.UUID `json:"sessionId"`
	CoverageID uuid.UUID `json:"coverageId"`
}

// snapshotRow is one row of v_patient_insurance_eligibility_snapshot. The
// view renders coverages in the DTO's JSON shape.
type snapshotRow struct {
	SessionID          uuid.UUID  `db:"session_id"`
	OrganizationID     uuid.UUID  `db:"organization_id"`
	PatientID          uuid.UUID  `db:"patient_id"`
	EligibilityStatus  *string    `db:"eligibility_status"`
	FinancialClass     *string    `db:"financial_class"`
	MedicaidEligible   *string    `db:"medicaid_eligible"`
	MedicareEligible   *string    `db:"medicare_eligible"`
	SlidingFeeEligible *string    `db:"sliding_fee_eligible"`
	HouseholdSize      *int       `db:"household_size"`
	AnnualIncome       *float64   `db:"annual_income"`
	VerifiedBy         *string    `db:"verified_by"`
	VerifiedAt         *time.Time `db:"verified_at"`
	VerificationNotes  *string    `db:"verification_notes"`
	Coverages          []Coverage `db:"coverages"`
}

type authorizationRow struct {
	Position         int        `db:"position"`
	AuthNumber       string     `db:"auth_number"`
	ServiceType      *string    `db:"service_type"`
	StartDate        *time.Time `db:"start_date"`
	EndDate          *time.Time `db:"end_date"`
	VisitsAuthorized *int       `db:"visits_authorized"`
	VisitsUsed       int        `db:"visits_used"`
}
