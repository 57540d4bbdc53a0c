package insurance

import (
	"time"

	"github.com/ehr/intake/internal/validation"
	"github.com/ehr/intake/pkg/tristate"
)

func eligibilityFromRow(r *snapshotRow) Eligibility {
	return Eligibility{
		EligibilityStatus:  deref(r.EligibilityStatus),
		FinancialClass:     deref(r.FinancialClass),
		MedicaidEligible:   tristate.FromPtr(r.MedicaidEligible),
		MedicareEligible:   tristate.FromPtr(r.MedicareEligible),
		SlidingFeeEligible: tristate.FromPtr(r.SlidingFeeEligible),
		HouseholdSize:      r.HouseholdSize,
		AnnualIncome:       r.AnnualIncome,
		VerifiedBy:         deref(r.VerifiedBy),
		VerifiedAt:         r.VerifiedAt,
		VerificationNotes:  deref(r.VerificationNotes),
	}
}

// coverageRecord renders c as the snake_case JSON object
// upsert_insurance_with_primary_swap expects. Absent optional values are
// sent as JSON null.
func coverageRecord(organizationID string, c *Coverage, memberID string) map[string]any {
	rec := map[string]any{
		"organization_id":          organizationID,
		"carrier_name":             c.CarrierName,
		"plan_name":                optional(c.PlanName),
		"plan_type":                optional(c.PlanType),
		"member_id":                memberID,
		"group_number":             optional(c.GroupNumber),
		"subscriber_name":          optional(c.SubscriberName),
		"subscriber_relationship":  optional(c.SubscriberRelationship),
		"subscriber_date_of_birth": optional(c.SubscriberDateOfBirth),
		"effective_date":           optional(c.EffectiveDate),
		"termination_date":         optional(c.TerminationDate),
		"is_primary":               c.IsPrimary,
		"is_verified":              c.IsVerified,
		"mental_health_coverage":   c.MentalHealthCoverage.Ptr(),
		"mh_copay":                 c.MHCopay,
		"mh_deductible":            c.MHDeductible,
		"mh_visit_limit":           c.MHVisitLimit,
		"mh_prior_auth_required":   c.MHPriorAuthRequired,
	}
	if c.ID != nil {
		rec["id"] = c.ID.String()
	}
	return rec
}

func authorizationToRow(position int, a Authorization) (authorizationRow, error) {
	start, err := parseDate(a.StartDate)
	if err != nil {
		return authorizationRow{}, err
	}
	end, err := parseDate(a.EndDate)
	if err != nil {
		return authorizationRow{}, err
	}
	return authorizationRow{
		Position:         position,
		AuthNumber:       a.AuthNumber,
		ServiceType:      optional(a.ServiceType),
		StartDate:        start,
		EndDate:          end,
		VisitsAuthorized: a.VisitsAuthorized,
		VisitsUsed:       a.VisitsUsed,
	}, nil
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
