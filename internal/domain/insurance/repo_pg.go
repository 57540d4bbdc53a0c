package insurance

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/platform/hipaa"
	"github.com/ehr/intake/internal/platform/query"
)

type repoPG struct {
	client   *query.Client
	patients intake.PatientLookup
	cipher   hipaa.FieldCipher
}

// NewRepoPG returns the Postgres repository. Member IDs are sealed with
// cipher when it is non-nil.
func NewRepoPG(client *query.Client, patients intake.PatientLookup, cipher hipaa.FieldCipher) Repository {
	return &repoPG{client: client, patients: patients, cipher: cipher}
}

func (r *repoPG) Snapshot(ctx context.Context, sessionID, organizationID uuid.UUID) (*Snapshot, error) {
	const op = "insurance.snapshot"
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE session_id = $1 AND organization_id = $2`,
		query.Columns[snapshotRow](), r.client.View("v_patient_insurance_eligibility_snapshot"))
	row, err := query.Single[snapshotRow](ctx, r.client.Conn(ctx), op, sql, sessionID, organizationID)
	if err != nil {
		return nil, err
	}

	coverages := row.Coverages
	if coverages == nil {
		coverages = []Coverage{}
	}
	for i := range coverages {
		if err := hipaa.OpenPtr(r.cipher, &coverages[i].MemberID); err != nil {
			return nil, apperr.Wrap(op, apperr.CodeUnknown, err)
		}
		if coverages[i].Authorizations == nil {
			coverages[i].Authorizations = []Authorization{}
		}
	}
	return &Snapshot{
		SessionID:   row.SessionID,
		PatientID:   row.PatientID,
		Eligibility: eligibilityFromRow(row),
		Coverages:   coverages,
	}, nil
}

// UpsertEligibility stamps verified_at whenever the verifier changes and
// clears it when the verifier is removed.
func (r *repoPG) UpsertEligibility(ctx context.Context, sessionID, organizationID uuid.UUID, in *Eligibility) (*intake.SaveResult, error) {
	const op = "insurance.upsert_eligibility"
	patientID, err := r.patients.PatientID(ctx, sessionID, organizationID)
	if err != nil {
		return nil, err
	}

	table := r.client.Table("insurance_eligibility")
	sql := fmt.Sprintf(`INSERT INTO %s AS e (patient_id, organization_id, eligibility_status, financial_class,
			medicaid_eligible, medicare_eligible, sliding_fee_eligible, household_size, annual_income,
			verified_by, verified_at, verification_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::text, CASE WHEN $10::text IS NULL THEN NULL ELSE NOW() END, $11)
		ON CONFLICT (patient_id, organization_id) DO UPDATE SET
			eligibility_status   = EXCLUDED.eligibility_status,
			financial_class      = EXCLUDED.financial_class,
			medicaid_eligible    = EXCLUDED.medicaid_eligible,
			medicare_eligible    = EXCLUDED.medicare_eligible,
			sliding_fee_eligible = EXCLUDED.sliding_fee_eligible,
			household_size       = EXCLUDED.household_size,
			annual_income        = EXCLUDED.annual_income,
			verified_at          = CASE
				WHEN EXCLUDED.verified_by IS NULL THEN NULL
				WHEN e.verified_by IS DISTINCT FROM EXCLUDED.verified_by THEN NOW()
				ELSE e.verified_at
			END,
			verified_by          = EXCLUDED.verified_by,
			verification_notes   = EXCLUDED.verification_notes,
			updated_at           = NOW()`, table)

	_, err = query.Exec(ctx, r.client.Conn(ctx), op, sql,
		patientID, organizationID, optional(in.EligibilityStatus), optional(in.FinancialClass),
		in.MedicaidEligible.Ptr(), in.MedicareEligible.Ptr(), in.SlidingFeeEligible.Ptr(),
		in.HouseholdSize, in.AnnualIncome, optional(in.VerifiedBy), optional(in.VerificationNotes))
	if err != nil {
		return nil, err
	}
	return &intake.SaveResult{SessionID: sessionID}, nil
}

func (r *repoPG) SaveCoverage(ctx context.Context, sessionID, organizationID uuid.UUID, in *Coverage) (*CoverageResult, error) {
	const op = "insurance.save_coverage"

	auths := make([]authorizationRow, 0, len(in.Authorizations))
	for i, a := range in.Authorizations {
		row, err := authorizationToRow(i, a)
		if err != nil {
			return nil, apperr.Wrap(op, apperr.CodeCheckViolation, err)
		}
		auths = append(auths, row)
	}
	memberID := in.MemberID
	if err := hipaa.SealPtr(r.cipher, &memberID); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeUnknown, err)
	}

	var coverageID uuid.UUID
	err := r.client.InTx(ctx, func(ctx context.Context) error {
		patientID, err := r.patients.PatientID(ctx, sessionID, organizationID)
		if err != nil {
			return err
		}
		conn := r.client.Conn(ctx)

		rpc := fmt.Sprintf(`SELECT %s($1, $2::jsonb)`, r.client.Func("upsert_insurance_with_primary_swap"))
		coverageID, err = query.Scalar[uuid.UUID](ctx, conn, op, rpc,
			patientID, coverageRecord(organizationID.String(), in, memberID))
		if err != nil {
			return err
		}
		return r.replaceAuthorizations(ctx, coverageID, organizationID, auths)
	})
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return &CoverageResult{SessionID: sessionID, CoverageID: coverageID}, nil
}

// replaceAuthorizations upserts by list position and drops positions past
// the end of the list.
func (r *repoPG) replaceAuthorizations(ctx context.Context, coverageID, organizationID uuid.UUID, auths []authorizationRow) error {
	const op = "insurance.save_authorizations"
	conn := r.client.Conn(ctx)
	table := r.client.Table("insurance_authorizations")

	upsert := fmt.Sprintf(`INSERT INTO %s (insurance_id, organization_id, %s)
		VALUES ($1, $2, %s)
		ON CONFLICT (insurance_id, position) DO UPDATE SET %s`,
		table, query.Columns[authorizationRow](), query.PlaceholdersFrom(3, len(query.ColumnList[authorizationRow]())),
		query.ExcludedSet(query.ColumnList[authorizationRow](), "position"))
	for _, a := range auths {
		if _, err := query.Exec(ctx, conn, op, upsert, coverageID, organizationID,
			a.Position, a.AuthNumber, a.ServiceType, a.StartDate, a.EndDate, a.VisitsAuthorized, a.VisitsUsed); err != nil {
			return err
		}
	}

	trim := fmt.Sprintf(`DELETE FROM %s WHERE insurance_id = $1 AND organization_id = $2 AND position >= $3`, table)
	_, err := query.Exec(ctx, conn, op, trim, coverageID, organizationID, len(auths))
	return err
}

func (r *repoPG) DeleteCoverage(ctx context.Context, sessionID, organizationID, coverageID uuid.UUID) (bool, error) {
	const op = "insurance.delete_coverage"
	patientID, err := r.patients.PatientID(ctx, sessionID, organizationID)
	if apperr.Is(err, apperr.CodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	sql := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND patient_id = $2 AND organization_id = $3`,
		r.client.Table("patient_insurance"))
	n, err := query.Exec(ctx, r.client.Conn(ctx), op, sql, coverageID, patientID, organizationID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
