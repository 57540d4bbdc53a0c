package referrals

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/platform/query"
)

type repoPG struct {
	client   *query.Client
	patients intake.PatientLookup
	answers  intake.AnswerRepository
}

func NewRepoPG(client *query.Client, patients intake.PatientLookup, answers intake.AnswerRepository) Repository {
	return &repoPG{client: client, patients: patients, answers: answers}
}

func (r *repoPG) FindBySession(ctx context.Context, sessionID, organizationID uuid.UUID) (*Referral, error) {
	const op = "referrals.find_by_session"
	patientID, err := r.patients.PatientID(ctx, sessionID, organizationID)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE patient_id = $1 AND organization_id = $2`,
		query.Columns[referralRow](), r.client.Table("patient_referrals"))
	row, err := query.MaybeSingle[referralRow](ctx, r.client.Conn(ctx), op, sql, patientID, organizationID)
	if err != nil {
		return nil, err
	}
	answers, err := r.answers.Load(ctx, patientID, organizationID,
		QuestionWasReferred, QuestionPriorTreatment, QuestionPriorHospitalization)
	if err != nil {
		return nil, err
	}
	return fromRow(row, answers), nil
}

func (r *repoPG) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *Referral) (*intake.SaveResult, error) {
	const op = "referrals.save"
	row, err := toRow(in)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeCheckViolation, err)
	}

	cols := query.ColumnList[referralRow]()
	sql := fmt.Sprintf(`INSERT INTO %s (patient_id, organization_id, %s) VALUES ($1, $2, %s)
		ON CONFLICT (patient_id, organization_id) DO UPDATE SET %s, updated_at = NOW()`,
		r.client.Table("patient_referrals"), query.Columns[referralRow](),
		query.PlaceholdersFrom(3, len(cols)), query.ExcludedSet(cols))

	err = r.client.InTx(ctx, func(ctx context.Context) error {
		patientID, err := r.patients.PatientID(ctx, sessionID, organizationID)
		if err != nil {
			return err
		}
		if _, err := query.Exec(ctx, r.client.Conn(ctx), op, sql, patientID, organizationID,
			row.SourceType, row.ReferrerName, row.ReferrerOrganization, row.ReferrerPhone,
			row.Reason, row.ReferralDate, row.PriorTreatmentDetails, row.HospitalizationDetails); err != nil {
			return err
		}
		return r.answers.Save(ctx, patientID, organizationID, answersOf(in))
	})
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return &intake.SaveResult{SessionID: sessionID}, nil
}
