package clinical

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
}

func NewRepoPG(client *query.Client, patients intake.PatientLookup) Repository {
	return &repoPG{client: client, patients: patients}
}

func (r *repoPG) FindBySession(ctx context.Context, sessionID, organizationID uuid.UUID) (*Assessment, error) {
	const op = "clinical.find_by_session"
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE session_id = $1 AND organization_id = $2`,
		query.Columns[assessmentRow](), r.client.Table("diagnoses_clinical"))
	row, err := query.Single[assessmentRow](ctx, r.client.Conn(ctx), op, sql, sessionID, organizationID)
	if err != nil {
		return nil, err
	}
	return row.toAssessment(), nil
}

// Save upserts the blobs for the session. Missing blobs are stored as an
// empty list or object. The session must already have a patient.
func (r *repoPG) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *Assessment) (*intake.SaveResult, error) {
	const op = "clinical.save"
	if _, err := r.patients.PatientID(ctx, sessionID, organizationID); err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`INSERT INTO %s (session_id, organization_id, diagnoses, psychiatric_evaluation, functional_assessment)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, $5::jsonb)
		ON CONFLICT (session_id, organization_id) DO UPDATE SET
			diagnoses = EXCLUDED.diagnoses,
			psychiatric_evaluation = EXCLUDED.psychiatric_evaluation,
			functional_assessment = EXCLUDED.functional_assessment,
			updated_at = NOW()`, r.client.Table("diagnoses_clinical"))
	_, err := query.Exec(ctx, r.client.Conn(ctx), op, sql, sessionID, organizationID,
		orDefault(in.Diagnoses, emptyList),
		orDefault(in.PsychiatricEvaluation, emptyObject),
		orDefault(in.FunctionalAssessment, emptyObject))
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return &intake.SaveResult{SessionID: sessionID}, nil
}
