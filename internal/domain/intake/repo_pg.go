package intake

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/platform/query"
	"github.com/ehr/intake/pkg/tristate"
)

type sessionRepoPG struct {
	client *query.Client
}

func NewSessionRepoPG(client *query.Client) SessionRepository {
	return &sessionRepoPG{client: client}
}

func (r *sessionRepoPG) Create(ctx context.Context, organizationID uuid.UUID, createdBy string) (*Session, error) {
	var by *string
	if createdBy != "" {
		by = &createdBy
	}
	sql := fmt.Sprintf(`INSERT INTO %s (session_id, organization_id, current_step, status, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s`, r.client.Table("intake_session_map"), query.Columns[sessionRow]())
	row, err := query.Single[sessionRow](ctx, r.client.Conn(ctx), "intake.create_session", sql,
		uuid.New(), organizationID, StepDemographics, string(StatusInProgress), by)
	if err != nil {
		return nil, err
	}
	return row.toSession(), nil
}

func (r *sessionRepoPG) Get(ctx context.Context, sessionID, organizationID uuid.UUID) (*Session, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE session_id = $1 AND organization_id = $2`,
		query.Columns[sessionRow](), r.client.Table("intake_session_map"))
	row, err := query.Single[sessionRow](ctx, r.client.Conn(ctx), "intake.get_session", sql, sessionID, organizationID)
	if err != nil {
		return nil, err
	}
	return row.toSession(), nil
}

func (r *sessionRepoPG) List(ctx context.Context, organizationID uuid.UUID, status Status, limit, offset int) ([]*Session, int, error) {
	table := r.client.Table("intake_session_map")
	where := `organization_id = $1 AND ($2 = '' OR status = $2)`

	total, err := query.Scalar[int](ctx, r.client.Conn(ctx), "intake.count_sessions",
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, table, where), organizationID, string(status))
	if err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY updated_at DESC LIMIT $3 OFFSET $4`,
		query.Columns[sessionRow](), table, where)
	rows, err := query.Many[sessionRow](ctx, r.client.Conn(ctx), "intake.list_sessions", sql,
		organizationID, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*Session, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toSession())
	}
	return items, total, nil
}

func (r *sessionRepoPG) Exists(ctx context.Context, sessionID, organizationID uuid.UUID) (bool, error) {
	sql := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE session_id = $1 AND organization_id = $2)`,
		r.client.Table("intake_session_map"))
	return query.Scalar[bool](ctx, r.client.Conn(ctx), "intake.session_exists", sql, sessionID, organizationID)
}

// Delete discards the session with its patient (rows hanging off the
// patient cascade) and the clinical blob, in one transaction.
func (r *sessionRepoPG) Delete(ctx context.Context, sessionID, organizationID uuid.UUID) (bool, error) {
	const op = "intake.delete_session"
	deleted := false

	err := r.client.InTx(ctx, func(ctx context.Context) error {
		conn := r.client.Conn(ctx)

		mapSQL := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1 AND organization_id = $2 RETURNING patient_id`,
			r.client.Table("intake_session_map"))
		patientIDs, err := query.Many[sessionPatient](ctx, conn, op, mapSQL, sessionID, organizationID)
		if err != nil {
			return err
		}
		if len(patientIDs) == 0 {
			return nil
		}
		deleted = true

		clinicalSQL := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1 AND organization_id = $2`,
			r.client.Table("diagnoses_clinical"))
		if _, err := query.Exec(ctx, conn, op, clinicalSQL, sessionID, organizationID); err != nil {
			return err
		}

		if pid := patientIDs[0].PatientID; pid != nil {
			patientSQL := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND organization_id = $2`, r.client.Table("patients"))
			if _, err := query.Exec(ctx, conn, op, patientSQL, *pid, organizationID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, apperr.FromDB(op, err)
	}
	return deleted, nil
}

type sessionPatient struct {
	PatientID *uuid.UUID `db:"patient_id"`
}

func (r *sessionRepoPG) Advance(ctx context.Context, sessionID, organizationID uuid.UUID, step string, complete bool) error {
	sql := fmt.Sprintf(`UPDATE %s SET
			current_step = CASE
				WHEN array_position($4::text[], $3) > COALESCE(array_position($4::text[], current_step), 0) THEN $3
				ELSE current_step END,
			status = CASE WHEN $5 THEN 'completed' ELSE status END,
			completed_at = CASE WHEN $5 AND completed_at IS NULL THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE session_id = $1 AND organization_id = $2`, r.client.Table("intake_session_map"))
	n, err := query.Exec(ctx, r.client.Conn(ctx), "intake.advance_session", sql,
		sessionID, organizationID, step, Steps, complete)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("intake.advance_session")
	}
	return nil
}

func (r *sessionRepoPG) PatientID(ctx context.Context, sessionID, organizationID uuid.UUID) (uuid.UUID, error) {
	const op = "intake.session_patient"
	sql := fmt.Sprintf(`SELECT patient_id FROM %s WHERE session_id = $1 AND organization_id = $2`,
		r.client.Table("intake_session_map"))
	row, err := query.Single[sessionPatient](ctx, r.client.Conn(ctx), op, sql, sessionID, organizationID)
	if err != nil {
		return uuid.Nil, err
	}
	if row.PatientID == nil {
		return uuid.Nil, apperr.NotFound(op)
	}
	return *row.PatientID, nil
}

func (r *sessionRepoPG) LinkPatient(ctx context.Context, sessionID, organizationID, patientID uuid.UUID) error {
	sql := fmt.Sprintf(`INSERT INTO %s (session_id, organization_id, patient_id, current_step, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, organization_id)
		DO UPDATE SET patient_id = EXCLUDED.patient_id, updated_at = NOW()`, r.client.Table("intake_session_map"))
	_, err := query.Exec(ctx, r.client.Conn(ctx), "intake.link_patient", sql,
		sessionID, organizationID, patientID, StepDemographics, string(StatusInProgress))
	return err
}

type answerRepoPG struct {
	client *query.Client
}

func NewAnswerRepoPG(client *query.Client) AnswerRepository {
	return &answerRepoPG{client: client}
}

type answerRow struct {
	Question string `db:"question"`
	Answer   string `db:"answer"`
}

// Load returns the stored answers. Questions without a row are absent from
// the map, which reads as tristate.Unanswered.
func (r *answerRepoPG) Load(ctx context.Context, patientID, organizationID uuid.UUID, questions ...string) (map[string]tristate.Value, error) {
	sql := fmt.Sprintf(`SELECT question, answer FROM %s
		WHERE patient_id = $1 AND organization_id = $2 AND question = ANY($3)`, r.client.Table("patient_intake_answers"))
	rows, err := query.Many[answerRow](ctx, r.client.Conn(ctx), "intake.load_answers", sql, patientID, organizationID, questions)
	if err != nil {
		return nil, err
	}
	out := make(map[string]tristate.Value, len(rows))
	for _, row := range rows {
		out[row.Question] = tristate.FromPtr(&row.Answer)
	}
	return out, nil
}

// Save upserts answered questions and deletes unanswered ones.
func (r *answerRepoPG) Save(ctx context.Context, patientID, organizationID uuid.UUID, answers map[string]tristate.Value) error {
	const op = "intake.save_answers"
	table := r.client.Table("patient_intake_answers")
	upsert := fmt.Sprintf(`INSERT INTO %s (patient_id, organization_id, question, answer)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient_id, organization_id, question)
		DO UPDATE SET answer = EXCLUDED.answer, updated_at = NOW()`, table)
	remove := fmt.Sprintf(`DELETE FROM %s WHERE patient_id = $1 AND organization_id = $2 AND question = $3`, table)

	return r.client.InTx(ctx, func(ctx context.Context) error {
		conn := r.client.Conn(ctx)
		for question, answer := range answers {
			var err error
			if answer.Answered() {
				_, err = query.Exec(ctx, conn, op, upsert, patientID, organizationID, question, string(answer))
			} else {
				_, err = query.Exec(ctx, conn, op, remove, patientID, organizationID, question)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
