package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/platform/query"
	"github.com/ehr/intake/pkg/tristate"
)

// writeColumns are the patient_providers columns set on upsert.
var writeColumns = query.ColumnList[providerRow]()[3:]

type repoPG struct {
	client   *query.Client
	patients intake.PatientLookup
	answers  intake.AnswerRepository
}

func NewRepoPG(client *query.Client, patients intake.PatientLookup, answers intake.AnswerRepository) Repository {
	return &repoPG{client: client, patients: patients, answers: answers}
}

func (r *repoPG) FindBySession(ctx context.Context, sessionID, organizationID uuid.UUID) (*MedicalProviders, error) {
	const op = "providers.find_by_session"
	patientID, err := r.patients.PatientID(ctx, sessionID, organizationID)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE session_id = $1 AND organization_id = $2`,
		query.Columns[providerRow](), r.client.View("v_patient_providers_by_session"))
	rows, err := query.Many[providerRow](ctx, r.client.Conn(ctx), op, sql, sessionID, organizationID)
	if err != nil {
		return nil, err
	}
	answers, err := r.answers.Load(ctx, patientID, organizationID, QuestionHasPCP, QuestionHasBeenEvaluated)
	if err != nil {
		return nil, err
	}
	return fromRows(rows, answers), nil
}

// Save upserts the providers behind a Yes selector and deletes the rest,
// in one transaction.
func (r *repoPG) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *MedicalProviders) (*intake.SaveResult, error) {
	const op = "providers.save"
	table := r.client.Table("patient_providers")
	upsert := fmt.Sprintf(`INSERT INTO %s (patient_id, organization_id, %s) VALUES ($1, $2, %s)
		ON CONFLICT (patient_id, organization_id, provider_type) DO UPDATE SET %s, updated_at = NOW()`,
		table, joinColumns(writeColumns), query.PlaceholdersFrom(3, len(writeColumns)),
		query.ExcludedSet(writeColumns, "provider_type"))
	del := fmt.Sprintf(`DELETE FROM %s WHERE patient_id = $1 AND organization_id = $2 AND provider_type = $3`, table)

	err := r.client.InTx(ctx, func(ctx context.Context) error {
		patientID, err := r.patients.PatientID(ctx, sessionID, organizationID)
		if err != nil {
			return err
		}
		conn := r.client.Conn(ctx)

		keep := wanted(in)
		for _, kind := range []string{TypePCP, TypePsychiatrist, TypeEvaluator} {
			p := keep[kind]
			if p == nil {
				if _, err := query.Exec(ctx, conn, op, del, patientID, organizationID, kind); err != nil {
					return err
				}
				continue
			}
			row, err := providerToRow(kind, p)
			if err != nil {
				return apperr.Wrap(op, apperr.CodeCheckViolation, err)
			}
			if _, err := query.Exec(ctx, conn, op, upsert, patientID, organizationID,
				row.ProviderType, row.Name, row.PracticeName, row.Phone, row.Fax, row.Email,
				row.Address, row.LastVisitDate, row.EvaluationDate, row.Notes); err != nil {
				return err
			}
		}

		return r.answers.Save(ctx, patientID, organizationID, map[string]tristate.Value{
			QuestionHasPCP:           in.HasPCP,
			QuestionHasBeenEvaluated: in.HasBeenEvaluated,
		})
	})
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return &intake.SaveResult{SessionID: sessionID}, nil
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
