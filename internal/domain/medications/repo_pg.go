package medications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/platform/query"
	"github.com/ehr/intake/pkg/tristate"
)

type repoPG struct {
	client   *query.Client
	patients intake.PatientLookup
	answers  intake.AnswerRepository
}

func NewRepoPG(client *query.Client, patients intake.PatientLookup, answers intake.AnswerRepository) Repository {
	return &repoPG{client: client, patients: patients, answers: answers}
}

func (r *repoPG) FindBySession(ctx context.Context, sessionID, organizationID uuid.UUID) (*MedicationProfile, error) {
	const op = "medications.find_by_session"
	patientID, err := r.patients.PatientID(ctx, sessionID, organizationID)
	if err != nil {
		return nil, err
	}
	conn := r.client.Conn(ctx)

	profileSQL := fmt.Sprintf(`SELECT %s FROM %s WHERE patient_id = $1 AND organization_id = $2`,
		query.Columns[profileRow](), r.client.Table("patient_medication_profiles"))
	profile, err := query.MaybeSingle[profileRow](ctx, conn, op, profileSQL, patientID, organizationID)
	if err != nil {
		return nil, err
	}

	medSQL := fmt.Sprintf(`SELECT %s FROM %s WHERE patient_id = $1 AND organization_id = $2 ORDER BY position`,
		query.Columns[medicationRow](), r.client.Table("patient_medications"))
	meds, err := query.Many[medicationRow](ctx, conn, op, medSQL, patientID, organizationID)
	if err != nil {
		return nil, err
	}

	answers, err := r.answers.Load(ctx, patientID, organizationID, QuestionTakesMedications, QuestionHasAllergies)
	if err != nil {
		return nil, err
	}
	return fromRows(profile, meds, answers), nil
}

// Save upserts the profile and the medication list by position in one
// transaction. Positions past the end of the list are deleted, so a
// selector other than Yes clears every medication.
func (r *repoPG) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *MedicationProfile) (*intake.SaveResult, error) {
	const op = "medications.save"
	profile, meds, err := toRows(in)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeCheckViolation, err)
	}

	err = r.client.InTx(ctx, func(ctx context.Context) error {
		patientID, err := r.patients.PatientID(ctx, sessionID, organizationID)
		if err != nil {
			return err
		}
		conn := r.client.Conn(ctx)

		profileSQL := fmt.Sprintf(`INSERT INTO %s (patient_id, organization_id, %s) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (patient_id, organization_id) DO UPDATE SET %s, updated_at = NOW()`,
			r.client.Table("patient_medication_profiles"), query.Columns[profileRow](),
			query.ExcludedSet(query.ColumnList[profileRow]()))
		if _, err := query.Exec(ctx, conn, op, profileSQL, patientID, organizationID,
			profile.Allergies, profile.PharmacyName, profile.PharmacyPhone); err != nil {
			return err
		}

		table := r.client.Table("patient_medications")
		upsert := fmt.Sprintf(`INSERT INTO %s (patient_id, organization_id, %s) VALUES ($1, $2, %s)
			ON CONFLICT (patient_id, organization_id, position) DO UPDATE SET %s, updated_at = NOW()`,
			table, query.Columns[medicationRow](), query.PlaceholdersFrom(3, len(query.ColumnList[medicationRow]())),
			query.ExcludedSet(query.ColumnList[medicationRow](), "position"))
		for _, m := range meds {
			if _, err := query.Exec(ctx, conn, op, upsert, patientID, organizationID,
				m.Position, m.Name, m.Dosage, m.Frequency, m.Prescriber, m.StartDate, m.IsPsychiatric); err != nil {
				return err
			}
		}
		trim := fmt.Sprintf(`DELETE FROM %s WHERE patient_id = $1 AND organization_id = $2 AND position >= $3`, table)
		if _, err := query.Exec(ctx, conn, op, trim, patientID, organizationID, len(meds)); err != nil {
			return err
		}

		return r.answers.Save(ctx, patientID, organizationID, map[string]tristate.Value{
			QuestionTakesMedications: in.TakesMedications,
			QuestionHasAllergies:     in.HasAllergies,
		})
	})
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return &intake.SaveResult{SessionID: sessionID}, nil
}
