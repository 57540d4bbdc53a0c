package demographics

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/platform/hipaa"
	"github.com/ehr/intake/internal/platform/query"
)

type repoPG struct {
	client  *query.Client
	linker  intake.PatientLinker
	answers intake.AnswerRepository
	cipher  hipaa.FieldCipher
}

// NewRepoPG returns the Postgres repository. cipher may be nil, in which
// case PHI columns are stored as given.
func NewRepoPG(client *query.Client, linker intake.PatientLinker, answers intake.AnswerRepository, cipher hipaa.FieldCipher) Repository {
	return &repoPG{client: client, linker: linker, answers: answers, cipher: cipher}
}

func (r *repoPG) FindBySession(ctx context.Context, sessionID, organizationID uuid.UUID) (*Demographics, error) {
	const op = "demographics.find_by_session"
	conn := r.client.Conn(ctx)

	patientSQL := fmt.Sprintf(`SELECT %s FROM %s WHERE session_id = $1 AND organization_id = $2`,
		query.Columns[patientRow](), r.client.Table("patients"))
	patient, err := query.Single[patientRow](ctx, conn, op, patientSQL, sessionID, organizationID)
	if err != nil {
		return nil, err
	}
	rec := &record{patient: *patient}

	addrSQL := fmt.Sprintf(`SELECT %s FROM %s WHERE patient_id = $1 AND organization_id = $2 ORDER BY address_type DESC`,
		query.Columns[addressRow](), r.client.Table("patient_addresses"))
	if rec.addresses, err = query.Many[addressRow](ctx, conn, op, addrSQL, patient.ID, organizationID); err != nil {
		return nil, err
	}

	contactSQL := fmt.Sprintf(`SELECT %s FROM %s WHERE patient_id = $1 AND organization_id = $2 ORDER BY contact_kind, position`,
		query.Columns[contactRow](), r.client.Table("patient_contacts"))
	if rec.contacts, err = query.Many[contactRow](ctx, conn, op, contactSQL, patient.ID, organizationID); err != nil {
		return nil, err
	}

	guardianSQL := fmt.Sprintf(`SELECT %s FROM %s WHERE patient_id = $1 AND organization_id = $2`,
		query.Columns[guardianRow](), r.client.Table("patient_guardians"))
	if rec.guardians, err = query.Many[guardianRow](ctx, conn, op, guardianSQL, patient.ID, organizationID); err != nil {
		return nil, err
	}

	if rec.answers, err = r.answers.Load(ctx, patient.ID, organizationID, questions...); err != nil {
		return nil, err
	}

	if err := r.open(rec); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeUnknown, err)
	}
	return fromRecord(rec), nil
}

// Save upserts the patient keyed by session and replaces its sub-records
// in one transaction.
func (r *repoPG) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *Demographics) (*intake.SaveResult, error) {
	const op = "demographics.save"

	rec, err := toRecord(sessionID, organizationID, in)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeCheckViolation, err)
	}
	if err := r.seal(rec); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeUnknown, err)
	}

	err = r.client.InTx(ctx, func(ctx context.Context) error {
		patientID, err := r.upsertPatient(ctx, &rec.patient)
		if err != nil {
			return err
		}
		if err := r.linker.LinkPatient(ctx, sessionID, organizationID, patientID); err != nil {
			return err
		}
		if err := r.saveAddresses(ctx, patientID, organizationID, rec); err != nil {
			return err
		}
		if err := r.saveContacts(ctx, patientID, organizationID, rec); err != nil {
			return err
		}
		if err := r.saveGuardians(ctx, patientID, organizationID, rec); err != nil {
			return err
		}
		return r.answers.Save(ctx, patientID, organizationID, rec.answers)
	})
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return &intake.SaveResult{SessionID: sessionID}, nil
}

func (r *repoPG) upsertPatient(ctx context.Context, p *patientRow) (uuid.UUID, error) {
	cols := query.ColumnList[patientRow]()[1:] // id is generated
	sql := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)
		ON CONFLICT ON CONSTRAINT patients_session_org_key DO UPDATE SET %s, updated_at = NOW()
		RETURNING id`,
		r.client.Table("patients"), strings.Join(cols, ", "), query.Placeholders(len(cols)),
		query.ExcludedSet(cols, "organization_id", "session_id"))
	return query.Scalar[uuid.UUID](ctx, r.client.Conn(ctx), "demographics.upsert_patient", sql,
		p.OrganizationID, p.SessionID, p.FirstName, p.MiddleName, p.LastName, p.PreferredName,
		p.DateOfBirth, p.Gender, p.GenderIdentity, p.Race, p.Ethnicity, p.MaritalStatus,
		p.VeteranStatus, p.PrimaryLanguage, p.Email, p.SameAsMailingAddress)
}

func (r *repoPG) saveAddresses(ctx context.Context, patientID, organizationID uuid.UUID, rec *record) error {
	const op = "demographics.save_addresses"
	conn := r.client.Conn(ctx)
	table := r.client.Table("patient_addresses")

	upsert := fmt.Sprintf(`INSERT INTO %s (patient_id, organization_id, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (patient_id, organization_id, address_type) DO UPDATE SET %s, updated_at = NOW()`,
		table, query.Columns[addressRow](), query.ExcludedSet(query.ColumnList[addressRow](), "address_type"))
	for _, a := range rec.addresses {
		if _, err := query.Exec(ctx, conn, op, upsert, patientID, organizationID,
			a.AddressType, a.Street1, a.Street2, a.City, a.State, a.ZipCode, a.County, a.Country); err != nil {
			return err
		}
	}

	if rec.mailing() == nil {
		del := fmt.Sprintf(`DELETE FROM %s WHERE patient_id = $1 AND organization_id = $2 AND address_type = $3`, table)
		if _, err := query.Exec(ctx, conn, op, del, patientID, organizationID, addressMailing); err != nil {
			return err
		}
	}
	return nil
}

// saveContacts upserts phones by list position, drops positions past the
// end of the list, and keeps at most one emergency contact.
func (r *repoPG) saveContacts(ctx context.Context, patientID, organizationID uuid.UUID, rec *record) error {
	const op = "demographics.save_contacts"
	conn := r.client.Conn(ctx)
	table := r.client.Table("patient_contacts")

	upsert := fmt.Sprintf(`INSERT INTO %s (patient_id, organization_id, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (patient_id, organization_id, contact_kind, position) DO UPDATE SET %s, updated_at = NOW()`,
		table, query.Columns[contactRow](), query.ExcludedSet(query.ColumnList[contactRow](), "contact_kind", "position"))
	for _, c := range rec.contacts {
		if _, err := query.Exec(ctx, conn, op, upsert, patientID, organizationID,
			c.ContactKind, c.Position, c.Name, c.Relationship, c.Phone, c.PhoneType, c.IsPrimary); err != nil {
			return err
		}
	}

	trim := fmt.Sprintf(`DELETE FROM %s WHERE patient_id = $1 AND organization_id = $2 AND contact_kind = $3 AND position >= $4`, table)
	if _, err := query.Exec(ctx, conn, op, trim, patientID, organizationID, contactPhone, rec.phoneCount()); err != nil {
		return err
	}
	if rec.emergency() == nil {
		if _, err := query.Exec(ctx, conn, op, trim, patientID, organizationID, contactEmergency, 0); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) saveGuardians(ctx context.Context, patientID, organizationID uuid.UUID, rec *record) error {
	const op = "demographics.save_guardians"
	conn := r.client.Conn(ctx)
	table := r.client.Table("patient_guardians")

	upsert := fmt.Sprintf(`INSERT INTO %s (patient_id, organization_id, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (patient_id, organization_id, guardian_type) DO UPDATE SET %s, updated_at = NOW()`,
		table, query.Columns[guardianRow](), query.ExcludedSet(query.ColumnList[guardianRow](), "guardian_type"))
	del := fmt.Sprintf(`DELETE FROM %s WHERE patient_id = $1 AND organization_id = $2 AND guardian_type = $3`, table)

	for _, kind := range []string{guardianLegal, guardianPOA} {
		g := rec.guardian(kind)
		if g == nil {
			if _, err := query.Exec(ctx, conn, op, del, patientID, organizationID, kind); err != nil {
				return err
			}
			continue
		}
		if _, err := query.Exec(ctx, conn, op, upsert, patientID, organizationID,
			g.GuardianType, g.FullName, g.Relationship, g.Phone, g.Email); err != nil {
			return err
		}
	}
	return nil
}

// seal encrypts the PHI columns of rec in place.
func (r *repoPG) seal(rec *record) error {
	return r.eachPHI(rec, hipaa.SealPtr)
}

func (r *repoPG) open(rec *record) error {
	return r.eachPHI(rec, hipaa.OpenPtr)
}

func (r *repoPG) eachPHI(rec *record, fn func(hipaa.FieldCipher, *string) error) error {
	if r.cipher == nil {
		return nil
	}
	fields := []*string{rec.patient.Email}
	for i := range rec.addresses {
		fields = append(fields, &rec.addresses[i].Street1, rec.addresses[i].Street2)
	}
	for i := range rec.contacts {
		fields = append(fields, &rec.contacts[i].Phone)
	}
	for i := range rec.guardians {
		fields = append(fields, rec.guardians[i].Phone, rec.guardians[i].Email)
	}
	for _, f := range fields {
		if err := fn(r.cipher, f); err != nil {
			return err
		}
	}
	return nil
}
