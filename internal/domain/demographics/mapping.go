package demographics

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/validation"
	"github.com/ehr/intake/pkg/tristate"
)

// record is the row set one Demographics value is stored as.
type record struct {
	patient   patientRow
	addresses []addressRow
	contacts  []contactRow
	guardians []guardianRow
	answers   map[string]tristate.Value
}

// mailing returns the mailing address row, if any.
func (r *record) mailing() *addressRow {
	for i := range r.addresses {
		if r.addresses[i].AddressType == addressMailing {
			return &r.addresses[i]
		}
	}
	return nil
}

func (r *record) phoneCount() int {
	n := 0
	for _, c := range r.contacts {
		if c.ContactKind == contactPhone {
			n++
		}
	}
	return n
}

func (r *record) guardian(kind string) *guardianRow {
	for i := range r.guardians {
		if r.guardians[i].GuardianType == kind {
			return &r.guardians[i]
		}
	}
	return nil
}

func (r *record) emergency() *contactRow {
	for i := range r.contacts {
		if r.contacts[i].ContactKind == contactEmergency {
			return &r.contacts[i]
		}
	}
	return nil
}

// toRecord maps a validated DTO onto rows. The mailing address is dropped
// when it matches the primary one by flag or is absent; guardian rows exist
// only behind a Yes answer.
func toRecord(sessionID, organizationID uuid.UUID, d *Demographics) (*record, error) {
	rec := &record{
		patient: patientRow{
			OrganizationID:       organizationID,
			SessionID:            sessionID,
			FirstName:            d.FirstName,
			MiddleName:           optional(d.MiddleName),
			LastName:             d.LastName,
			PreferredName:        optional(d.PreferredName),
			Gender:               optional(d.Gender),
			GenderIdentity:       optional(d.GenderIdentity),
			Race:                 optional(d.Race),
			Ethnicity:            optional(d.Ethnicity),
			MaritalStatus:        optional(d.MaritalStatus),
			VeteranStatus:        optional(d.VeteranStatus),
			PrimaryLanguage:      optional(d.PrimaryLanguage),
			Email:                optional(d.Email),
			SameAsMailingAddress: d.SameAsMailingAddress || d.MailingAddress == nil,
		},
		answers: map[string]tristate.Value{
			QuestionLegalGuardian:   d.HasLegalGuardian,
			QuestionPowerOfAttorney: d.HasPowerOfAttorney,
		},
	}

	dob, err := parseDate(d.DateOfBirth)
	if err != nil {
		return nil, err
	}
	rec.patient.DateOfBirth = dob

	rec.addresses = append(rec.addresses, addressToRow(addressPrimary, d.PrimaryAddress))
	if !rec.patient.SameAsMailingAddress {
		rec.addresses = append(rec.addresses, addressToRow(addressMailing, *d.MailingAddress))
	}

	for i, p := range d.Phones {
		rec.contacts = append(rec.contacts, contactRow{
			ContactKind: contactPhone,
			Position:    i,
			Phone:       p.Number,
			PhoneType:   optional(p.Type),
			IsPrimary:   p.IsPrimary,
		})
	}
	if ec := d.EmergencyContact; ec != nil {
		rec.contacts = append(rec.contacts, contactRow{
			ContactKind:  contactEmergency,
			Name:         optional(ec.Name),
			Relationship: optional(ec.Relationship),
			Phone:        ec.Phone,
		})
	}

	if d.HasLegalGuardian.IsYes() && d.LegalGuardian != nil {
		rec.guardians = append(rec.guardians, guardianToRow(guardianLegal, *d.LegalGuardian))
	}
	if d.HasPowerOfAttorney.IsYes() && d.PowerOfAttorney != nil {
		rec.guardians = append(rec.guardians, guardianToRow(guardianPOA, *d.PowerOfAttorney))
	}
	return rec, nil
}

// fromRecord is the inverse of toRecord.
func fromRecord(rec *record) *Demographics {
	p := rec.patient
	d := &Demographics{
		FirstName:            p.FirstName,
		MiddleName:           deref(p.MiddleName),
		LastName:             p.LastName,
		PreferredName:        deref(p.PreferredName),
		DateOfBirth:          formatDate(p.DateOfBirth),
		Gender:               deref(p.Gender),
		GenderIdentity:       deref(p.GenderIdentity),
		Race:                 deref(p.Race),
		Ethnicity:            deref(p.Ethnicity),
		MaritalStatus:        deref(p.MaritalStatus),
		VeteranStatus:        deref(p.VeteranStatus),
		PrimaryLanguage:      deref(p.PrimaryLanguage),
		Email:                deref(p.Email),
		Phones:               []Phone{},
		SameAsMailingAddress: p.SameAsMailingAddress,
		HasLegalGuardian:     rec.answers[QuestionLegalGuardian],
		HasPowerOfAttorney:   rec.answers[QuestionPowerOfAttorney],
	}

	for _, a := range rec.addresses {
		addr := addressFromRow(a)
		switch a.AddressType {
		case addressPrimary:
			d.PrimaryAddress = addr
		case addressMailing:
			if !p.SameAsMailingAddress {
				d.MailingAddress = &addr
			}
		}
	}

	phones := make([]contactRow, 0, len(rec.contacts))
	for _, c := range rec.contacts {
		if c.ContactKind == contactPhone {
			phones = append(phones, c)
		}
	}
	sort.Slice(phones, func(i, j int) bool { return phones[i].Position < phones[j].Position })
	for _, c := range phones {
		d.Phones = append(d.Phones, Phone{Number: c.Phone, Type: deref(c.PhoneType), IsPrimary: c.IsPrimary})
	}
	if ec := rec.emergency(); ec != nil {
		d.EmergencyContact = &EmergencyContact{
			Name:         deref(ec.Name),
			Relationship: deref(ec.Relationship),
			Phone:        ec.Phone,
		}
	}

	if g := rec.guardian(guardianLegal); g != nil {
		info := guardianFromRow(*g)
		d.LegalGuardian = &info
	}
	if g := rec.guardian(guardianPOA); g != nil {
		info := guardianFromRow(*g)
		d.PowerOfAttorney = &info
	}
	return d
}

func addressToRow(kind string, a Address) addressRow {
	country := a.Country
	if country == "" {
		country = "US"
	}
	return addressRow{
		AddressType: kind,
		Street1:     a.Street1,
		Street2:     optional(a.Street2),
		City:        a.City,
		State:       a.State,
		ZipCode:     a.ZipCode,
		County:      optional(a.County),
		Country:     country,
	}
}

func addressFromRow(r addressRow) Address {
	return Address{
		Street1: r.Street1,
		Street2: deref(r.Street2),
		City:    r.City,
		State:   r.State,
		ZipCode: r.ZipCode,
		County:  deref(r.County),
		Country: r.Country,
	}
}

func guardianToRow(kind string, g Guardian) guardianRow {
	return guardianRow{
		GuardianType: kind,
		FullName:     g.FullName,
		Relationship: optional(g.Relationship),
		Phone:        optional(g.Phone),
		Email:        optional(g.Email),
	}
}

func guardianFromRow(r guardianRow) Guardian {
	return Guardian{
		FullName:     r.FullName,
		Relationship: deref(r.Relationship),
		Phone:        deref(r.Phone),
		Email:        deref(r.Email),
	}
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

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(validation.DateLayout)
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
