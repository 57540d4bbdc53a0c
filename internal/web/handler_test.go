package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/demographics"
	"github.com/ehr/intake/internal/domain/insurance"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/domain/medications"
	"github.com/ehr/intake/internal/domain/providers"
	"github.com/ehr/intake/internal/domain/referrals"
	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/platform/auth"
	"github.com/ehr/intake/internal/platform/draftstore"
	"github.com/ehr/intake/internal/platform/events"
	"github.com/ehr/intake/internal/testutil"
	"github.com/ehr/intake/internal/validation"
	"github.com/ehr/intake/pkg/tristate"
)

type mockDemographicsRepo struct {
	mu   sync.Mutex
	data map[uuid.UUID]demographics.Demographics
}

func (m *mockDemographicsRepo) FindBySession(_ context.Context, sessionID, _ uuid.UUID) (*demographics.Demographics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[sessionID]
	if !ok {
		return nil, apperr.NotFound("demographics.find_by_session")
	}
	return &d, nil
}

func (m *mockDemographicsRepo) Save(_ context.Context, sessionID, _ uuid.UUID, in *demographics.Demographics) (*intake.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = *in
	return &intake.SaveResult{SessionID: sessionID}, nil
}

type mockReferralRepo struct {
	err error
}

func (m *mockReferralRepo) FindBySession(context.Context, uuid.UUID, uuid.UUID) (*referrals.Referral, error) {
	return &referrals.Referral{WasReferred: tristate.No}, nil
}

func (m *mockReferralRepo) Save(_ context.Context, sessionID, _ uuid.UUID, _ *referrals.Referral) (*intake.SaveResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &intake.SaveResult{SessionID: sessionID}, nil
}

type fixture struct {
	h        *Handler
	sessions *testutil.Sessions
	demo     *mockDemographicsRepo
	drafts   *draftstore.MemoryStore
	sid, org uuid.UUID
}

func newFixture(t *testing.T, referralErr error) *fixture {
	t.Helper()
	sessions := testutil.NewSessions()
	drafts := draftstore.NewMemoryStore(time.Hour)
	v := validation.New()
	tracker := intake.NewTracker(sessions, events.NewRecorder(), zerolog.Nop())
	demo := &mockDemographicsRepo{data: make(map[uuid.UUID]demographics.Demographics)}

	h, err := NewHandler(Services{
		Sessions:     intake.NewService(sessions, drafts, events.NewRecorder(), zerolog.Nop()),
		Demographics: demographics.NewService(demo, v, tracker),
		Referrals:    referrals.NewService(&mockReferralRepo{err: referralErr}, v, tracker),
	}, drafts, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	f := &fixture{h: h, sessions: sessions, demo: demo, drafts: drafts, sid: uuid.New(), org: uuid.New()}
	sessions.Seed(f.sid, f.org, nil)
	return f
}

func (f *fixture) post(step string, form url.Values, roles ...string) (echo.Context, *bytes.Buffer) {
	if len(roles) == 0 {
		roles = []string{auth.RoleIntakeStaff}
	}
	c, rec := testutil.NewContext(testutil.Request{
		Method:         http.MethodPost,
		Body:           form.Encode(),
		ContentType:    echo.MIMEApplicationForm,
		OrganizationID: f.org,
		UserID:         "user-1",
		Roles:          roles,
		Params:         map[string]string{"session": f.sid.String(), "step": step},
	})
	return c, rec.Body
}

func validDemographics() url.Values {
	return url.Values{
		"_action":                {"save"},
		"firstName":              {"Ada"},
		"lastName":               {"Byron"},
		"dateOfBirth":            {"1990-04-12"},
		"phones.0.number":        {"(201) 555-0123"},
		"phones.0.isPrimary":     {"true"},
		"primaryAddress.street1": {"1 Main St"},
		"primaryAddress.city":    {"Hoboken"},
		"primaryAddress.state":   {"NJ"},
		"primaryAddress.zipCode": {"07030"},
		"sameAsMailingAddress":   {"true"},
		"hasLegalGuardian":       {"No"},
	}
}

func TestRenderer_EveryPage(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	visits := 4
	forms := map[string]any{
		intake.StepDemographics: &demographics.Demographics{Phones: []demographics.Phone{{Number: "+12015550123"}}},
		intake.StepInsurance: &insuranceForm{Coverages: []insurance.Coverage{{
			CarrierName:          "Acme",
			MentalHealthCoverage: tristate.Yes,
			MHVisitLimit:         &visits,
			Authorizations:       []insurance.Authorization{{AuthNumber: "A-1"}},
		}}},
		intake.StepProviders:   &providers.MedicalProviders{HasPCP: tristate.Yes},
		intake.StepMedications: &medications.MedicationProfile{Medications: []medications.Medication{{Name: "Sertraline"}}},
		intake.StepReferrals:   &referrals.Referral{},
		intake.StepClinical:    &clinicalForm{Diagnoses: `[{"code":"F32.1"}]`},
		"complete":             nil,
	}
	for name, form := range forms {
		if form != nil {
			fillEmpty(form)
		}
		v := &view{Title: name, Form: form, Errors: map[string]string{"firstName": "is required"}, Complete: name == "complete"}
		var buf bytes.Buffer
		if err := r.Render(&buf, name, v, nil); err != nil {
			t.Errorf("render %s: %v", name, err)
			continue
		}
		if name != "complete" && !strings.Contains(buf.String(), `name="_action"`) {
			t.Errorf("%s: missing form actions", name)
		}
	}
	if err := r.Render(&bytes.Buffer{}, "nope", &view{}, nil); err == nil {
		t.Error("expected unknown page error")
	}
}

func TestHandler_NewIntake(t *testing.T) {
	f := newFixture(t, nil)
	c, rec := testutil.NewContext(testutil.Request{
		Method:         http.MethodGet,
		OrganizationID: f.org,
		Roles:          []string{auth.RoleIntakeStaff},
	})
	if err := f.h.NewIntake(c); err != nil {
		t.Fatalf("NewIntake: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	loc := rec.Header().Get(echo.HeaderLocation)
	if !strings.HasPrefix(loc, "/intake/") || !strings.HasSuffix(loc, "/demographics?new=1") {
		t.Errorf("Location = %q", loc)
	}
}

func TestHandler_ShowStep(t *testing.T) {
	f := newFixture(t, nil)
	c, rec := testutil.NewContext(testutil.Request{
		Method:         http.MethodGet,
		Target:         "/?new=1",
		OrganizationID: f.org,
		Params:         map[string]string{"session": f.sid.String(), "step": intake.StepDemographics},
	})
	if err := f.h.ShowStep(c); err != nil {
		t.Fatalf("ShowStep: %v", err)
	}
	body := rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, `name="firstName"`) {
		t.Errorf("status %d body %s", rec.Code, body)
	}
	if !strings.Contains(body, `data-phase="ready"`) {
		t.Error("expected ready phase")
	}

	c, _ = testutil.NewContext(testutil.Request{
		Method:         http.MethodGet,
		OrganizationID: f.org,
		Params:         map[string]string{"session": f.sid.String(), "step": "billing"},
	})
	if code := testutil.StatusOf(f.h.ShowStep(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_SubmitDemographics(t *testing.T) {
	f := newFixture(t, nil)
	c, _ := f.post(intake.StepDemographics, validDemographics())
	if err := f.h.SubmitStep(c); err != nil {
		t.Fatalf("SubmitStep: %v", err)
	}
	rec := c.Response()
	if rec.Status != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Status)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != stepURL(f.sid.String(), intake.StepInsurance) {
		t.Errorf("Location = %q", loc)
	}
	saved := f.demo.data[f.sid]
	if saved.Phones[0].Number != "+12015550123" || saved.MailingAddress != nil {
		t.Errorf("unexpected saved record %+v", saved)
	}
	s, _ := f.sessions.Get(context.Background(), f.sid, f.org)
	if s.CurrentStep != intake.StepInsurance {
		t.Errorf("current step = %s", s.CurrentStep)
	}
}

func TestHandler_SubmitValidationError(t *testing.T) {
	f := newFixture(t, nil)
	form := validDemographics()
	form.Del("firstName")
	c, body := f.post(intake.StepDemographics, form)
	if err := f.h.SubmitStep(c); err != nil {
		t.Fatalf("SubmitStep: %v", err)
	}
	if c.Response().Status != http.StatusOK {
		t.Fatalf("status = %d", c.Response().Status)
	}
	if !strings.Contains(body.String(), "is required") || !strings.Contains(body.String(), `aria-invalid="true"`) {
		t.Errorf("expected field error in page")
	}
	if _, ok := f.demo.data[f.sid]; ok {
		t.Error("invalid form must not be saved")
	}
}

func TestHandler_ListEdit(t *testing.T) {
	f := newFixture(t, nil)
	form := validDemographics()
	form.Set("_action", "add:phones")
	c, body := f.post(intake.StepDemographics, form)
	if err := f.h.SubmitStep(c); err != nil {
		t.Fatalf("SubmitStep: %v", err)
	}
	if !strings.Contains(body.String(), `name="phones.1.number"`) {
		t.Error("expected a second phone row")
	}
	if _, ok := f.demo.data[f.sid]; ok {
		t.Error("list edits must not save")
	}

	form.Set("_action", "remove:phones:0")
	c, body = f.post(intake.StepDemographics, form)
	if err := f.h.SubmitStep(c); err != nil {
		t.Fatalf("SubmitStep: %v", err)
	}
	if strings.Contains(body.String(), `name="phones.0.number"`) {
		t.Error("expected the phone row removed")
	}

	form.Set("_action", "add:coverages")
	c, _ = f.post(intake.StepDemographics, form)
	if code := testutil.StatusOf(f.h.SubmitStep(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 for a list the step does not have, got %d", code)
	}
}

func TestHandler_SubmitFailureShowsGenericMessage(t *testing.T) {
	f := newFixture(t, apperr.Wrap("referrals.save", apperr.CodeUnknown, errors.New("connection reset")))
	c, body := f.post(intake.StepReferrals, url.Values{"_action": {"save"}, "wasReferred": {"No"}})
	if err := f.h.SubmitStep(c); err != nil {
		t.Fatalf("SubmitStep: %v", err)
	}
	page := body.String()
	if !strings.Contains(page, apperr.GenericMessage) || !strings.Contains(page, `name="_retry"`) {
		t.Errorf("expected generic message with retry, got %s", page)
	}
	if strings.Contains(page, "connection reset") {
		t.Error("cause leaked into the page")
	}
}

func TestHandler_SubmitRequiresStaff(t *testing.T) {
	f := newFixture(t, nil)
	c, _ := f.post(intake.StepDemographics, validDemographics(), auth.RoleClinician)
	if code := testutil.StatusOf(f.h.SubmitStep(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}

	c, _ = f.post(intake.StepDemographics, url.Values{"_action": {"explode"}})
	if code := testutil.StatusOf(f.h.SubmitStep(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}

	c, _ = f.post(intake.StepDemographics, url.Values{"_action": {"save"}, "hasLegalGuardian": {"maybe"}})
	if code := testutil.StatusOf(f.h.SubmitStep(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad tri-state, got %d", code)
	}
}

func TestRegisterStatic(t *testing.T) {
	e := echo.New()
	RegisterStatic(e)

	for path, want := range map[string]string{
		"/static/wizard.js":  "data-when",
		"/static/wizard.css": "nav.steps",
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
			continue
		}
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("%s: expected %q in body", path, want)
		}
	}
}
