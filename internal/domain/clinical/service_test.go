package clinical

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/platform/events"
	"github.com/ehr/intake/internal/testutil"
	"github.com/ehr/intake/internal/validation"
)

type mockRepo struct {
	mu       sync.Mutex
	sessions *testutil.Sessions
	rows     map[uuid.UUID]assessmentRow
}

func (m *mockRepo) FindBySession(_ context.Context, sessionID, _ uuid.UUID) (*Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[sessionID]
	if !ok {
		return nil, apperr.NotFound("clinical.find_by_session")
	}
	return row.toAssessment(), nil
}

func (m *mockRepo) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *Assessment) (*intake.SaveResult, error) {
	if _, err := m.sessions.PatientID(ctx, sessionID, organizationID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.rows[sessionID] = assessmentRow{
		SessionID:             sessionID,
		Diagnoses:             []byte(orDefault(in.Diagnoses, emptyList)),
		PsychiatricEvaluation: []byte(orDefault(in.PsychiatricEvaluation, emptyObject)),
		FunctionalAssessment:  []byte(orDefault(in.FunctionalAssessment, emptyObject)),
		UpdatedAt:             time.Now().UTC(),
	}
	m.mu.Unlock()
	return &intake.SaveResult{SessionID: sessionID}, nil
}

type fixture struct {
	svc      *Service
	sessions *testutil.Sessions
	events   *events.Recorder
	sid, org uuid.UUID
}

func newFixture() *fixture {
	sessions := testutil.NewSessions()
	rec := events.NewRecorder()
	repo := &mockRepo{sessions: sessions, rows: make(map[uuid.UUID]assessmentRow)}
	f := &fixture{
		svc:      NewService(repo, validation.New(), intake.NewTracker(sessions, rec, zerolog.Nop())),
		sessions: sessions,
		events:   rec,
		sid:      uuid.New(),
		org:      uuid.New(),
	}
	pid := uuid.New()
	sessions.Seed(f.sid, f.org, &pid)
	return f
}

func TestService_Save_CompletesSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := &Assessment{
		Diagnoses:            json.RawMessage(`[{"code":"F32.1","description":"Major depressive disorder"}]`),
		FunctionalAssessment: json.RawMessage(`{"gaf":55}`),
	}
	if _, err := f.svc.Save(ctx, f.sid, f.org, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := f.svc.Load(ctx, f.sid, f.org)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got.Diagnoses) != string(in.Diagnoses) {
		t.Errorf("diagnoses = %s", got.Diagnoses)
	}
	if string(got.PsychiatricEvaluation) != emptyObject {
		t.Errorf("expected default evaluation, got %s", got.PsychiatricEvaluation)
	}
	if got.UpdatedAt == nil {
		t.Error("expected updatedAt")
	}

	s, _ := f.sessions.Get(ctx, f.sid, f.org)
	if s.Status != intake.StatusCompleted || s.CompletedAt == nil {
		t.Errorf("expected completed session, got %+v", s)
	}
	if n := len(f.events.ByType(events.Completed)); n != 1 {
		t.Errorf("expected one completed event, got %d", n)
	}
}

func TestService_Save_InvalidJSON(t *testing.T) {
	f := newFixture()
	in := &Assessment{PsychiatricEvaluation: json.RawMessage(`{"mood":`)}
	_, err := f.svc.Save(context.Background(), f.sid, f.org, in)
	verrs, ok := err.(validation.Errors)
	if !ok {
		t.Fatalf("expected validation.Errors, got %v", err)
	}
	if _, ok := verrs["psychiatricEvaluation"]; !ok {
		t.Errorf("expected psychiatricEvaluation error, got %v", verrs)
	}
}

func TestService_Save_NoPatient(t *testing.T) {
	f := newFixture()
	sid := uuid.New()
	f.sessions.Seed(sid, f.org, nil)
	_, err := f.svc.Save(context.Background(), sid, f.org, &Assessment{})
	if !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestService_Load_NotFound(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Load(context.Background(), f.sid, f.org); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestOrDefault(t *testing.T) {
	tests := []struct {
		raw  json.RawMessage
		want string
	}{
		{nil, emptyList},
		{json.RawMessage("null"), emptyList},
		{json.RawMessage(`["x"]`), `["x"]`},
	}
	for _, tt := range tests {
		if got := orDefault(tt.raw, emptyList); got != tt.want {
			t.Errorf("orDefault(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestHandler_SaveAndLoad(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	c, rec := testutil.NewContext(testutil.Request{
		Method:         http.MethodPut,
		Body:           `{"diagnoses":[{"code":"F41.1"}],"psychiatricEvaluation":{"risk":"low"}}`,
		OrganizationID: f.org,
		Params:         map[string]string{"session": f.sid.String()},
	})
	if err := h.Save(c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	c, rec = testutil.NewContext(testutil.Request{
		Method:         http.MethodGet,
		OrganizationID: f.org,
		Params:         map[string]string{"session": f.sid.String()},
	})
	if err := h.Load(c); err != nil {
		t.Fatalf("Load: %v", err)
	}
	var got Assessment
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got.Diagnoses) != `[{"code":"F41.1"}]` {
		t.Errorf("diagnoses = %s", got.Diagnoses)
	}
	if string(got.FunctionalAssessment) != emptyObject {
		t.Errorf("functionalAssessment = %s", got.FunctionalAssessment)
	}
}
