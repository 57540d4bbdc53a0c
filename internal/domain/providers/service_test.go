package providers

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/testutil"
	"github.com/ehr/intake/internal/validation"
	"github.com/ehr/intake/pkg/tristate"
)

// mockRepo stores provider rows by type, applying the same keep/delete
// decision as the Postgres repository.
type mockRepo struct {
	mu       sync.Mutex
	sessions *testutil.Sessions
	answers  *testutil.Answers
	rows     map[uuid.UUID]map[string]providerRow
}

func newMockRepo(sessions *testutil.Sessions) *mockRepo {
	return &mockRepo{sessions: sessions, answers: testutil.NewAnswers(), rows: make(map[uuid.UUID]map[string]providerRow)}
}

func (m *mockRepo) FindBySession(ctx context.Context, sessionID, organizationID uuid.UUID) (*MedicalProviders, error) {
	patientID, err := m.sessions.PatientID(ctx, sessionID, organizationID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	var rows []providerRow
	for _, r := range m.rows[patientID] {
		rows = append(rows, r)
	}
	m.mu.Unlock()
	answers, _ := m.answers.Load(ctx, patientID, organizationID, QuestionHasPCP, QuestionHasBeenEvaluated)
	return fromRows(rows, answers), nil
}

func (m *mockRepo) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *MedicalProviders) (*intake.SaveResult, error) {
	patientID, err := m.sessions.PatientID(ctx, sessionID, organizationID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	stored, ok := m.rows[patientID]
	if !ok {
		stored = make(map[string]providerRow)
		m.rows[patientID] = stored
	}
	for kind, p := range wanted(in) {
		if p == nil {
			delete(stored, kind)
			continue
		}
		row, err := providerToRow(kind, p)
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		stored[kind] = row
	}
	m.mu.Unlock()
	_ = m.answers.Save(ctx, patientID, organizationID, map[string]tristate.Value{
		QuestionHasPCP:           in.HasPCP,
		QuestionHasBeenEvaluated: in.HasBeenEvaluated,
	})
	return &intake.SaveResult{SessionID: sessionID}, nil
}

func (m *mockRepo) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rows := range m.rows {
		if _, ok := rows[kind]; ok {
			n++
		}
	}
	return n
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	sessions *testutil.Sessions
	sid, org uuid.UUID
}

func newFixture() *fixture {
	sessions := testutil.NewSessions()
	repo := newMockRepo(sessions)
	f := &fixture{
		svc:      NewService(repo, validation.New(), intake.NewTracker(sessions, nil, zerolog.Nop())),
		repo:     repo,
		sessions: sessions,
		sid:      uuid.New(),
		org:      uuid.New(),
	}
	pid := uuid.New()
	sessions.Seed(f.sid, f.org, &pid)
	return f
}

func allProviders() *MedicalProviders {
	return &MedicalProviders{
		HasPCP:           tristate.Yes,
		PCP:              &Provider{Name: "Dr. Alvarez", PracticeName: "Main St Clinic", Phone: "+12015550123", LastVisitDate: "2024-01-10"},
		HasBeenEvaluated: tristate.Yes,
		Psychiatrist:     &Provider{Name: "Dr. Kim", EvaluationDate: "2023-11-02"},
		Evaluator:        &Provider{Name: "Dr. Osei", Email: "osei@example.com"},
	}
}

func TestService_Save_RoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.svc.Save(ctx, f.sid, f.org, allProviders()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := f.svc.Load(ctx, f.sid, f.org)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := allProviders()
	if *got.PCP != *want.PCP || *got.Psychiatrist != *want.Psychiatrist || *got.Evaluator != *want.Evaluator {
		t.Errorf("round trip mismatch: %+v", got)
	}
	s, _ := f.sessions.Get(ctx, f.sid, f.org)
	if s.CurrentStep != intake.StepMedications {
		t.Errorf("expected medications step, got %s", s.CurrentStep)
	}
}

func TestService_Save_NoRemovesRows(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.svc.Save(ctx, f.sid, f.org, allProviders()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	in := allProviders()
	in.HasPCP = tristate.No
	in.HasBeenEvaluated = tristate.No
	if _, err := f.svc.Save(ctx, f.sid, f.org, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for _, kind := range []string{TypePCP, TypePsychiatrist, TypeEvaluator} {
		if n := f.repo.count(kind); n != 0 {
			t.Errorf("%s rows = %d, want 0", kind, n)
		}
	}

	got, _ := f.svc.Load(ctx, f.sid, f.org)
	if got.HasPCP != tristate.No || got.HasBeenEvaluated != tristate.No {
		t.Errorf("answers not restored: %+v", got)
	}
}

func TestService_Save_UnknownKeepsNothing(t *testing.T) {
	f := newFixture()
	in := allProviders()
	in.HasPCP = tristate.Unknown
	if _, err := f.svc.Save(context.Background(), f.sid, f.org, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if f.repo.count(TypePCP) != 0 || f.repo.count(TypePsychiatrist) != 1 {
		t.Error("only the evaluated providers should be stored")
	}
}

func TestService_Save_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *MedicalProviders)
		field  string
	}{
		{"pcp required", func(p *MedicalProviders) { p.PCP = nil }, "pcp"},
		{"pcp name required", func(p *MedicalProviders) { p.PCP.Name = "" }, "pcp.name"},
		{"evaluator or psychiatrist", func(p *MedicalProviders) { p.Psychiatrist, p.Evaluator = nil, nil }, "psychiatrist"},
		{"bad email", func(p *MedicalProviders) { p.Evaluator.Email = "x" }, "evaluator.email"},
		{"future visit", func(p *MedicalProviders) { p.PCP.LastVisitDate = "2999-01-01" }, "pcp.lastVisitDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			in := allProviders()
			tt.mutate(in)
			_, err := f.svc.Save(context.Background(), f.sid, f.org, in)
			verrs, ok := err.(validation.Errors)
			if !ok {
				t.Fatalf("expected validation.Errors, got %v", err)
			}
			if _, ok := verrs[tt.field]; !ok {
				t.Errorf("expected error on %q, got %v", tt.field, verrs)
			}
		})
	}
}

func TestService_Load_NoPatient(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Load(context.Background(), uuid.New(), f.org)
	if !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestFromRows_InfersSelectors(t *testing.T) {
	got := fromRows([]providerRow{{ProviderType: TypeEvaluator, Name: "Dr. Osei"}}, nil)
	if got.HasBeenEvaluated != tristate.Yes || got.HasPCP != tristate.Unanswered {
		t.Errorf("unexpected selectors %+v", got)
	}
	if got.Evaluator == nil || got.Evaluator.Name != "Dr. Osei" {
		t.Errorf("evaluator not mapped: %+v", got.Evaluator)
	}
}
