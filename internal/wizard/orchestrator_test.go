package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/validation"
)

type form struct {
	Name string
}

type stubService struct {
	loaded  *form
	loadErr error
	saveErr error
	saved   *form
}

func (s *stubService) Load(context.Context, uuid.UUID, uuid.UUID) (*form, error) {
	return s.loaded, s.loadErr
}

func (s *stubService) Save(_ context.Context, sessionID, _ uuid.UUID, in *form) (*intake.SaveResult, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.saved = in
	return &intake.SaveResult{SessionID: sessionID}, nil
}

func newOrchestrator(svc *stubService) *Orchestrator[form] {
	return NewOrchestrator[form](intake.StepProviders, svc, func() *form { return &form{Name: "default"} }, zerolog.Nop())
}

func TestOrchestrator_Load(t *testing.T) {
	sid, org := uuid.New(), uuid.New()
	tests := []struct {
		name       string
		svc        *stubService
		newPatient bool
		phase      Phase
		data       string
		message    string
	}{
		{"existing data", &stubService{loaded: &form{Name: "stored"}}, false, PhaseReady, "stored", ""},
		{"not found yields defaults", &stubService{loadErr: apperr.NotFound("x")}, false, PhaseReady, "default", ""},
		{"new patient skips fetch", &stubService{loadErr: errors.New("not called")}, true, PhaseReady, "default", ""},
		{"failure", &stubService{loadErr: apperr.New("x", apperr.CodeUnknown)}, false, PhaseFailure, "default", apperr.GenericMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newOrchestrator(tt.svc).Load(context.Background(), sid, org, tt.newPatient)
			if st.Phase != tt.phase || st.Data.Name != tt.data || st.Message != tt.message {
				t.Errorf("got phase=%s data=%q message=%q", st.Phase, st.Data.Name, st.Message)
			}
		})
	}
}

func TestOrchestrator_Submit(t *testing.T) {
	sid, org := uuid.New(), uuid.New()

	svc := &stubService{}
	st := newOrchestrator(svc).Submit(context.Background(), sid, org, &form{Name: "x"}, false)
	if st.Phase != PhaseSuccess || st.NextStep != intake.StepMedications || st.Last {
		t.Errorf("unexpected state %+v", st)
	}
	if svc.saved == nil || svc.saved.Name != "x" {
		t.Error("form not saved")
	}

	svc = &stubService{saveErr: validation.Errors{"name": "is required"}}
	st = newOrchestrator(svc).Submit(context.Background(), sid, org, &form{}, false)
	if st.Phase != PhaseReady || st.FieldErrors["name"] != "is required" || st.Message != "" {
		t.Errorf("unexpected state %+v", st)
	}

	svc = &stubService{saveErr: apperr.New("x", apperr.CodeConflict)}
	st = newOrchestrator(svc).Submit(context.Background(), sid, org, &form{}, true)
	if st.Phase != PhaseFailure || st.Message != apperr.GenericMessage {
		t.Errorf("unexpected state %+v", st)
	}
}

func TestOrchestrator_SubmitLastStep(t *testing.T) {
	o := NewOrchestrator[form](intake.StepClinical, &stubService{}, nil, zerolog.Nop())
	st := o.Submit(context.Background(), uuid.New(), uuid.New(), &form{}, false)
	if !st.Last || st.Phase != PhaseSuccess {
		t.Errorf("unexpected state %+v", st)
	}
}
