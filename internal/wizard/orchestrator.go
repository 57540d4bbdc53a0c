package wizard

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/validation"
)

// StepService is the load/save pair every intake step service exposes.
type StepService[T any] interface {
	Load(ctx context.Context, sessionID, organizationID uuid.UUID) (*T, error)
	Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *T) (*intake.SaveResult, error)
}

// State is what a step form renders: the current phase, the data to fill
// the inputs with and any messages to show.
type State[T any] struct {
	Step        string
	Phase       Phase
	Data        *T
	FieldErrors validation.Errors
	Message     string
	NextStep    string
	Last        bool
}

// Orchestrator runs the load and submit flows of one step.
type Orchestrator[T any] struct {
	step     string
	svc      StepService[T]
	defaults func() *T
	logger   zerolog.Logger
}

func NewOrchestrator[T any](step string, svc StepService[T], defaults func() *T, logger zerolog.Logger) *Orchestrator[T] {
	if defaults == nil {
		defaults = func() *T { return new(T) }
	}
	return &Orchestrator[T]{step: step, svc: svc, defaults: defaults, logger: logger}
}

func (o *Orchestrator[T]) Step() string { return o.step }

// Load hydrates the form. A new patient skips the fetch; NOT_FOUND yields
// the defaults. Any other failure leaves the machine in failure with the
// generic message.
func (o *Orchestrator[T]) Load(ctx context.Context, sessionID, organizationID uuid.UUID, newPatient bool) *State[T] {
	var m Machine
	st := &State[T]{Step: o.step}
	if newPatient {
		_ = m.To(PhaseReady)
		st.Phase, st.Data = m.Phase(), o.defaults()
		return st
	}

	_ = m.To(PhaseLoading)
	data, err := o.svc.Load(ctx, sessionID, organizationID)
	switch {
	case err == nil:
		st.Data = data
		_ = m.To(PhaseReady)
	case apperr.Is(err, apperr.CodeNotFound):
		st.Data = o.defaults()
		_ = m.To(PhaseReady)
	default:
		o.logFailure(err, sessionID, "load")
		st.Data = o.defaults()
		st.Message = apperr.GenericMessage
		_ = m.To(PhaseFailure)
	}
	st.Phase = m.Phase()
	return st
}

// Submit saves in. retry is set when the previous attempt failed, which
// starts the machine from failure instead of ready. Validation failures go
// back to ready with field messages.
func (o *Orchestrator[T]) Submit(ctx context.Context, sessionID, organizationID uuid.UUID, in *T, retry bool) *State[T] {
	m := Machine{phase: PhaseReady}
	if retry {
		m.phase = PhaseFailure
	}
	st := &State[T]{Step: o.step, Data: in}
	_ = m.To(PhaseSaving)

	_, err := o.svc.Save(ctx, sessionID, organizationID, in)
	var verrs validation.Errors
	switch {
	case err == nil:
		_ = m.To(PhaseSuccess)
		st.NextStep, st.Last = intake.NextStep(o.step)
	case errors.As(err, &verrs):
		st.FieldErrors = verrs
		_ = m.To(PhaseReady)
	default:
		o.logFailure(err, sessionID, "save")
		st.Message = apperr.GenericMessage
		_ = m.To(PhaseFailure)
	}
	st.Phase = m.Phase()
	return st
}

func (o *Orchestrator[T]) logFailure(err error, sessionID uuid.UUID, action string) {
	o.logger.Error().Err(err).
		Str("step", o.step).
		Str("action", action).
		Str("session_id", sessionID.String()).
		Str("code", string(apperr.CodeOf(err))).
		Msg("intake step failed")
}
