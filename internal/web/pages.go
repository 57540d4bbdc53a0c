package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/draftstore"
	"github.com/ehr/intake/internal/wizard"
)

var pageNames = append(append([]string{}, intake.Steps...), "complete")

var stepTitles = map[string]string{
	intake.StepDemographics: "Demographics",
	intake.StepInsurance:    "Insurance",
	intake.StepProviders:    "Medical providers",
	intake.StepMedications:  "Medications",
	intake.StepReferrals:    "Referrals",
	intake.StepClinical:     "Clinical assessment",
}

// page is one wizard step as seen by the HTML handlers.
type page interface {
	show(ctx context.Context, scope scope, newPatient bool) (*view, error)
	submit(ctx context.Context, scope scope, act action, values map[string][]string, retry bool) (*view, error)
}

type scope struct {
	sessionID      uuid.UUID
	organizationID uuid.UUID
}

func (s scope) draftKey(step, list string) draftstore.Key {
	return draftstore.Key{OrganizationID: s.organizationID, SessionID: s.sessionID, Step: step + "." + list}
}

// view is the data every page template renders.
type view struct {
	Title    string
	Step     string
	Action   string
	Previous string
	Steps    []stepLink
	Phase    wizard.Phase
	Busy     bool
	Retry    bool
	Last     bool
	Complete bool
	Form     any
	Errors   map[string]string
	Message  string

	// Redirect is set after a successful save.
	Redirect string
}

type stepLink struct {
	Title   string
	URL     string
	Current bool
	Reached bool
}

// listSection edits one dynamic list of form T through a draft list kept
// in the draft store.
type listSection[T any] interface {
	name() string
	seed(ctx context.Context, store draftstore.Store, key draftstore.Key, form *T) error
	edit(ctx context.Context, store draftstore.Store, key draftstore.Key, form *T, act action) error
}

type list[T, R any] struct {
	field    string
	max      int
	items    func(*T) *[]R
	onRemove func(form *T, removed []R)
}

func (l list[T, R]) name() string { return l.field }

func (l list[T, R]) seed(ctx context.Context, store draftstore.Store, key draftstore.Key, form *T) error {
	return wizard.SaveDraft(ctx, store, key, wizard.NewDraftList(*l.items(form), l.max))
}

func (l list[T, R]) edit(ctx context.Context, store draftstore.Store, key draftstore.Key, form *T, act action) error {
	d, ok, err := wizard.LoadDraft[R](ctx, store, key)
	if err != nil {
		return err
	}
	if !ok {
		d = wizard.NewDraftList[R](nil, l.max)
	}
	d.Max = l.max
	d.Sync(*l.items(form))

	switch act.kind {
	case "add":
		var zero R
		if _, err := d.Add(zero); err != nil && !errors.Is(err, wizard.ErrListFull) {
			return err
		}
	case "remove":
		if err := d.Remove(act.index); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	*l.items(form) = d.Values()
	if l.onRemove != nil && len(d.Removed) > 0 {
		l.onRemove(form, d.Removed)
	}
	return wizard.SaveDraft(ctx, store, key, d)
}

// formPage renders and submits a step whose form decodes straight into T.
type formPage[T any] struct {
	step   string
	orch   *wizard.Orchestrator[T]
	drafts draftstore.Store
	decode func(values map[string][]string, dst *T) error
	lists  []listSection[T]
}

func (p *formPage[T]) show(ctx context.Context, sc scope, newPatient bool) (*view, error) {
	st := p.orch.Load(ctx, sc.sessionID, sc.organizationID, newPatient)
	for _, l := range p.lists {
		if err := l.seed(ctx, p.drafts, sc.draftKey(p.step, l.name()), st.Data); err != nil {
			return nil, err
		}
	}
	return p.render(st), nil
}

func (p *formPage[T]) submit(ctx context.Context, sc scope, act action, values map[string][]string, retry bool) (*view, error) {
	in := new(T)
	if err := p.decode(values, in); err != nil {
		return nil, err
	}
	pruneEmpty(in)

	if act.kind != "save" {
		for _, l := range p.lists {
			if l.name() != act.list {
				continue
			}
			if err := l.edit(ctx, p.drafts, sc.draftKey(p.step, l.name()), in, act); err != nil {
				return nil, err
			}
			return p.render(&wizard.State[T]{Step: p.step, Phase: wizard.PhaseReady, Data: in}), nil
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unknown list "+act.list)
	}

	st := p.orch.Submit(ctx, sc.sessionID, sc.organizationID, in, retry)
	if st.Phase == wizard.PhaseSuccess {
		for _, l := range p.lists {
			_ = p.drafts.Delete(ctx, sc.draftKey(p.step, l.name()))
		}
	}
	return p.render(st), nil
}

func (p *formPage[T]) render(st *wizard.State[T]) *view {
	fillEmpty(st.Data)
	v := &view{
		Step:    p.step,
		Phase:   st.Phase,
		Busy:    st.Phase == wizard.PhaseLoading || st.Phase == wizard.PhaseSaving,
		Retry:   st.Phase == wizard.PhaseFailure,
		Form:    st.Data,
		Errors:  st.FieldErrors,
		Message: st.Message,
	}
	if st.Phase == wizard.PhaseSuccess {
		v.Redirect = st.NextStep
		if st.Last {
			v.Redirect = "complete"
		}
	}
	return v
}

func newFormPage[T any](step string, svc wizard.StepService[T], h *Handler, lists ...listSection[T]) *formPage[T] {
	return &formPage[T]{
		step:   step,
		orch:   wizard.NewOrchestrator[T](step, svc, nil, h.logger),
		drafts: h.drafts,
		decode: func(values map[string][]string, dst *T) error { return h.decoder.Decode(dst, values) },
		lists:  lists,
	}
}
