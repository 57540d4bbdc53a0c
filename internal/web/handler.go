// Package web serves the intake wizard as server-rendered HTML pages, one
// per step, on top of the same services as the JSON API.
package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/clinical"
	"github.com/ehr/intake/internal/domain/demographics"
	"github.com/ehr/intake/internal/domain/insurance"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/domain/medications"
	"github.com/ehr/intake/internal/domain/providers"
	"github.com/ehr/intake/internal/domain/referrals"
	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/platform/auth"
	"github.com/ehr/intake/internal/platform/draftstore"
	"github.com/ehr/intake/internal/wizard"
)

// Services are the step services the wizard pages drive.
type Services struct {
	Sessions     *intake.Service
	Demographics *demographics.Service
	Insurance    *insurance.Service
	Providers    *providers.Service
	Medications  *medications.Service
	Referrals    *referrals.Service
	Clinical     *clinical.Service
}

type Handler struct {
	sessions *intake.Service
	pages    map[string]page
	renderer *Renderer
	decoder  *schema.Decoder
	drafts   draftstore.Store
	logger   zerolog.Logger
}

func NewHandler(svcs Services, drafts draftstore.Store, logger zerolog.Logger) (*Handler, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	h := &Handler{
		sessions: svcs.Sessions,
		renderer: renderer,
		decoder:  newDecoder(),
		drafts:   drafts,
		logger:   logger,
	}
	h.pages = map[string]page{
		intake.StepDemographics: newFormPage[demographics.Demographics](intake.StepDemographics, svcs.Demographics, h,
			list[demographics.Demographics, demographics.Phone]{
				field: "phones",
				max:   5,
				items: func(d *demographics.Demographics) *[]demographics.Phone { return &d.Phones },
			}),
		intake.StepInsurance: newFormPage[insuranceForm](intake.StepInsurance, insuranceStep{svc: svcs.Insurance}, h,
			list[insuranceForm, insurance.Coverage]{
				field:    "coverages",
				max:      10,
				items:    func(f *insuranceForm) *[]insurance.Coverage { return &f.Coverages },
				onRemove: removeCoverages,
			}),
		intake.StepProviders: newFormPage[providers.MedicalProviders](intake.StepProviders, svcs.Providers, h),
		intake.StepMedications: newFormPage[medications.MedicationProfile](intake.StepMedications, svcs.Medications, h,
			list[medications.MedicationProfile, medications.Medication]{
				field: "medications",
				max:   30,
				items: func(m *medications.MedicationProfile) *[]medications.Medication { return &m.Medications },
			}),
		intake.StepReferrals: newFormPage[referrals.Referral](intake.StepReferrals, svcs.Referrals, h),
		intake.StepClinical:  newFormPage[clinicalForm](intake.StepClinical, clinicalStep{svc: svcs.Clinical}, h),
	}
	return h, nil
}

func removeCoverages(f *insuranceForm, removed []insurance.Coverage) {
	f.Removed = f.Removed[:0]
	for _, c := range removed {
		if c.ID != nil {
			f.Removed = append(f.Removed, *c.ID)
		}
	}
}

// RegisterStatic serves the wizard's script and stylesheet under /static.
func RegisterStatic(e *echo.Echo) {
	e.StaticFS("/static", echo.MustSubFS(staticFS, "static"))
}

// RegisterRoutes mounts the wizard pages on the /intake group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := auth.RequireRole(auth.RoleIntakeStaff, auth.RoleClinician)
	g.GET("/new", h.NewIntake, auth.RequireRole(auth.RoleIntakeStaff))
	g.GET("/:session/:step", h.ShowStep, read)
	g.POST("/:session/:step", h.SubmitStep, read)
}

// NewIntake opens a session and starts the new-patient flow, which skips
// loading the first step.
func (h *Handler) NewIntake(c echo.Context) error {
	ctx := c.Request().Context()
	orgID, err := intake.OrganizationScope(c)
	if err != nil {
		return err
	}
	s, err := h.sessions.CreateSession(ctx, orgID, auth.UserIDFromContext(ctx))
	if err != nil {
		return h.failure(c, err)
	}
	return c.Redirect(http.StatusSeeOther, stepURL(s.SessionID.String(), intake.StepDemographics)+"?new=1")
}

func (h *Handler) ShowStep(c echo.Context) error {
	sessionID, orgID, err := intake.RequestScope(c)
	if err != nil {
		return err
	}
	sc := scope{sessionID: sessionID, organizationID: orgID}
	step := c.Param("step")
	if step == "complete" {
		return h.render(c, sc, step, &view{Complete: true, Phase: wizard.PhaseSuccess})
	}
	p, ok := h.pages[step]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown step")
	}
	v, err := p.show(c.Request().Context(), sc, c.QueryParam("new") == "1")
	if err != nil {
		return h.failure(c, err)
	}
	return h.render(c, sc, step, v)
}

func (h *Handler) SubmitStep(c echo.Context) error {
	sessionID, orgID, err := intake.RequestScope(c)
	if err != nil {
		return err
	}
	sc := scope{sessionID: sessionID, organizationID: orgID}
	step := c.Param("step")
	p, ok := h.pages[step]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown step")
	}
	if !canWrite(c, step) {
		return echo.NewHTTPError(http.StatusForbidden, "required role: "+auth.RoleIntakeStaff)
	}

	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	act, err := parseAction(form.Get("_action"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	v, err := p.submit(c.Request().Context(), sc, act, formValues(form), form.Get("_retry") == "1")
	if err != nil {
		var conv schema.MultiError
		if errors.As(err, &conv) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return h.failure(c, err)
	}
	if v.Redirect != "" {
		return c.Redirect(http.StatusSeeOther, stepURL(sessionID.String(), v.Redirect))
	}
	return h.render(c, sc, step, v)
}

// canWrite allows clinicians to save the clinical step only.
func canWrite(c echo.Context, step string) bool {
	roles := auth.RolesFromContext(c.Request().Context())
	if step == intake.StepClinical {
		return auth.HasAnyRole(roles, auth.RoleIntakeStaff, auth.RoleClinician)
	}
	return auth.HasAnyRole(roles, auth.RoleIntakeStaff)
}

func (h *Handler) render(c echo.Context, sc scope, step string, v *view) error {
	ctx := c.Request().Context()
	current := intake.StepDemographics
	if s, err := h.sessions.GetSession(ctx, sc.sessionID, sc.organizationID); err == nil {
		current = s.CurrentStep
		if s.Status == intake.StatusCompleted {
			current = intake.Steps[len(intake.Steps)-1]
		}
	} else if !apperr.Is(err, apperr.CodeNotFound) {
		return h.failure(c, err)
	}

	sid := sc.sessionID.String()
	v.Step = step
	v.Title = stepTitles[step]
	if step == "complete" {
		v.Title = "Intake complete"
	}
	v.Action = stepURL(sid, step)
	if prev := intake.PreviousStep(step); prev != "" {
		v.Previous = stepURL(sid, prev)
	}
	_, v.Last = intake.NextStep(step)
	for i, s := range intake.Steps {
		v.Steps = append(v.Steps, stepLink{
			Title:   stepTitles[s],
			URL:     stepURL(sid, s),
			Current: s == step,
			Reached: i <= intake.StepIndex(current),
		})
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, step, v, c); err != nil {
		return fmt.Errorf("render %s: %w", step, err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// failure logs err and shows the generic message; nothing about the cause
// reaches the page.
func (h *Handler) failure(c echo.Context, err error) error {
	h.logger.Error().Err(err).
		Str("path", c.Path()).
		Str("code", string(apperr.CodeOf(err))).
		Msg("intake page failed")
	return c.HTML(apperr.HTTPStatus(apperr.CodeOf(err)), "<p role=\"alert\">"+apperr.GenericMessage+"</p>")
}

func stepURL(sessionID, step string) string {
	return "/intake/" + sessionID + "/" + step
}
