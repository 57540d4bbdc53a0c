package medications

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/intake/sessions/:session/medications")
	g.GET("", h.Load, auth.RequireRole(auth.RoleIntakeStaff, auth.RoleClinician))
	g.PUT("", h.Save, auth.RequireRole(auth.RoleIntakeStaff))
}

func (h *Handler) Load(c echo.Context) error {
	sessionID, orgID, err := intake.RequestScope(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Load(c.Request().Context(), sessionID, orgID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Save(c echo.Context) error {
	sessionID, orgID, err := intake.RequestScope(c)
	if err != nil {
		return err
	}
	var in MedicationProfile
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.Save(c.Request().Context(), sessionID, orgID, &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
