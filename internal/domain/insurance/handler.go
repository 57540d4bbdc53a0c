package insurance

import (
	"net/http"

	"github.com/google/uuid"
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
	read := auth.RequireRole(auth.RoleIntakeStaff, auth.RoleClinician)
	write := auth.RequireRole(auth.RoleIntakeStaff)

	g := api.Group("/intake/sessions/:session/insurance")
	g.GET("", h.GetSnapshot, read)
	g.GET("/coverages", h.ListCoverages, read)
	g.PUT("/eligibility", h.UpsertEligibility, write)
	g.POST("/coverages", h.SaveCoverage, write)
	g.DELETE("/coverages/:id", h.DeleteCoverage, write)
}

func (h *Handler) GetSnapshot(c echo.Context) error {
	sessionID, orgID, err := intake.RequestScope(c)
	if err != nil {
		return err
	}
	snap, err := h.svc.Snapshot(c.Request().Context(), sessionID, orgID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) ListCoverages(c echo.Context) error {
	sessionID, orgID, err := intake.RequestScope(c)
	if err != nil {
		return err
	}
	snap, err := h.svc.Snapshot(c.Request().Context(), sessionID, orgID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap.Coverages)
}

func (h *Handler) UpsertEligibility(c echo.Context) error {
	sessionID, orgID, err := intake.RequestScope(c)
	if err != nil {
		return err
	}
	var in Eligibility
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.UpsertEligibility(c.Request().Context(), sessionID, orgID, &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) SaveCoverage(c echo.Context) error {
	sessionID, orgID, err := intake.RequestScope(c)
	if err != nil {
		return err
	}
	var in Coverage
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.SaveCoverage(c.Request().Context(), sessionID, orgID, &in)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if in.ID == nil {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

func (h *Handler) DeleteCoverage(c echo.Context) error {
	sessionID, orgID, err := intake.RequestScope(c)
	if err != nil {
		return err
	}
	coverageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid coverage id")
	}
	deleted, err := h.svc.DeleteCoverage(c.Request().Context(), sessionID, orgID, coverageID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, intake.DeleteResult{Deleted: deleted})
}
