package intake

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/internal/platform/auth"
	"github.com/ehr/intake/internal/platform/db"
	"github.com/ehr/intake/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/intake/sessions", auth.RequireRole(auth.RoleIntakeStaff, auth.RoleClinician))
	read.GET("", h.ListSessions)
	read.GET("/:session", h.GetSession)
	read.GET("/:session/exists", h.SessionExists)

	write := api.Group("/intake/sessions", auth.RequireRole(auth.RoleIntakeStaff))
	write.POST("", h.CreateSession)
	write.DELETE("/:session", h.DeleteSession)
}

func (h *Handler) CreateSession(c echo.Context) error {
	ctx := c.Request().Context()
	orgID, err := OrganizationScope(c)
	if err != nil {
		return err
	}
	s, err := h.svc.CreateSession(ctx, orgID, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetSession(c echo.Context) error {
	sessionID, orgID, err := RequestScope(c)
	if err != nil {
		return err
	}
	s, err := h.svc.GetSession(c.Request().Context(), sessionID, orgID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListSessions(c echo.Context) error {
	orgID, err := OrganizationScope(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSessions(c.Request().Context(), orgID, Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg, c.Request().URL.Path))
}

func (h *Handler) SessionExists(c echo.Context) error {
	sessionID, orgID, err := RequestScope(c)
	if err != nil {
		return err
	}
	ok, err := h.svc.Exists(c.Request().Context(), sessionID, orgID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ExistsResult{Exists: ok})
}

func (h *Handler) DeleteSession(c echo.Context) error {
	sessionID, orgID, err := RequestScope(c)
	if err != nil {
		return err
	}
	deleted, err := h.svc.Delete(c.Request().Context(), sessionID, orgID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DeleteResult{Deleted: deleted})
}

// OrganizationScope returns the organization resolved by the organization
// middleware.
func OrganizationScope(c echo.Context) (uuid.UUID, error) {
	orgID := db.OrganizationFromContext(c.Request().Context())
	if orgID == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "organization is required")
	}
	return orgID, nil
}

// RequestScope returns the :session path parameter and the organization.
func RequestScope(c echo.Context) (sessionID, organizationID uuid.UUID, err error) {
	sessionID, err = uuid.Parse(c.Param("session"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	organizationID, err = OrganizationScope(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return sessionID, organizationID, nil
}
