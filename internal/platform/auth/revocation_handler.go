package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type revokeTokenRequest struct {
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RegisterRevocationRoutes mounts the admin-only revocation endpoints.
func RegisterRevocationRoutes(g *echo.Group, store Revocations) {
	admin := g.Group("/auth/revocations", RequireRole(RoleAdmin))
	admin.POST("", handleRevokeToken(store))
	admin.POST("/users/:user", handleRevokeUser(store))
}

func handleRevokeToken(store Revocations) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req revokeTokenRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.JTI == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "jti is required")
		}
		if req.ExpiresAt.IsZero() {
			req.ExpiresAt = time.Now().Add(userCutoffTTL)
		}
		if err := store.Revoke(c.Request().Context(), req.JTI, req.ExpiresAt); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// handleRevokeUser invalidates every token issued to the user so far.
func handleRevokeUser(store Revocations) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := c.Param("user")
		if userID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "user is required")
		}
		if err := store.RevokeUser(c.Request().Context(), userID, time.Now()); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}
