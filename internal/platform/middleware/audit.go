package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/platform/auth"
)

// AuditEntry records who touched which intake session and how. Field values
// are never included.
type AuditEntry struct {
	UserID         string
	UserRoles      []string
	OrganizationID string
	SessionID      string
	Section        string
	Action         string // read, create, update, delete
	IPAddress      string
	UserAgent      string
	Path           string
	Method         string
	Timestamp      time.Time
	RequestID      string
	StatusCode     int
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// Audit logs PHI access for every intake API and wizard request and hands
// the entry to the recorder when one is configured.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}

			ctx := req.Context()
			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: status,
				UserID:     auth.UserIDFromContext(ctx),
				UserRoles:  auth.RolesFromContext(ctx),
				Action:     httpMethodToAction(req.Method),
			}
			entry.RequestID, _ = c.Get("request_id").(string)
			entry.OrganizationID, _ = c.Get("organization_id").(string)
			entry.SessionID, entry.Section = extractSessionTarget(path)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(context.WithoutCancel(ctx), entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "hipaa_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("organization_id", entry.OrganizationID).
				Str("session_id", entry.SessionID).
				Str("section", entry.Section).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/intake/") || strings.HasPrefix(path, "/intake/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractSessionTarget pulls the session ID and section out of
//
//	/api/v1/intake/sessions/<session>/<section>/...
//	/intake/<session>/<section>
func extractSessionTarget(path string) (sessionID, section string) {
	var rest string
	switch {
	case strings.HasPrefix(path, "/api/v1/intake/sessions/"):
		rest = strings.TrimPrefix(path, "/api/v1/intake/sessions/")
	case strings.HasPrefix(path, "/intake/"):
		rest = strings.TrimPrefix(path, "/intake/")
	default:
		return "", ""
	}

	segments := strings.Split(rest, "/")
	if len(segments) == 0 {
		return "", ""
	}
	if _, err := uuid.Parse(segments[0]); err != nil {
		return "", ""
	}
	sessionID = segments[0]
	if len(segments) > 1 {
		section = segments[1]
	}
	return sessionID, section
}
