package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/internal/platform/auth"
	"github.com/ehr/intake/internal/platform/db"
)

// Request describes a handler call made without the middleware chain.
type Request struct {
	Method         string
	Target         string
	Body           string
	ContentType    string
	OrganizationID uuid.UUID
	UserID         string
	Roles          []string
	Params         map[string]string
}

// NewContext builds an echo context carrying the organization and identity
// the middleware chain would have resolved.
func NewContext(r Request) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()

	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}
	target := r.Target
	if target == "" {
		target = "/"
	}
	req := httptest.NewRequest(r.Method, target, body)
	if r.Body != "" {
		ct := r.ContentType
		if ct == "" {
			ct = echo.MIMEApplicationJSON
		}
		req.Header.Set(echo.HeaderContentType, ct)
	}

	ctx := req.Context()
	if r.OrganizationID != uuid.Nil {
		ctx = db.WithOrganization(ctx, r.OrganizationID)
	}
	if r.UserID != "" || len(r.Roles) > 0 {
		ctx = auth.WithIdentity(ctx, r.UserID, r.Roles...)
	}
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if r.OrganizationID != uuid.Nil {
		c.Set("organization_id", r.OrganizationID.String())
	}

	if len(r.Params) > 0 {
		names := make([]string, 0, len(r.Params))
		values := make([]string, 0, len(r.Params))
		for k, v := range r.Params {
			names = append(names, k)
			values = append(values, v)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

// StatusOf returns the HTTP status an error would be rendered with by
// echo's error handling: the code of an *echo.HTTPError, else 500.
func StatusOf(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	if err == nil {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
