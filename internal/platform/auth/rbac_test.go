package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required []string
		allowed  bool
	}{
		{"matching role", []string{RoleIntakeStaff}, []string{RoleIntakeStaff, RoleClinician}, true},
		{"admin bypass", []string{RoleAdmin}, []string{RoleClinician}, true},
		{"missing role", []string{RoleIntakeStaff}, []string{RoleClinician}, false},
		{"no roles", nil, []string{RoleIntakeStaff}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithIdentity(context.Background(), "user-1", tt.granted...))
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := RequireRole(tt.required...)(okHandler)(c)
			if tt.allowed {
				if err != nil {
					t.Fatalf("expected access, got %v", err)
				}
				return
			}
			expectStatus(t, err, http.StatusForbidden)
		})
	}
}

func TestHasAnyRole(t *testing.T) {
	if HasAnyRole(nil) {
		t.Error("no roles should never match")
	}
	if !HasAnyRole([]string{RoleAdmin}) {
		t.Error("admin should match even with no requirement")
	}
	if HasAnyRole([]string{RoleClinician}, RoleIntakeStaff) {
		t.Error("clinician should not satisfy intake_staff")
	}
}
