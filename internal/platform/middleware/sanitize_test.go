package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		header  [2]string
		blocked bool
	}{
		{"clean", "/api/v1/intake/sessions?limit=10", [2]string{}, false},
		{"traversal", "/static/..%2f..%2fetc/passwd", [2]string{}, true},
		{"encoded traversal", "/static/%2e%2e/secret", [2]string{}, true},
		{"null byte", "/api/v1/intake/sessions?q=a%00b", [2]string{}, true},
		{"script", "/intake/new?next=%3Cscript%3Ealert(1)%3C/script%3E", [2]string{}, true},
		{"sql is logged only", "/api/v1/intake/sessions?q=1%3D1", [2]string{}, false},
		{"oversized header", "/", [2]string{"X-Note", string(make([]byte, maxHeaderValueSize+1))}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header[0] != "" {
				req.Header.Set(tt.header[0], tt.header[1])
			}
			c := e.NewContext(req, httptest.NewRecorder())

			err := Sanitize(zerolog.Nop())(okHandler)(c)
			if tt.blocked {
				httpErr, ok := err.(*echo.HTTPError)
				if !ok || httpErr.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	tests := map[string]string{
		"  Jane  ":          "Jane",
		"Ja\x00ne":          "Jane",
		"line1\nline2":      "line1\nline2",
		"bell\x07char":      "bellchar",
		"\ttabbed value\t ": "tabbed value",
	}
	for in, want := range tests {
		if got := SanitizeString(in); got != want {
			t.Errorf("SanitizeString(%q) = %q, want %q", in, got, want)
		}
	}
}
