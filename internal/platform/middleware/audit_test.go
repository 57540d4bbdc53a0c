package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/platform/auth"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(_ context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestContext(method, path string, opts ...func(*http.Request)) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withAuth(userID string, roles ...string) func(*http.Request) {
	return func(req *http.Request) {
		*req = *req.WithContext(auth.WithIdentity(req.Context(), userID, roles...))
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_SectionRead(t *testing.T) {
	rec := &mockRecorder{}
	sessionID := uuid.NewString()

	c, _ := newTestContext(http.MethodGet,
		fmt.Sprintf("/api/v1/intake/sessions/%s/demographics", sessionID),
		withAuth("user-1", auth.RoleIntakeStaff),
	)
	c.Set("request_id", "req-abc")
	c.Set("organization_id", "org-1")

	if err := Audit(zerolog.New(os.Stderr), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 audit entry, got %d", rec.count())
	}

	entry := rec.last()
	if entry.UserID != "user-1" {
		t.Errorf("expected user_id 'user-1', got %q", entry.UserID)
	}
	if entry.SessionID != sessionID || entry.Section != "demographics" {
		t.Errorf("unexpected target %q/%q", entry.SessionID, entry.Section)
	}
	if entry.Action != "read" || entry.RequestID != "req-abc" || entry.OrganizationID != "org-1" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", entry.StatusCode)
	}
}

func TestAudit_WizardPost(t *testing.T) {
	rec := &mockRecorder{}
	sessionID := uuid.NewString()

	c, _ := newTestContext(http.MethodPost, "/intake/"+sessionID+"/insurance", withAuth("user-2"))

	Audit(zerolog.Nop(), rec)(okHandler)(c)

	entry := rec.last()
	if entry.Action != "create" || entry.SessionID != sessionID || entry.Section != "insurance" {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestAudit_StatusFromHTTPError(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodDelete, "/api/v1/intake/sessions/"+uuid.NewString())

	failing := func(c echo.Context) error { return echo.NewHTTPError(http.StatusForbidden, "nope") }
	err := Audit(zerolog.Nop(), rec)(failing)(c)

	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if got := rec.last(); got.StatusCode != http.StatusForbidden || got.Action != "delete" {
		t.Errorf("unexpected entry %+v", got)
	}
}

func TestAudit_SkipsNonIntakePaths(t *testing.T) {
	rec := &mockRecorder{}
	for _, path := range []string{"/health", "/static/intake.css", "/"} {
		c, _ := newTestContext(http.MethodGet, path)
		Audit(zerolog.Nop(), rec)(okHandler)(c)
	}
	if rec.count() != 0 {
		t.Errorf("expected no audit entries, got %d", rec.count())
	}
}

func TestAudit_RecorderFailureDoesNotFailRequest(t *testing.T) {
	rec := &mockRecorder{err: errors.New("insert failed")}
	c, resp := newTestContext(http.MethodGet, "/api/v1/intake/sessions")

	if err := Audit(zerolog.Nop(), rec, nil)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.Code)
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var got AuditEntry
	f := AuditRecorderFunc(func(_ context.Context, e AuditEntry) error {
		got = e
		return nil
	})
	f.RecordAccess(context.Background(), AuditEntry{Action: "update"})
	if got.Action != "update" {
		t.Errorf("expected adapter to forward entry, got %+v", got)
	}
}

func TestExtractSessionTarget(t *testing.T) {
	sid := uuid.NewString()
	tests := []struct {
		path    string
		session string
		section string
	}{
		{"/api/v1/intake/sessions/" + sid + "/insurance/coverages/x", sid, "insurance"},
		{"/api/v1/intake/sessions/" + sid, sid, ""},
		{"/api/v1/intake/sessions", "", ""},
		{"/intake/" + sid + "/referrals", sid, "referrals"},
		{"/intake/new", "", ""},
		{"/health", "", ""},
	}
	for _, tt := range tests {
		s, sec := extractSessionTarget(tt.path)
		if s != tt.session || sec != tt.section {
			t.Errorf("extractSessionTarget(%s) = %q, %q; want %q, %q", tt.path, s, sec, tt.session, tt.section)
		}
	}
}

func TestHTTPMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:    "read",
		http.MethodHead:   "read",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
	}
	for method, want := range tests {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("httpMethodToAction(%s) = %s, want %s", method, got, want)
		}
	}
}
