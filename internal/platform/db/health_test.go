package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestPoolStats_JSONTags(t *testing.T) {
	stats := PoolStats{TotalConns: 1, MaxConns: 10, AcquireCount: 50, AcquireDuration: "250ms", Healthy: true}

	raw, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "acquire_count", "acquire_duration", "healthy"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected key %q in %s", key, raw)
		}
	}
}

func TestHealthHandler_AllHealthy(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := HealthHandler(nil, Check{Name: "redis", Ping: func(context.Context) error { return nil }})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
}

func TestHealthHandler_FailingDependency(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := HealthHandler(nil,
		Check{Name: "redis", Ping: func(context.Context) error { return nil }},
		Check{Name: "rabbitmq", Ping: func(context.Context) error { return errors.New("dial tcp 10.0.0.5:5672: refused") }},
		Check{Name: "skipped"},
	)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %s", body.Status)
	}
	if body.Dependencies["rabbitmq"] != "unreachable" || body.Dependencies["redis"] != "ok" {
		t.Errorf("unexpected dependencies %+v", body.Dependencies)
	}
	if _, ok := body.Dependencies["skipped"]; ok {
		t.Error("checks without a probe should be ignored")
	}
}
