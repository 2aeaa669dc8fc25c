package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

func readyz(t *testing.T, h *HealthHandler) (int, HealthResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return rec.Code, response
}

func TestHealthHandler_Healthz(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", response.Status)
	}
}

func TestHealthHandler_Readyz_LocalStore(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler(Check{Name: "store", Checker: &mockHealthChecker{}})

	code, response := readyz(t, h)

	if code != http.StatusOK {
		t.Errorf("expected status 200, got %d", code)
	}
	if response.Checks["store"] != "ok" {
		t.Errorf("expected store check 'ok', got %s", response.Checks["store"])
	}
	if len(response.Checks) != 1 {
		t.Errorf("expected only the store check, got %v", response.Checks)
	}
}

func TestHealthHandler_Readyz_AllHealthy(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler(
		Check{Name: "postgres", Checker: &mockHealthChecker{}},
		Check{Name: "redis", Checker: &mockHealthChecker{}},
	)

	code, response := readyz(t, h)

	if code != http.StatusOK {
		t.Errorf("expected status 200, got %d", code)
	}
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", response.Status)
	}
	if response.Checks["postgres"] != "ok" {
		t.Errorf("expected postgres check 'ok', got %s", response.Checks["postgres"])
	}
	if response.Checks["redis"] != "ok" {
		t.Errorf("expected redis check 'ok', got %s", response.Checks["redis"])
	}
}

func TestHealthHandler_Readyz_DatabaseUnhealthy(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler(
		Check{Name: "postgres", Checker: &mockHealthChecker{err: errors.New("connection refused")}},
		Check{Name: "redis", Checker: &mockHealthChecker{}},
	)

	code, response := readyz(t, h)

	if code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", code)
	}
	if response.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got %s", response.Status)
	}
	if !strings.Contains(response.Checks["postgres"], "connection refused") {
		t.Errorf("expected postgres error, got %s", response.Checks["postgres"])
	}
	if response.Checks["redis"] != "ok" {
		t.Errorf("expected redis check 'ok', got %s", response.Checks["redis"])
	}
}

func TestHealthHandler_Readyz_NotConfigured(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler(Check{Name: "redis"})

	code, response := readyz(t, h)

	if code != http.StatusOK {
		t.Errorf("expected status 200, got %d", code)
	}
	if response.Checks["redis"] != "not configured" {
		t.Errorf("expected 'not configured', got %s", response.Checks["redis"])
	}
}
