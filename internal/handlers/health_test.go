package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(_ context.Context) (services.SystemHealthReport, error) {
	if s.err != nil {
		return services.SystemHealthReport{}, s.err
	}
	return s.report, nil
}

func TestHealthzAlwaysOK(t *testing.T) {
	handlers := NewHealthHandlers(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handlers.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload healthPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("expected ok, got %q", payload.Status)
	}
}

func TestReadyzDegradedStillServes(t *testing.T) {
	handlers := NewHealthHandlers(&stubSystemService{report: services.SystemHealthReport{
		Status:      domain.HealthStatusDegraded,
		GeneratedAt: time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC),
		Version:     "1.4.0",
		Checks: map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
			"pubsub":    {Status: domain.HealthStatusDegraded, Detail: "slow publish", Latency: 480 * time.Millisecond},
		},
	}})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handlers.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for degraded, got %d", rec.Code)
	}
	var payload healthPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "degraded" || payload.Version != "1.4.0" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Checks["pubsub"].Detail != "slow publish" {
		t.Fatalf("unexpected checks %+v", payload.Checks)
	}
}

func TestReadyzHardFailureReturns503(t *testing.T) {
	handlers := NewHealthHandlers(&stubSystemService{report: services.SystemHealthReport{
		Status: domain.HealthStatusError,
		Checks: map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusError, Error: "connection refused"},
		},
	}})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handlers.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestReadyzReportErrorReturns503(t *testing.T) {
	handlers := NewHealthHandlers(&stubSystemService{err: errors.New("collector broken")})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handlers.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
