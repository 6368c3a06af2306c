package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiosko/pos/internal/domain"
)

type stubHealthRepo struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepo) Collect(_ context.Context) (domain.SystemHealthReport, error) {
	if s.err != nil {
		return domain.SystemHealthReport{}, s.err
	}
	return s.report, nil
}

func TestHealthReportAddsBuildMetadata(t *testing.T) {
	started := time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Minute)

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepo{report: domain.SystemHealthReport{
			Status:      domain.HealthStatusOK,
			GeneratedAt: now,
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK, Latency: 10 * time.Millisecond},
			},
		}},
		Clock: func() time.Time { return now },
		Build: BuildInfo{Version: "1.4.0", CommitSHA: "abc1234", Environment: "staging", StartedAt: started},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Version != "1.4.0" || report.CommitSHA != "abc1234" || report.Environment != "staging" {
		t.Fatalf("unexpected build metadata %+v", report)
	}
	if report.Uptime != 90*time.Minute {
		t.Fatalf("expected 90m uptime, got %s", report.Uptime)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("unexpected status %s", report.Status)
	}
}

func TestHealthReportPropagatesCollectorError(t *testing.T) {
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepo{err: errors.New("probe panic")},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	if _, err := svc.HealthReport(context.Background()); err == nil {
		t.Fatal("expected collector error to propagate")
	}
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatal("expected error without health repository")
	}
}
