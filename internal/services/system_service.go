package services

import (
	"context"
	"errors"
	"time"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/repositories"
)

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Clock            func() time.Time
	Build            BuildInfo
}

type systemService struct {
	healthRepo repositories.HealthRepository
	clock      func() time.Time
	build      BuildInfo
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the utility service behind the health endpoints.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}

	return &systemService{
		healthRepo: deps.HealthRepository,
		clock:      func() time.Time { return clock().UTC() },
		build:      build,
	}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	if ctx == nil {
		return SystemHealthReport{}, errors.New("system service: context is required")
	}

	report, err := s.healthRepo.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.clock()
	generatedAt := report.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = now
	}

	checks := report.Checks
	if checks == nil {
		checks = map[string]domain.SystemHealthCheck{}
	}

	return SystemHealthReport{
		Status:      report.Status,
		Checks:      checks,
		GeneratedAt: generatedAt,
		Version:     s.build.Version,
		CommitSHA:   s.build.CommitSHA,
		Environment: s.build.Environment,
		Uptime:      now.Sub(s.build.StartedAt),
	}, nil
}
