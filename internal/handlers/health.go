package handlers

import (
	"net/http"
	"time"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/platform/httpx"
	"github.com/kiosko/pos/internal/services"
)

// HealthHandlers exposes liveness and readiness endpoints.
type HealthHandlers struct {
	system services.SystemService
	clock  func() time.Time
}

// NewHealthHandlers constructs health handlers. A nil system service keeps
// /healthz functional and degrades /readyz to a liveness check.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{
		system: system,
		clock:  time.Now,
	}
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

type healthPayload struct {
	Status      string                        `json:"status"`
	Timestamp   string                        `json:"timestamp"`
	Version     string                        `json:"version,omitempty"`
	CommitSHA   string                        `json:"commit,omitempty"`
	Environment string                        `json:"environment,omitempty"`
	Uptime      string                        `json:"uptime,omitempty"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
}

// Healthz reports process liveness. It never touches dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, healthPayload{
		Status:    string(domain.HealthStatusOK),
		Timestamp: h.clock().UTC().Format(time.RFC3339),
	})
}

// Readyz probes backing dependencies and reports aggregate readiness. A
// degraded report still serves traffic; only a hard failure returns 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("health_unavailable", "health report could not be generated", http.StatusServiceUnavailable))
		return
	}

	payload := healthPayload{
		Status:      string(report.Status),
		Timestamp:   report.GeneratedAt.UTC().Format(time.RFC3339),
		Version:     report.Version,
		CommitSHA:   report.CommitSHA,
		Environment: report.Environment,
		Checks:      make(map[string]healthCheckPayload, len(report.Checks)),
	}
	if report.Uptime > 0 {
		payload.Uptime = report.Uptime.String()
	}
	for name, check := range report.Checks {
		entry := healthCheckPayload{
			Status:    string(check.Status),
			Detail:    check.Detail,
			LatencyMS: check.Latency.Milliseconds(),
		}
		if check.Error != "" {
			entry.Error = check.Error
		}
		payload.Checks[name] = entry
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, payload)
}
