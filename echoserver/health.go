package echoserver

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status              string `json:"status"`
	Latency             string `json:"latency"`
	Message             string `json:"message,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures,omitempty"`
}

// HealthResponse is the body of /livez and /readyz.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Service  string                 `json:"service"`
	Uptime   string                 `json:"uptime"`
	Hostname string                 `json:"hostname,omitempty"`
	Checks   map[string]CheckResult `json:"checks,omitempty"`
}

type checkState struct {
	check    HealthCheck
	failures int
}

// health serves liveness and readiness. Liveness has no checks: a process
// that answers is alive.
type health struct {
	serviceName string
	hostname    string
	started     time.Time

	mu     sync.Mutex
	checks map[string]*checkState
}

func newHealth(serviceName string) *health {
	hostname, _ := os.Hostname()
	return &health{
		serviceName: serviceName,
		hostname:    hostname,
		started:     time.Now(),
		checks:      make(map[string]*checkState),
	}
}

func (h *health) addReadinessCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = &checkState{check: check}
}

func (h *health) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.response("ok", nil))
}

func (h *health) ready(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	results := make(map[string]CheckResult, len(h.checks))
	status, code := "ok", http.StatusOK

	for name, state := range h.checks {
		start := time.Now()
		err := state.check(r.Context())
		result := CheckResult{Status: "ok", Latency: time.Since(start).String()}

		if err != nil {
			state.failures++
			result.Status = "fail"
			result.Message = err.Error()
			result.ConsecutiveFailures = state.failures
			status, code = "fail", http.StatusServiceUnavailable
		} else {
			state.failures = 0
		}
		results[name] = result
	}

	writeJSON(w, code, h.response(status, results))
}

func (h *health) response(status string, checks map[string]CheckResult) HealthResponse {
	return HealthResponse{
		Status:   status,
		Service:  h.serviceName,
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Hostname: h.hostname,
		Checks:   checks,
	}
}
