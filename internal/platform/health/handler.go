// Package health serves the backend's health endpoints. Every answer uses
// the same envelope as the verification endpoints.
package health

import (
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"kycflow/internal/transport/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CheckFunc reports whether a dependency of the backend can serve requests.
type CheckFunc func() error

// Handler serves /health, /health/live and /health/ready.
type Handler struct {
	startTime   time.Time
	environment string
	now         func() time.Time

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// New creates a Handler with no readiness checks.
func New(environment string) *Handler {
	return &Handler{
		startTime:   time.Now(),
		environment: environment,
		now:         time.Now,
		checks:      make(map[string]CheckFunc),
	}
}

// RegisterCheck adds a named readiness check. A later check with the same
// name replaces the earlier one.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Register mounts the health routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

// Status is the payload of /health.
type Status struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Timestamp     string `json:"timestamp"`
}

// HandleStatus reports version and uptime. The client's Health call only
// looks at the status code.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, Status{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(h.now().Sub(h.startTime).Seconds()),
		Timestamp:     h.now().UTC().Format(time.RFC3339),
	})
}

// HandleLiveness answers 200 while the process serves requests.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, map[string]string{"status": "alive"})
}

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Name  string `json:"name"`
	Up    bool   `json:"up"`
	Error string `json:"error,omitempty"`
}

// Readiness is the payload of /health/ready.
type Readiness struct {
	Ready  bool          `json:"ready"`
	Checks []CheckResult `json:"checks"`
}

// HandleReadiness runs every registered check in name order. When any fails
// it answers 503 with a failure envelope naming them; the check results
// still travel in data.
func (h *Handler) HandleReadiness(w http.ResponseWriter, _ *http.Request) {
	report := h.readiness()
	if report.Ready {
		httputil.WriteOK(w, report)
		return
	}

	var down []string
	for _, c := range report.Checks {
		if !c.Up {
			down = append(down, c.Name)
		}
	}
	httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.Envelope{
		Success:   false,
		Data:      report,
		Message:   "not ready: " + strings.Join(down, ", "),
		ErrorCode: httputil.CodeUnavailable,
	})
}

func (h *Handler) readiness() Readiness {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, check := range h.checks {
		names = append(names, name)
		checks[name] = check
	}
	h.mu.RUnlock()
	slices.Sort(names)

	report := Readiness{Ready: true, Checks: make([]CheckResult, 0, len(names))}
	for _, name := range names {
		result := CheckResult{Name: name, Up: true}
		if err := checks[name](); err != nil {
			result.Up = false
			result.Error = err.Error()
			report.Ready = false
		}
		report.Checks = append(report.Checks, result)
	}
	return report
}
