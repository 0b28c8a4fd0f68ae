package observe

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout is the maximum time a single readiness check may take before
// its context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check. Check returns nil when the dependency is
// healthy.
type Checker struct {
	// Name is a short label for this check (e.g. "storage", "archive"). It
	// appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// healthResult is the JSON response body for health endpoints.
type healthResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler serves /healthz and /readyz. Safe for concurrent use; the
// checker list is fixed at construction time.
type HealthHandler struct {
	checkers []Checker
}

// NewHealthHandler creates a [HealthHandler] evaluating the given checkers
// sequentially on each /readyz request.
func NewHealthHandler(checkers ...Checker) *HealthHandler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &HealthHandler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK.
func (h *HealthHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResult{Status: "ok"})
}

// Readyz runs every registered checker and returns 200 only when all pass.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := healthResult{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			res.Status = "fail"
			res.Checks[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[c.Name] = "ok"
	}

	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
