package api

import (
	"context"
	"net/http"
)

// ReadinessChecker reports whether a backend dependency is reachable.
type ReadinessChecker interface {
	Health(ctx context.Context) error
}

// health is the liveness probe.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness probes the knowledge graph backend. A nil checker means the
// backend has no health endpoint and the process readiness suffices.
func readiness(checker ReadinessChecker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Health(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "not_ready", "knowledge graph not ready")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
}
