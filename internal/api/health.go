package api

import (
	"net/http"

	"github.com/lucasdpassos/pokedex-assistant/internal/log"
	"github.com/lucasdpassos/pokedex-assistant/internal/tools"
)

// healthHandler exposes the tool orchestrator's health verdict and metrics
// snapshot.
type healthHandler struct {
	exec   *tools.Executor
	logger log.Logger
}

// health reports the orchestrator verdict. Healthy and degraded return 200
// so a wobbly upstream does not get the process restarted; only unhealthy
// returns 503.
func (h *healthHandler) health(w http.ResponseWriter, _ *http.Request) {
	verdict := h.exec.Health()

	status := http.StatusOK
	if verdict.Status == tools.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, verdict, h.logger)
}

// metrics returns the cumulative execution counters.
func (h *healthHandler) metrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.exec.Metrics(), h.logger)
}
