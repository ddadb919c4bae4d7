package health

import (
	"net/http"

	"github.com/waploaj/DyAPI/internal/util"
)

// Live answers the liveness probe.
func Live(w http.ResponseWriter, _ *http.Request) {
	util.JSON(w, map[string]string{"status": "ok"})
}

// Ready runs the probes and answers 503 when a critical one fails.
func (c *Checker) Ready(w http.ResponseWriter, r *http.Request) {
	ready, results := c.Check(r.Context())
	code, state := http.StatusOK, "ready"
	if !ready {
		code, state = http.StatusServiceUnavailable, "unavailable"
	}
	util.JSONStatus(w, code, map[string]any{"status": state, "checks": results})
}
