package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/voxlabs/ttsd/internal/cache"
	"github.com/voxlabs/ttsd/internal/resident"
)

type HealthHandler struct {
	manager *resident.Manager
	cache   *cache.AudioCache
}

func NewHealthHandler(m *resident.Manager, c *cache.AudioCache) *HealthHandler {
	return &HealthHandler{manager: m, cache: c}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports cache reachability and the current resident slot state.
// An empty slot is a normal condition, not a readiness failure.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]any{}

	if key, lastAccess, ok := h.manager.Resident(); ok {
		checks["resident"] = map[string]any{
			"key":  key,
			"idle": time.Since(lastAccess).Round(time.Second).String(),
		}
	} else {
		checks["resident"] = "empty"
	}

	status := http.StatusOK
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}
	}

	writeJSON(w, status, map[string]any{"status": statusStr(status), "checks": checks})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
