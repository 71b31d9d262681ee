package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/garnizeh/devcompanion/internal/chat"
	"github.com/garnizeh/devcompanion/internal/config"
)

const serviceName = "devcompanion"

type SystemHandler struct {
	cfg     *config.Config
	svc     *chat.Service
	started time.Time
}

func NewSystemHandler(cfg *config.Config, svc *chat.Service) *SystemHandler {
	return &SystemHandler{cfg: cfg, svc: svc, started: time.Now()}
}

func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy", "service": serviceName}, http.StatusOK)
}

func (h *SystemHandler) VersionHandler(version, buildTime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": version, "buildTime": buildTime}, http.StatusOK)
	}
}

// DiagHandler reports runtime and configuration facts. It never fails;
// missing collaborators are reported as absent.
func (h *SystemHandler) DiagHandler(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"service":        serviceName,
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}
	if h.cfg != nil {
		out["env"] = h.cfg.Env
		out["provider"] = h.cfg.EngineConfig.Provider
		out["model"] = h.cfg.EngineConfig.Model
		out["telemetry"] = h.cfg.OTELEndpoint != ""
	}
	if h.svc != nil {
		out["stats"] = h.svc.Stats()
	}
	writeJSON(w, out, http.StatusOK)
}
