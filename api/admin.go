package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/garnizeh/devcompanion/internal/apperr"
	"github.com/garnizeh/devcompanion/internal/chat"
)

const (
	defaultCleanupTTL = 3600
	minCleanupTTL     = 60
	maxCleanupTTL     = 86400
)

// SchemaReloader is implemented by gateways that validate output against a
// reloadable schema.
type SchemaReloader interface {
	ReloadSchemas(ctx context.Context) error
}

type AdminHandler struct {
	svc      *chat.Service
	reloader SchemaReloader
}

// NewAdminHandler creates the admin handler. reloader may be nil.
func NewAdminHandler(svc *chat.Service, reloader SchemaReloader) *AdminHandler {
	return &AdminHandler{svc: svc, reloader: reloader}
}

func (h *AdminHandler) ClearConversations(w http.ResponseWriter, r *http.Request) {
	n := h.svc.ClearConversations()
	writeJSON(w, map[string]any{"message": "All conversations cleared", "count": n}, http.StatusOK)
}

// CleanupJobs removes jobs older than ?ttl= seconds.
func (h *AdminHandler) CleanupJobs(w http.ResponseWriter, r *http.Request) {
	ttl := defaultCleanupTTL
	if q := r.URL.Query().Get("ttl"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < minCleanupTTL || v > maxCleanupTTL {
			writeError(w, apperr.InvalidInput(
				fmt.Sprintf("ttl must be an integer between %d and %d seconds", minCleanupTTL, maxCleanupTTL)))
			return
		}
		ttl = v
	}

	removed := h.svc.CleanupJobs(time.Duration(ttl) * time.Second)
	writeJSON(w, map[string]any{"removed": removed, "ttl_seconds": ttl}, http.StatusOK)
}

func (h *AdminHandler) ResetRateLimits(w http.ResponseWriter, r *http.Request) {
	h.svc.ResetRateLimits()
	writeJSON(w, map[string]string{"message": "Rate limits reset"}, http.StatusOK)
}

func (h *AdminHandler) ReloadSchema(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		writeJSON(w, map[string]any{"reloaded": false}, http.StatusOK)
		return
	}
	if err := h.reloader.ReloadSchemas(r.Context()); err != nil {
		writeError(w, apperr.Internal(fmt.Errorf("reload schemas: %w", err)))
		return
	}
	writeJSON(w, map[string]any{"reloaded": true}, http.StatusOK)
}
