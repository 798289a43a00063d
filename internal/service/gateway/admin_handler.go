package gateway

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// AdminHandler serves the manual control surface: snapshot export, forced
// sync, connectivity override, and skip-waiting activation
type AdminHandler struct {
	cache    Cache
	queue    Queue
	monitor  Monitor
	activate func()
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(cache Cache, queue Queue, monitor Monitor, activate func(), logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		cache:    cache,
		queue:    queue,
		monitor:  monitor,
		activate: activate,
		logger:   logger,
	}
}

// HandleExport dumps the full cache and pending queue as a snapshot
func (h *AdminHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot, err := h.cache.Export()
	if err != nil {
		h.logger.Error("snapshot export failed", zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="pos-edge-cache-snapshot.json"`)
	writeJSON(w, http.StatusOK, snapshot)
}

// HandleSync triggers a sync queue drain
func (h *AdminHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.queue.Drain(r.Context()); err != nil {
		h.logger.Warn("manual sync failed", zap.Error(err))
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	}

	remaining, err := h.queue.Size()
	if err != nil {
		h.logger.Warn("failed to count queue after sync", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"synced":    true,
		"remaining": remaining,
	})
}

// HandleOnline overrides the connectivity state
func (h *AdminHandler) HandleOnline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Online bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.monitor.SetOnline(r.Context(), req.Online)
	h.logger.Info("connectivity override applied", zap.Bool("online", req.Online))
	writeJSON(w, http.StatusOK, map[string]any{"online": h.monitor.Online()})
}

// HandleActivate force-activates this gateway version (skip-waiting)
func (h *AdminHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.activate()
	writeJSON(w, http.StatusOK, map[string]any{"activated": true})
}
