package gateway

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vendapos/pos-edge-cache/internal/domain"
)

// DebugHandler serves read-only diagnostics
type DebugHandler struct {
	queue   Queue
	monitor Monitor
	state   func() State
	version string
	logger  *zap.Logger
}

// NewDebugHandler creates a new DebugHandler
func NewDebugHandler(queue Queue, monitor Monitor, state func() State, version string, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{
		queue:   queue,
		monitor: monitor,
		state:   state,
		version: version,
		logger:  logger,
	}
}

// HandleStatus reports the combined offline-layer status
func (h *DebugHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := h.monitor.Status()
	if err != nil {
		h.logger.Error("failed to build status", zap.Error(err))
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"gatewayState":   h.state().String(),
		"gatewayVersion": h.version,
		"status":         status,
	})
}

// HandleQueue lists pending sync queue items
func (h *DebugHandler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	items, err := h.queue.Pending()
	if err != nil {
		h.logger.Error("failed to list queue", zap.Error(err))
		http.Error(w, "queue unavailable", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []domain.QueueItem{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(items),
		"items": items,
	})
}
