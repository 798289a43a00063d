package gateway

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vendapos/pos-edge-cache/internal/domain"
)

// offlinePage is the generated fallback for navigations when neither the
// network nor the cached app shell is available
const offlinePage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Offline</title></head>
<body>
<h1>You are offline</h1>
<p>The point of sale is running in offline mode. Cached data and queued
orders will sync automatically when the connection returns.</p>
</body>
</html>
`

// serveOfflineData synthesizes a deterministic payload for known data
// endpoints so the UI keeps rendering while offline. Unknown endpoints get
// a plain offline error.
func (g *Service) serveOfflineData(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path

	switch {
	case strings.Contains(p, "/terminal") || strings.HasSuffix(p, "/config"):
		writeJSON(w, http.StatusOK, map[string]any{
			"terminalId": "offline-terminal",
			"offline":    true,
			"currency":   "USD",
			"features":   map[string]bool{"orders": true, "payments": false},
		})

	case strings.Contains(p, "/products"):
		writeJSON(w, http.StatusOK, map[string]any{
			"products": []any{},
			"offline":  true,
			"stale":    true,
		})

	default:
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":   "offline",
			"offline": true,
		})
	}
}

// queueMutation records a mutation that could not reach the backend and
// acknowledges it as queued. Order submissions additionally get a temporary
// local identifier the UI can reference until the real one exists.
func (g *Service) queueMutation(w http.ResponseWriter, r *http.Request, endpoint string, body []byte) {
	action, ok := domain.ActionFromMethod(r.Method)
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":   "offline",
			"offline": true,
		})
		return
	}

	item, err := g.queue.Enqueue(r.Context(), action, endpoint, body)
	if err != nil {
		g.logger.Error("failed to queue offline mutation",
			zap.String("method", r.Method),
			zap.String("endpoint", endpoint),
			zap.Error(err))
		http.Error(w, "failed to queue request", http.StatusInternalServerError)
		return
	}

	payload := map[string]any{
		"id":      "local-" + item.ID,
		"status":  "queued",
		"offline": true,
	}
	if r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/orders") {
		payload["queuedAt"] = item.EnqueuedAt.UTC()
	}

	g.logger.Info("offline mutation queued",
		zap.String("id", item.ID),
		zap.String("method", r.Method),
		zap.String("endpoint", endpoint))
	writeJSON(w, http.StatusAccepted, payload)
}
