package gateway

import (
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vendapos/pos-edge-cache/internal/domain"
	"github.com/vendapos/pos-edge-cache/internal/port"
)

// staticExtensions are the asset suffixes served cache-first
var staticExtensions = map[string]bool{
	".js":    true,
	".mjs":   true,
	".css":   true,
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".gif":   true,
	".svg":   true,
	".ico":   true,
	".webp":  true,
	".woff":  true,
	".woff2": true,
	".ttf":   true,
	".map":   true,
}

// handleRequest routes intercepted application traffic. Strategy order:
// data-API paths network-first with synthesized offline fallbacks, static
// assets cache-first, navigations network-then-shell, everything else
// network-first with cache fallback.
func (g *Service) handleRequest(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, g.config.APIPrefix):
		g.serveDataAPI(w, r)
	case isStaticAsset(r.URL.Path):
		g.serveCacheFirst(w, r)
	case isNavigation(r):
		g.serveNavigation(w, r)
	default:
		g.serveNetworkFirst(w, r)
	}
}

// isStaticAsset reports whether the path looks like a static asset request
func isStaticAsset(p string) bool {
	return staticExtensions[strings.ToLower(path.Ext(p))]
}

// isNavigation reports whether the request is a top-level page navigation
func isNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// serveDataAPI handles data-API traffic: network-first, then the dynamic
// response cache, then a synthesized offline payload. Mutations that cannot
// reach the backend are queued before the response is written.
func (g *Service) serveDataAPI(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RequestURI()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if g.monitor.Online() {
		resp, err := g.backend.Do(r.Context(), r.Method, key, body)
		if err == nil {
			if r.Method == http.MethodGet && resp.OK() {
				g.storeResponse(r.Method, key, resp)
			}
			writeBackendResponse(w, resp)
			return
		}
		g.logger.Warn("backend request failed, serving offline path",
			zap.String("method", r.Method),
			zap.String("url", key),
			zap.Error(err))
	}

	if r.Method == http.MethodGet {
		cached, err := g.responses.GetResponse(r.Method, key)
		if err != nil {
			g.logger.Error("response cache lookup failed",
				zap.String("url", key), zap.Error(err))
		}
		if cached != nil {
			writeCachedResponse(w, cached)
			return
		}
		g.serveOfflineData(w, r)
		return
	}

	g.queueMutation(w, r, key, body)
}

// serveCacheFirst handles static assets: cache hit wins, otherwise fetch,
// store, and return
func (g *Service) serveCacheFirst(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RequestURI()

	cached, err := g.responses.GetResponse(r.Method, key)
	if err != nil {
		g.logger.Error("response cache lookup failed",
			zap.String("url", key), zap.Error(err))
	}
	if cached != nil {
		writeCachedResponse(w, cached)
		return
	}

	if g.monitor.Online() {
		resp, err := g.backend.Do(r.Context(), r.Method, key, nil)
		if err == nil {
			if resp.OK() {
				g.storeResponse(r.Method, key, resp)
			}
			writeBackendResponse(w, resp)
			return
		}
		g.logger.Warn("static asset fetch failed",
			zap.String("url", key), zap.Error(err))
	}

	http.Error(w, "asset unavailable offline", http.StatusServiceUnavailable)
}

// serveNavigation handles top-level navigations: network, then the cached
// app shell, then a generated offline page
func (g *Service) serveNavigation(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RequestURI()

	if g.monitor.Online() {
		resp, err := g.backend.Do(r.Context(), r.Method, key, nil)
		if err == nil {
			if resp.OK() {
				g.storeResponse(r.Method, key, resp)
			}
			writeBackendResponse(w, resp)
			return
		}
		g.logger.Warn("navigation fetch failed, serving app shell",
			zap.String("url", key), zap.Error(err))
	}

	for _, asset := range g.config.ShellAssets {
		cached, err := g.responses.GetResponse(http.MethodGet, asset)
		if err != nil || cached == nil {
			continue
		}
		writeCachedResponse(w, cached)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(offlinePage))
}

// serveNetworkFirst is the default strategy: network, then cache, then a
// plain offline error
func (g *Service) serveNetworkFirst(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RequestURI()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if g.monitor.Online() {
		resp, err := g.backend.Do(r.Context(), r.Method, key, body)
		if err == nil {
			if r.Method == http.MethodGet && resp.OK() {
				g.storeResponse(r.Method, key, resp)
			}
			writeBackendResponse(w, resp)
			return
		}
		g.logger.Warn("backend request failed, trying cache",
			zap.String("method", r.Method),
			zap.String("url", key),
			zap.Error(err))
	}

	cached, err := g.responses.GetResponse(r.Method, key)
	if err != nil {
		g.logger.Error("response cache lookup failed",
			zap.String("url", key), zap.Error(err))
	}
	if cached != nil {
		writeCachedResponse(w, cached)
		return
	}

	http.Error(w, "unavailable offline", http.StatusServiceUnavailable)
}

// storeResponse clones a backend response into this version's cache
func (g *Service) storeResponse(method, url string, resp *port.BackendResponse) {
	err := g.responses.PutResponse(&domain.CachedResponse{
		Method:      method,
		URL:         url,
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Body:        resp.Body,
		CacheName:   g.cacheName(),
		FetchedAt:   time.Now(),
	})
	if err != nil {
		g.logger.Error("failed to cache response",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err))
	}
}

// writeBackendResponse relays a live backend response
func writeBackendResponse(w http.ResponseWriter, resp *port.BackendResponse) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// writeCachedResponse serves a response from the cache, marked as such
func writeCachedResponse(w http.ResponseWriter, cached *domain.CachedResponse) {
	if cached.ContentType != "" {
		w.Header().Set("Content-Type", cached.ContentType)
	}
	w.Header().Set("X-Cache", "hit")
	w.Header().Set("X-Cache-Fetched-At", cached.FetchedAt.UTC().Format(time.RFC3339))
	w.WriteHeader(cached.Status)
	_, _ = w.Write(cached.Body)
}
