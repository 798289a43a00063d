// Package gateway implements the request interception layer: an HTTP server
// the POS application points at instead of the backend. Online it proxies
// and records responses; offline it serves from the response cache and
// synthesizes fallbacks for known endpoints, queuing mutations for replay.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vendapos/pos-edge-cache/internal/domain"
	"github.com/vendapos/pos-edge-cache/internal/domain/event"
	"github.com/vendapos/pos-edge-cache/internal/port"
	"github.com/vendapos/pos-edge-cache/internal/service/monitor"
)

// metaActiveVersion is the meta key recording the activated gateway version.
const metaActiveVersion = "gateway_active_version"

// State is the gateway lifecycle state
type State int32

const (
	StateInstalling State = iota
	StateInstalled
	StateActivating
	StateActivated
)

// String returns the lifecycle state name
func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	}
	return "unknown"
}

// Cache is the entity cache surface the gateway exposes over HTTP
type Cache interface {
	Export() (*domain.Snapshot, error)
}

// Queue is the sync queue surface the gateway uses
type Queue interface {
	Enqueue(ctx context.Context, action domain.Action, endpoint string, data json.RawMessage) (*domain.QueueItem, error)
	Drain(ctx context.Context) error
	Pending() ([]domain.QueueItem, error)
	Size() (int, error)
}

// Monitor is the connectivity surface the gateway uses
type Monitor interface {
	Online() bool
	SetOnline(ctx context.Context, online bool)
	Status() (*monitor.Status, error)
}

// Config contains gateway configuration
type Config struct {
	BindAddr      string
	Version       string
	APIPrefix     string
	ShellAssets   []string
	AdminUsername string
	AdminPassword string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

// DefaultConfig returns default gateway configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "127.0.0.1:8099",
		Version:      "v1",
		APIPrefix:    "/api/",
		ShellAssets:  []string{"/", "/index.html"},
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Service is the interception gateway
type Service struct {
	config    *Config
	backend   port.Backend
	responses port.ResponseCacheRepository
	meta      port.MetaRepository
	cache     Cache
	queue     Queue
	monitor   Monitor
	events    event.EventDispatcher
	logger    *zap.Logger

	state  atomic.Int32
	server *http.Server

	adminHandler *AdminHandler
	debugHandler *DebugHandler
}

// New creates a new gateway Service
func New(cfg *Config, backend port.Backend, responses port.ResponseCacheRepository, meta port.MetaRepository, cache Cache, queue Queue, monitor Monitor, events event.EventDispatcher, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Version == "" {
		cfg.Version = "v1"
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/"
	}
	if events == nil {
		events = event.NewNullDispatcher()
	}

	g := &Service{
		config:    cfg,
		backend:   backend,
		responses: responses,
		meta:      meta,
		cache:     cache,
		queue:     queue,
		monitor:   monitor,
		events:    events,
		logger:    logger,
	}
	g.state.Store(int32(StateInstalling))

	g.adminHandler = NewAdminHandler(cache, queue, monitor, g.Activate, logger)
	g.debugHandler = NewDebugHandler(queue, monitor, g.State, cfg.Version, logger)

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", g.handleHealth)

	// Debug endpoints
	mux.HandleFunc("/debug/status", g.debugHandler.HandleStatus)
	mux.HandleFunc("/debug/queue", g.debugHandler.HandleQueue)

	// Admin endpoints
	adminAuth := BasicAuthMiddleware(cfg.AdminUsername, cfg.AdminPassword, logger)
	mux.HandleFunc("/admin/export", adminAuth(g.adminHandler.HandleExport))
	mux.HandleFunc("/admin/sync", adminAuth(g.adminHandler.HandleSync))
	mux.HandleFunc("/admin/online", adminAuth(g.adminHandler.HandleOnline))
	mux.HandleFunc("/admin/activate", adminAuth(g.adminHandler.HandleActivate))

	// Everything else is intercepted application traffic.
	mux.HandleFunc("/", g.handleRequest)

	g.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      LoggingMiddleware(logger)(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return g
}

// State returns the current lifecycle state
func (g *Service) State() State {
	return State(g.state.Load())
}

// cacheName is the version tag stamped on every response this gateway
// version stores
func (g *Service) cacheName() string {
	return "pos-" + g.config.Version
}

// Start installs this gateway version, activates it if no other version is
// active, and serves until Stop is called
func (g *Service) Start(ctx context.Context) error {
	g.install(ctx)

	active, err := g.meta.GetMeta(metaActiveVersion)
	if err != nil {
		g.logger.Warn("failed to read active gateway version", zap.Error(err))
	}
	if active == "" || active == g.config.Version {
		g.Activate()
	} else {
		g.logger.Info("gateway installed, waiting for activation",
			zap.String("version", g.config.Version),
			zap.String("active_version", active))
	}

	g.logger.Info("starting gateway", zap.String("addr", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the gateway
func (g *Service) Stop(ctx context.Context) error {
	g.logger.Info("stopping gateway")
	return g.server.Shutdown(ctx)
}

// install precaches the configured app-shell assets into this version's
// response cache so the entry page stays servable offline
func (g *Service) install(ctx context.Context) {
	g.state.Store(int32(StateInstalling))

	var cached int
	for _, path := range g.config.ShellAssets {
		resp, err := g.backend.Do(ctx, http.MethodGet, path, nil)
		if err != nil {
			g.logger.Warn("failed to precache shell asset",
				zap.String("path", path), zap.Error(err))
			continue
		}
		if !resp.OK() {
			g.logger.Warn("shell asset fetch returned non-2xx",
				zap.String("path", path), zap.Int("status", resp.Status))
			continue
		}

		err = g.responses.PutResponse(&domain.CachedResponse{
			Method:      http.MethodGet,
			URL:         path,
			Status:      resp.Status,
			ContentType: resp.ContentType,
			Body:        resp.Body,
			CacheName:   g.cacheName(),
			FetchedAt:   time.Now(),
		})
		if err != nil {
			g.logger.Error("failed to store shell asset",
				zap.String("path", path), zap.Error(err))
			continue
		}
		cached++
	}

	g.state.Store(int32(StateInstalled))
	g.logger.Info("gateway installed",
		zap.String("version", g.config.Version),
		zap.Int("shell_assets_cached", cached),
		zap.Int("shell_assets_total", len(g.config.ShellAssets)))
}

// Activate makes this gateway version the active one: responses stored by
// other versions are purged and the version is recorded. Also the
// skip-waiting path, via the admin endpoint. Idempotent.
func (g *Service) Activate() {
	if g.State() == StateActivated {
		return
	}
	g.state.Store(int32(StateActivating))

	purged, err := g.responses.PurgeOtherCaches(g.cacheName())
	if err != nil {
		g.logger.Error("failed to purge stale response caches", zap.Error(err))
	}
	if err := g.meta.SetMeta(metaActiveVersion, g.config.Version); err != nil {
		g.logger.Error("failed to record active gateway version", zap.Error(err))
	}

	g.state.Store(int32(StateActivated))
	g.events.Dispatch(event.NewGatewayActivated(g.config.Version, purged))
	g.logger.Info("gateway activated",
		zap.String("version", g.config.Version),
		zap.Int("stale_responses_purged", purged))
}

// handleHealth handles health check requests
func (g *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"state":   g.State().String(),
		"version": g.config.Version,
		"online":  g.monitor.Online(),
		"time":    time.Now().Format(time.RFC3339),
	})
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
