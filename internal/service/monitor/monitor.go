// Package monitor tracks backend connectivity and storage pressure.
// Offline-to-online transitions trigger a sync queue drain; storage usage
// past the critical threshold triggers expired-entry eviction. Unexpired
// data is never evicted automatically.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vendapos/pos-edge-cache/internal/domain"
	"github.com/vendapos/pos-edge-cache/internal/domain/event"
	"github.com/vendapos/pos-edge-cache/internal/port"
	"github.com/vendapos/pos-edge-cache/internal/util/ratelimiter"
)

// CacheStore defines the cache operations the monitor needs
type CacheStore interface {
	ClearExpired() (int, error)
	Usage() (*domain.StorageUsage, error)
}

// Queue defines the sync queue operations the monitor needs
type Queue interface {
	Drain(ctx context.Context) error
	Size() (int, error)
	LastSyncAt() time.Time
}

// Config contains monitor configuration
type Config struct {
	// ProbeInterval is how often backend reachability is probed.
	ProbeInterval time.Duration

	// QuotaCheckInterval is how often storage usage is sampled.
	QuotaCheckInterval time.Duration

	// StatusInterval is how often a status snapshot is reported.
	StatusInterval time.Duration

	// WarnUsagePct and CriticalUsagePct are the pressure thresholds.
	// Crossing critical triggers automatic expired-entry eviction.
	WarnUsagePct     float64
	CriticalUsagePct float64

	// EvictionInterval is the minimum spacing between automatic evictions.
	EvictionInterval time.Duration

	// SweepInterval is how often expired entries are swept regardless of
	// storage pressure.
	SweepInterval time.Duration
}

// DefaultConfig returns default monitor configuration
func DefaultConfig() *Config {
	return &Config{
		ProbeInterval:      15 * time.Second,
		QuotaCheckInterval: 5 * time.Minute,
		StatusInterval:     30 * time.Second,
		WarnUsagePct:       80,
		CriticalUsagePct:   90,
		EvictionInterval:   30 * time.Second,
		SweepInterval:      10 * time.Minute,
	}
}

// Status is a point-in-time view of the offline layer
type Status struct {
	Online     bool                `json:"online"`
	QueueSize  int                 `json:"queueSize"`
	LastSyncAt time.Time           `json:"lastSyncAt"`
	Storage    domain.StorageUsage `json:"storage"`
	CheckedAt  time.Time           `json:"checkedAt"`
}

// Service is the connectivity and usage monitor
type Service struct {
	config  *Config
	backend port.Backend
	cache   CacheStore
	queue   Queue
	events  event.EventDispatcher
	logger  *zap.Logger
	evictor *ratelimiter.Limiter

	online atomic.Bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new monitor Service
func New(cfg *Config, backend port.Backend, cache CacheStore, queue Queue, events event.EventDispatcher, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 15 * time.Second
	}
	if cfg.QuotaCheckInterval == 0 {
		cfg.QuotaCheckInterval = 5 * time.Minute
	}
	if cfg.StatusInterval == 0 {
		cfg.StatusInterval = 30 * time.Second
	}
	if cfg.WarnUsagePct == 0 {
		cfg.WarnUsagePct = 80
	}
	if cfg.CriticalUsagePct == 0 {
		cfg.CriticalUsagePct = 90
	}
	if cfg.EvictionInterval == 0 {
		cfg.EvictionInterval = 30 * time.Second
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	if events == nil {
		events = event.NewNullDispatcher()
	}

	return &Service{
		config:  cfg,
		backend: backend,
		cache:   cache,
		queue:   queue,
		events:  events,
		logger:  logger,
		evictor: ratelimiter.New(cfg.EvictionInterval),
	}
}

// Start starts the monitor loops and blocks until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("monitor already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("monitor started",
		zap.Duration("probe_interval", s.config.ProbeInterval),
		zap.Duration("quota_check_interval", s.config.QuotaCheckInterval),
		zap.Duration("status_interval", s.config.StatusInterval))

	// Establish initial connectivity before the loops take over.
	s.probe(ctx)

	s.wg.Add(4)
	go s.probeLoop(ctx)
	go s.quotaLoop(ctx)
	go s.statusLoop(ctx)
	go s.sweepLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("monitor stopped")
	return nil
}

// Stop stops the monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

// Online reports the current connectivity state
func (s *Service) Online() bool {
	return s.online.Load()
}

// SetOnline forces the connectivity state, applying the same transition
// behavior as a probe. Used by the admin surface and by tests.
func (s *Service) SetOnline(ctx context.Context, online bool) {
	s.transition(ctx, online)
}

// probeLoop probes backend reachability periodically
func (s *Service) probeLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

// probe checks the backend once and applies the resulting state
func (s *Service) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, s.config.ProbeInterval)
	defer cancel()

	err := s.backend.Ping(probeCtx)
	s.transition(ctx, err == nil)
}

// transition applies a connectivity observation. Going online triggers an
// immediate drain; going offline only records the state.
func (s *Service) transition(ctx context.Context, nowOnline bool) {
	wasOnline := s.online.Swap(nowOnline)
	if wasOnline == nowOnline {
		return
	}

	s.events.Dispatch(event.NewConnectivityChanged(nowOnline))

	if nowOnline {
		s.logger.Info("connectivity restored, draining sync queue")
		go func() {
			if err := s.queue.Drain(context.WithoutCancel(ctx)); err != nil && err != domain.ErrQueueDraining {
				s.logger.Warn("drain after reconnect failed", zap.Error(err))
			}
		}()
	} else {
		s.logger.Warn("connectivity lost, mutations will be queued")
	}
}

// quotaLoop samples storage usage periodically
func (s *Service) quotaLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.QuotaCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckStorage()
		}
	}
}

// CheckStorage samples usage once and reacts to pressure thresholds.
// Exported so the admin surface can request an immediate check.
func (s *Service) CheckStorage() {
	usage, err := s.cache.Usage()
	if err != nil {
		s.logger.Error("failed to sample storage usage", zap.Error(err))
		return
	}

	switch {
	case usage.UsedPct >= s.config.CriticalUsagePct:
		allowed, wait := s.evictor.Allow()
		if !allowed {
			s.logger.Debug("eviction rate-limited",
				zap.Duration("next_in", wait))
			return
		}

		removed, err := s.cache.ClearExpired()
		if err != nil {
			s.logger.Error("emergency eviction failed", zap.Error(err))
			return
		}
		s.events.Dispatch(event.NewQuotaPressure(usage.UsedPct, "critical", removed))
		s.logger.Warn("storage critical, evicted expired entries",
			zap.Float64("used_pct", usage.UsedPct),
			zap.Int("evicted", removed))

	case usage.UsedPct >= s.config.WarnUsagePct:
		s.events.Dispatch(event.NewQuotaPressure(usage.UsedPct, "warning", 0))
		s.logger.Warn("storage usage high",
			zap.Float64("used_pct", usage.UsedPct),
			zap.Int64("used_bytes", usage.UsedBytes),
			zap.Int64("quota_bytes", usage.QuotaBytes))
	}
}

// sweepLoop removes expired cache entries periodically
func (s *Service) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.cache.ClearExpired()
			if err != nil {
				s.logger.Error("expired entry sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Debug("expired entry sweep", zap.Int("removed", removed))
			}
		}
	}
}

// statusLoop reports a snapshot periodically
func (s *Service) statusLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reportStatus()
		}
	}
}

// reportStatus gathers and publishes a status snapshot
func (s *Service) reportStatus() {
	status, err := s.Status()
	if err != nil {
		s.logger.Error("failed to build status snapshot", zap.Error(err))
		return
	}

	s.events.Dispatch(event.NewStatusSnapshot(
		status.Online, status.QueueSize, status.LastSyncAt, status.Storage))
	s.logger.Info("status",
		zap.Bool("online", status.Online),
		zap.Int("queue_size", status.QueueSize),
		zap.Time("last_sync_at", status.LastSyncAt),
		zap.Float64("storage_used_pct", status.Storage.UsedPct))
}

// Status builds a point-in-time status view
func (s *Service) Status() (*Status, error) {
	size, err := s.queue.Size()
	if err != nil {
		return nil, err
	}
	usage, err := s.cache.Usage()
	if err != nil {
		return nil, err
	}

	return &Status{
		Online:     s.online.Load(),
		QueueSize:  size,
		LastSyncAt: s.queue.LastSyncAt(),
		Storage:    *usage,
		CheckedAt:  time.Now(),
	}, nil
}
