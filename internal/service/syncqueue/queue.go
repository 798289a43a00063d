// Package syncqueue implements the durable, ordered, at-least-once mutation
// queue. Mutations recorded while offline are replayed against the backend
// in FIFO order once connectivity returns.
package syncqueue

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/vendapos/pos-edge-cache/internal/domain"
	"github.com/vendapos/pos-edge-cache/internal/domain/event"
	"github.com/vendapos/pos-edge-cache/internal/port"
)

// metaLastSyncAt is the meta key recording the last drain attempt.
const metaLastSyncAt = "last_sync_at"

// Item IDs double as the replay order, so they must be strictly increasing
// even within one millisecond. ulid.Monotonic is not safe for concurrent
// use; the mutex serializes ID generation.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newItemID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Config contains sync queue configuration
type Config struct {
	// MaxRetries is the number of failed replays before an item is dropped
	// and reported as permanently failed.
	MaxRetries int
}

// DefaultConfig returns default sync queue configuration
func DefaultConfig() *Config {
	return &Config{MaxRetries: domain.MaxReplayRetries}
}

// Service is the durable sync queue
type Service struct {
	config  *Config
	items   port.QueueRepository
	meta    port.MetaRepository
	backend port.Backend
	events  event.EventDispatcher
	logger  *zap.Logger

	// draining guards against reentrant drains. The environment is
	// cooperative, so a flag is enough; a concurrent Drain is a no-op.
	draining atomic.Bool

	// online reports current connectivity; set by the wiring layer once
	// the monitor exists. When unset, enqueue never self-triggers a drain.
	online func() bool
}

// New creates a new sync queue Service
func New(cfg *Config, items port.QueueRepository, meta port.MetaRepository, backend port.Backend, events event.EventDispatcher, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = domain.MaxReplayRetries
	}
	if events == nil {
		events = event.NewNullDispatcher()
	}

	return &Service{
		config:  cfg,
		items:   items,
		meta:    meta,
		backend: backend,
		events:  events,
		logger:  logger,
	}
}

// SetOnlineProbe installs the connectivity check used to decide whether an
// enqueue should immediately attempt a drain.
func (s *Service) SetOnlineProbe(online func() bool) {
	s.online = online
}

// Enqueue appends a mutation to the queue. The item is durable before the
// call returns; if currently online, a drain is attempted in the
// background.
func (s *Service) Enqueue(ctx context.Context, action domain.Action, endpoint string, data json.RawMessage) (*domain.QueueItem, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("action %q: %w", action, domain.ErrInvalidInput)
	}
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint: %w", domain.ErrInvalidInput)
	}

	now := time.Now()
	item := &domain.QueueItem{
		ID:         newItemID(now),
		Action:     action,
		Endpoint:   endpoint,
		Data:       data,
		EnqueuedAt: now,
	}

	if err := s.items.Append(item); err != nil {
		return nil, domain.NewStorageError("enqueue", item.ID, err)
	}

	s.logger.Info("mutation queued",
		zap.String("id", item.ID),
		zap.String("action", string(action)),
		zap.String("endpoint", endpoint))

	if s.online != nil && s.online() {
		go func() {
			if err := s.Drain(context.Background()); err != nil && err != domain.ErrQueueDraining {
				s.logger.Warn("post-enqueue drain failed", zap.Error(err))
			}
		}()
	}

	return item, nil
}

// Drain replays every pending item against the backend in FIFO order.
// Item outcomes are independent: one failure never aborts the rest of the
// batch. Only one drain runs at a time; a concurrent call returns
// ErrQueueDraining without doing work.
func (s *Service) Drain(ctx context.Context) error {
	if !s.draining.CompareAndSwap(false, true) {
		return domain.ErrQueueDraining
	}
	defer s.draining.Store(false)

	start := time.Now()
	if err := s.meta.SetMeta(metaLastSyncAt, start.UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("failed to record sync attempt time", zap.Error(err))
	}

	snapshot, err := s.items.List()
	if err != nil {
		return domain.NewStorageError("drain", "", err)
	}
	if len(snapshot) == 0 {
		return nil
	}

	s.logger.Info("draining sync queue", zap.Int("pending", len(snapshot)))

	var replayed, failed int
	for i := range snapshot {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if s.replayItem(ctx, &snapshot[i]) {
			replayed++
		} else {
			failed++
		}
	}

	remaining, err := s.items.Count()
	if err != nil {
		s.logger.Warn("failed to count remaining items", zap.Error(err))
	}

	s.events.Dispatch(event.NewQueueDrained(replayed, failed, remaining, time.Since(start)))
	s.logger.Info("sync queue drained",
		zap.Int("replayed", replayed),
		zap.Int("failed", failed),
		zap.Int("remaining", remaining),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// replayItem attempts one item and returns true on success. Failures
// increment the retry count; an item that exhausts its retries is removed
// and reported as permanently failed.
func (s *Service) replayItem(ctx context.Context, item *domain.QueueItem) bool {
	resp, err := s.backend.Do(ctx, item.Action.Method(), item.Endpoint, item.Data)
	if err == nil && resp.OK() {
		if err := s.items.DeleteItem(item.ID); err != nil {
			s.logger.Error("failed to remove replayed item",
				zap.String("id", item.ID), zap.Error(err))
			return false
		}
		s.logger.Debug("queue item replayed",
			zap.String("id", item.ID),
			zap.String("endpoint", item.Endpoint))
		return true
	}

	if err == nil {
		err = fmt.Errorf("backend returned status %d", resp.Status)
	}

	attempts := item.Retries + 1
	replayErr := &domain.ReplayError{
		ItemID:    item.ID,
		Action:    item.Action,
		Endpoint:  item.Endpoint,
		Attempts:  attempts,
		Permanent: attempts >= s.config.MaxRetries,
		Err:       err,
	}

	if replayErr.Permanent {
		if err := s.items.DeleteItem(item.ID); err != nil {
			s.logger.Error("failed to drop exhausted item",
				zap.String("id", item.ID), zap.Error(err))
		}
		s.events.Dispatch(event.NewQueueItemFailed(
			item.ID, item.Action, item.Endpoint, attempts, true, replayErr.Err.Error()))
		s.logger.Error("queue item permanently failed", zap.Error(replayErr))
		return false
	}

	if err := s.items.UpdateRetries(item.ID, attempts); err != nil {
		s.logger.Error("failed to record retry",
			zap.String("id", item.ID), zap.Error(err))
	}
	s.logger.Warn("queue item replay failed, will retry", zap.Error(replayErr))
	return false
}

// Pending returns all queued items in replay order
func (s *Service) Pending() ([]domain.QueueItem, error) {
	items, err := s.items.List()
	if err != nil {
		return nil, domain.NewStorageError("list", "", err)
	}
	return items, nil
}

// Size returns the number of pending items
func (s *Service) Size() (int, error) {
	count, err := s.items.Count()
	if err != nil {
		return 0, domain.NewStorageError("count", "", err)
	}
	return count, nil
}

// LastSyncAt returns the time of the last drain attempt, or the zero time
// when no drain has run yet
func (s *Service) LastSyncAt() time.Time {
	value, err := s.meta.GetMeta(metaLastSyncAt)
	if err != nil || value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
