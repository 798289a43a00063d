// Package cache implements the persistent entity cache: compressed,
// checksummed, TTL-bound key/value storage for POS data.
package cache

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"go.uber.org/zap"

	"github.com/vendapos/pos-edge-cache/internal/domain"
	"github.com/vendapos/pos-edge-cache/internal/port"
)

// Config contains cache service configuration
type Config struct {
	// DefaultTTL applies when a caller writes without an explicit TTL.
	DefaultTTL time.Duration

	// QuotaBytes is the storage budget usage is reported against.
	QuotaBytes int64
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultTTL: time.Hour,
		QuotaBytes: 200 * 1024 * 1024,
	}
}

// Service is the persistent cache store
type Service struct {
	config     *Config
	entries    port.CacheRepository
	queue      port.QueueRepository
	usage      port.UsageReporter
	compressor port.Compressor
	logger     *zap.Logger

	// now is injectable for expiry tests
	now func() time.Time
}

// New creates a new cache Service
func New(cfg *Config, entries port.CacheRepository, queue port.QueueRepository, usage port.UsageReporter, compressor port.Compressor, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = time.Hour
	}

	return &Service{
		config:     cfg,
		entries:    entries,
		queue:      queue,
		usage:      usage,
		compressor: compressor,
		logger:     logger,
		now:        time.Now,
	}
}

// Set serializes value, decides compression, and writes a cache entry under
// key. The write replaces any previous entry wholesale; on storage failure
// the previous entry is left unchanged and a StorageError is returned.
func (s *Service) Set(key string, value any, category string, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("cache key: %w", domain.ErrInvalidInput)
	}
	if category == "" {
		category = domain.CategoryGeneral
	}
	if ttl <= 0 {
		ttl = s.config.DefaultTTL
	}

	payload, compressed, originalSize, storedSize, err := s.compressor.Compress(value)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}

	sum, err := checksum(value)
	if err != nil {
		return fmt.Errorf("checksum value for %q: %w", key, err)
	}

	now := s.now()
	entry := &domain.CacheEntry{
		Key:            key,
		Category:       category,
		Payload:        payload,
		Compressed:     compressed,
		OriginalSize:   originalSize,
		CompressedSize: storedSize,
		Checksum:       sum,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}

	if err := s.entries.Put(entry); err != nil {
		return domain.NewStorageError("put", key, err)
	}

	s.logger.Debug("cache entry written",
		zap.String("key", key),
		zap.String("category", category),
		zap.Bool("compressed", compressed),
		zap.Int64("original_size", originalSize),
		zap.Int64("stored_size", storedSize),
		zap.Duration("ttl", ttl))
	return nil
}

// Get returns the cached value for key, or nil on a miss. An entry past its
// expiry is deleted and reported as a miss. A corrupt payload is returned
// raw as a degraded fallback rather than failing the read.
func (s *Service) Get(key string) (any, error) {
	entry, err := s.entries.Get(key)
	if err != nil {
		return nil, domain.NewStorageError("get", key, err)
	}
	if entry == nil {
		return nil, nil
	}

	if entry.Expired(s.now()) {
		if err := s.entries.Delete(key); err != nil {
			s.logger.Warn("failed to delete expired entry",
				zap.String("key", key), zap.Error(err))
		}
		s.logger.Debug("cache entry expired", zap.String("key", key))
		return nil, nil
	}

	value, err := s.compressor.Decompress(entry.Payload)
	if err != nil {
		s.logger.Warn("cache entry decompression failed, returning raw payload",
			zap.String("key", key), zap.Error(err))
		return entry.Payload, nil
	}

	if entry.Checksum != "" {
		sum, err := checksum(value)
		if err == nil && sum != entry.Checksum {
			s.logger.Warn("cache entry checksum mismatch",
				zap.String("key", key),
				zap.String("stored", entry.Checksum),
				zap.String("computed", sum))
		}
	}

	return value, nil
}

// Delete removes the entry for key. Idempotent.
func (s *Service) Delete(key string) error {
	if err := s.entries.Delete(key); err != nil {
		return domain.NewStorageError("delete", key, err)
	}
	return nil
}

// ClearCategory removes all entries tagged with the category, returning the
// number removed. Safe to call repeatedly.
func (s *Service) ClearCategory(category string) (int, error) {
	removed, err := s.entries.DeleteByCategory(category)
	if err != nil {
		return 0, domain.NewStorageError("clear_category", category, err)
	}
	if removed > 0 {
		s.logger.Info("cache category cleared",
			zap.String("category", category),
			zap.Int("removed", removed))
	}
	return removed, nil
}

// ClearExpired removes all expired entries and returns the number removed
func (s *Service) ClearExpired() (int, error) {
	removed, err := s.entries.DeleteExpired(s.now())
	if err != nil {
		return 0, domain.NewStorageError("clear_expired", "", err)
	}
	if removed > 0 {
		s.logger.Info("expired cache entries cleared", zap.Int("removed", removed))
	}
	return removed, nil
}

// Usage reports storage consumption against the quota plus aggregate
// compression statistics
func (s *Service) Usage() (*domain.StorageUsage, error) {
	used, err := s.usage.SizeBytes()
	if err != nil {
		return nil, domain.NewStorageError("usage", "", err)
	}

	stats, err := s.entries.Stats()
	if err != nil {
		return nil, domain.NewStorageError("stats", "", err)
	}

	quota := s.config.QuotaBytes
	usage := &domain.StorageUsage{
		UsedBytes:      used,
		AvailableBytes: quota - used,
		QuotaBytes:     quota,
		Compression:    *stats,
	}
	if quota > 0 {
		usage.UsedPct = float64(used) / float64(quota) * 100
	}
	return usage, nil
}

// Export dumps all cache entries and the pending sync queue as a snapshot
// for backup or diagnostics
func (s *Service) Export() (*domain.Snapshot, error) {
	entries, err := s.entries.All()
	if err != nil {
		return nil, domain.NewStorageError("export", "", err)
	}

	items, err := s.queue.List()
	if err != nil {
		return nil, domain.NewStorageError("export", "", err)
	}

	return &domain.Snapshot{
		Cache:     entries,
		SyncQueue: items,
		Timestamp: s.now(),
	}, nil
}

// checksum computes an FNV-1a digest over the canonical JSON of v.
// Integrity detection only, not cryptographic. The value is normalized
// through a JSON round trip first so a struct written at Set time and the
// generic value read back at Get time digest identically.
func checksum(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	h := fnv.New64a()
	h.Write(canonical)
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
