package port

import (
	"time"

	"github.com/vendapos/pos-edge-cache/internal/domain"
)

// CacheRepository persists cache entries
type CacheRepository interface {
	// Put writes or replaces an entry. The write is all-or-nothing: on
	// error the previous entry (if any) is unchanged.
	Put(entry *domain.CacheEntry) error
	// Get retrieves an entry by key. Returns (nil, nil) on miss.
	Get(key string) (*domain.CacheEntry, error)
	// Delete removes an entry. Deleting a missing key is not an error.
	Delete(key string) error
	// DeleteByCategory removes all entries tagged with the category and
	// returns how many were removed.
	DeleteByCategory(category string) (int, error)
	// DeleteExpired removes all entries past their expiry at the given
	// instant and returns how many were removed.
	DeleteExpired(now time.Time) (int, error)
	// All returns every entry, for snapshot export.
	All() ([]domain.CacheEntry, error)
	// Stats returns aggregate compression statistics.
	Stats() (*domain.CompressionStats, error)
}

// QueueRepository persists sync queue items
type QueueRepository interface {
	// Append adds an item to the queue. The item is durable when Append
	// returns.
	Append(item *domain.QueueItem) error
	// List returns all pending items in FIFO order (ascending ID).
	List() ([]domain.QueueItem, error)
	// UpdateRetries records a failed replay attempt.
	UpdateRetries(id string, retries int) error
	// DeleteItem removes an item after successful replay or retry
	// exhaustion.
	DeleteItem(id string) error
	// Count returns the number of pending items.
	Count() (int, error)
}

// ResponseCacheRepository persists the gateway's dynamic response cache.
// It is independent of the entity cache.
type ResponseCacheRepository interface {
	// PutResponse writes or replaces a cached response.
	PutResponse(resp *domain.CachedResponse) error
	// GetResponse retrieves a cached response. Returns (nil, nil) on miss.
	GetResponse(method, url string) (*domain.CachedResponse, error)
	// PurgeOtherCaches removes responses whose cache tag differs from
	// keep, returning how many were removed. Used on gateway activation.
	PurgeOtherCaches(keep string) (int, error)
}

// MetaRepository persists small pieces of component state (last sync
// attempt, active gateway version) across restarts.
type MetaRepository interface {
	// GetMeta returns the value for key, or "" when unset.
	GetMeta(key string) (string, error)
	// SetMeta writes or replaces the value for key.
	SetMeta(key, value string) error
}

// UsageReporter reports approximate on-disk size of the storage engine
type UsageReporter interface {
	// SizeBytes reports the approximate on-disk size of the store.
	SizeBytes() (int64, error)
}

// Store is the full persistent store contract
type Store interface {
	CacheRepository
	QueueRepository
	ResponseCacheRepository
	MetaRepository
	UsageReporter

	// Ping checks store connectivity
	Ping() error
	// Close closes the store
	Close() error
}
