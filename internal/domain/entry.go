package domain

import (
	"encoding/json"
	"time"
)

// Default cache categories used by the POS frontend
const (
	CategoryGeneral   = "general"
	CategoryOrders    = "orders"
	CategoryProducts  = "products"
	CategoryCustomers = "customers"
)

// CacheEntry represents a single persisted cache record.
// Payload holds either the canonical JSON of the original value or its
// compression-encoded form, as indicated by Compressed.
type CacheEntry struct {
	Key            string    `json:"key"`
	Category       string    `json:"category"`
	Payload        string    `json:"payload"`
	Compressed     bool      `json:"compressed"`
	OriginalSize   int64     `json:"originalSize"`
	CompressedSize int64     `json:"compressedSize"`
	Checksum       string    `json:"checksum"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Expired reports whether the entry is past its expiry time.
// An expired entry is logically absent and must be treated as a miss.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Action identifies the kind of mutation a queue item replays.
type Action string

// Supported queue actions
const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Valid reports whether the action is one of the supported kinds.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Method returns the HTTP verb used to replay the action.
func (a Action) Method() string {
	switch a {
	case ActionCreate:
		return "POST"
	case ActionUpdate:
		return "PUT"
	case ActionDelete:
		return "DELETE"
	}
	return ""
}

// ActionFromMethod maps a mutating HTTP verb to its queue action.
// The second return is false for non-mutating verbs.
func ActionFromMethod(method string) (Action, bool) {
	switch method {
	case "POST":
		return ActionCreate, true
	case "PUT", "PATCH":
		return ActionUpdate, true
	case "DELETE":
		return ActionDelete, true
	}
	return "", false
}

// QueueItem is a single pending mutation in the sync queue.
// Items are ordered by ID (ULID: timestamp plus random suffix), which makes
// FIFO replay a simple ascending scan.
type QueueItem struct {
	ID         string          `json:"id"`
	Action     Action          `json:"action"`
	Endpoint   string          `json:"endpoint"`
	Data       json.RawMessage `json:"data,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Retries    int             `json:"retries"`
}

// MaxReplayRetries is the number of failed replay attempts after which a
// queue item is dropped and reported as permanently failed.
const MaxReplayRetries = 3

// CachedResponse is a stored HTTP response in the gateway's dynamic cache.
// This cache is independent of the entity cache; it is keyed by request
// method and URL and tagged with the gateway version that wrote it.
type CachedResponse struct {
	Method      string    `json:"method"`
	URL         string    `json:"url"`
	Status      int       `json:"status"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	CacheName   string    `json:"cacheName"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// CompressionStats aggregates compression results across all cache entries.
type CompressionStats struct {
	TotalItems      int     `json:"totalItems"`
	CompressedItems int     `json:"compressedItems"`
	OriginalBytes   int64   `json:"originalBytes"`
	CompressedBytes int64   `json:"compressedBytes"`
	AverageRatio    float64 `json:"averageRatio"`
}

// StorageUsage reports engine-level storage consumption against the
// configured quota, plus aggregate compression statistics.
type StorageUsage struct {
	UsedBytes      int64            `json:"usedBytes"`
	AvailableBytes int64            `json:"availableBytes"`
	QuotaBytes     int64            `json:"quotaBytes"`
	UsedPct        float64          `json:"usedPct"`
	Compression    CompressionStats `json:"compressionStats"`
}

// Snapshot is the exported backup/diagnostics format: every cache entry and
// every pending queue item at a point in time.
type Snapshot struct {
	Cache     []CacheEntry `json:"cache"`
	SyncQueue []QueueItem  `json:"syncQueue"`
	Timestamp time.Time    `json:"timestamp"`
}
