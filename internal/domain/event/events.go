package event

import (
	"time"

	"github.com/vendapos/pos-edge-cache/internal/domain"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// ConnectivityChanged is raised when the monitor observes an online/offline
// transition
type ConnectivityChanged struct {
	BaseEvent
	Online bool
}

// EventName returns the event name
func (e ConnectivityChanged) EventName() string {
	return "connectivity.changed"
}

// NewConnectivityChanged creates a new ConnectivityChanged event
func NewConnectivityChanged(online bool) ConnectivityChanged {
	return ConnectivityChanged{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Online:    online,
	}
}

// QuotaPressure is raised when storage usage crosses a pressure threshold.
// Level is "warning" at 80% and "critical" at 90%; Evicted is the number of
// expired entries removed by the automatic cleanup (critical only).
type QuotaPressure struct {
	BaseEvent
	UsedPct float64
	Level   string
	Evicted int
}

// EventName returns the event name
func (e QuotaPressure) EventName() string {
	return "storage.quota_pressure"
}

// NewQuotaPressure creates a new QuotaPressure event
func NewQuotaPressure(usedPct float64, level string, evicted int) QuotaPressure {
	return QuotaPressure{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		UsedPct:   usedPct,
		Level:     level,
		Evicted:   evicted,
	}
}

// QueueItemFailed is raised when a sync queue item fails to replay.
// Permanent indicates the item has exhausted its retries and was removed.
type QueueItemFailed struct {
	BaseEvent
	ItemID    string
	Action    domain.Action
	Endpoint  string
	Attempts  int
	Permanent bool
	Error     string
}

// EventName returns the event name
func (e QueueItemFailed) EventName() string {
	return "queue.item_failed"
}

// NewQueueItemFailed creates a new QueueItemFailed event
func NewQueueItemFailed(itemID string, action domain.Action, endpoint string, attempts int, permanent bool, errMsg string) QueueItemFailed {
	return QueueItemFailed{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		ItemID:    itemID,
		Action:    action,
		Endpoint:  endpoint,
		Attempts:  attempts,
		Permanent: permanent,
		Error:     errMsg,
	}
}

// QueueDrained is raised after a drain pass completes
type QueueDrained struct {
	BaseEvent
	Replayed  int
	Failed    int
	Remaining int
	Duration  time.Duration
}

// EventName returns the event name
func (e QueueDrained) EventName() string {
	return "queue.drained"
}

// NewQueueDrained creates a new QueueDrained event
func NewQueueDrained(replayed, failed, remaining int, duration time.Duration) QueueDrained {
	return QueueDrained{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Replayed:  replayed,
		Failed:    failed,
		Remaining: remaining,
		Duration:  duration,
	}
}

// StatusSnapshot is the periodic status report combining connectivity,
// queue depth, and storage usage
type StatusSnapshot struct {
	BaseEvent
	Online        bool
	QueueSize     int
	LastSyncAt    time.Time
	StorageUsage  domain.StorageUsage
}

// EventName returns the event name
func (e StatusSnapshot) EventName() string {
	return "monitor.status"
}

// NewStatusSnapshot creates a new StatusSnapshot event
func NewStatusSnapshot(online bool, queueSize int, lastSyncAt time.Time, usage domain.StorageUsage) StatusSnapshot {
	return StatusSnapshot{
		BaseEvent:    BaseEvent{Timestamp: time.Now()},
		Online:       online,
		QueueSize:    queueSize,
		LastSyncAt:   lastSyncAt,
		StorageUsage: usage,
	}
}

// GatewayActivated is raised when a gateway version finishes activation and
// stale response caches have been dropped
type GatewayActivated struct {
	BaseEvent
	Version string
	Purged  int
}

// EventName returns the event name
func (e GatewayActivated) EventName() string {
	return "gateway.activated"
}

// NewGatewayActivated creates a new GatewayActivated event
func NewGatewayActivated(version string, purged int) GatewayActivated {
	return GatewayActivated{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Version:   version,
		Purged:    purged,
	}
}
