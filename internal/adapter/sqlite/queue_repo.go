package sqlite

import (
	"github.com/vendapos/pos-edge-cache/internal/domain"
)

// Append adds an item to the sync queue. The row is durable when the call
// returns.
func (s *Store) Append(item *domain.QueueItem) error {
	query := `
		INSERT INTO sync_queue (id, action, endpoint, data, enqueued_at, retries)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var data []byte
	if len(item.Data) > 0 {
		data = []byte(item.Data)
	}

	_, err := s.db.Exec(
		query,
		item.ID, string(item.Action), item.Endpoint, data,
		toMillis(item.EnqueuedAt), item.Retries,
	)
	return err
}

// List returns all pending items in FIFO order. ULIDs sort by creation
// time, so ascending ID is enqueue order.
func (s *Store) List() ([]domain.QueueItem, error) {
	query := `
		SELECT id, action, endpoint, data, enqueued_at, retries
		FROM sync_queue
		ORDER BY id ASC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.QueueItem
	for rows.Next() {
		var item domain.QueueItem
		var action string
		var data []byte
		var enqueuedAt int64

		if err := rows.Scan(&item.ID, &action, &item.Endpoint, &data, &enqueuedAt, &item.Retries); err != nil {
			return nil, err
		}

		item.Action = domain.Action(action)
		if len(data) > 0 {
			item.Data = data
		}
		item.EnqueuedAt = fromMillis(enqueuedAt)
		items = append(items, item)
	}

	return items, rows.Err()
}

// UpdateRetries records a failed replay attempt for an item
func (s *Store) UpdateRetries(id string, retries int) error {
	_, err := s.db.Exec("UPDATE sync_queue SET retries = ? WHERE id = ?", retries, id)
	return err
}

// DeleteItem removes an item from the queue
func (s *Store) DeleteItem(id string) error {
	_, err := s.db.Exec("DELETE FROM sync_queue WHERE id = ?", id)
	return err
}

// Count returns the number of pending items
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sync_queue").Scan(&count)
	return count, err
}
