package sqlite

import (
	"database/sql"
	"time"

	"github.com/vendapos/pos-edge-cache/internal/domain"
)

// Put writes or replaces a cache entry. A single UPSERT keeps the write
// all-or-nothing: on failure the previous row is untouched.
func (s *Store) Put(entry *domain.CacheEntry) error {
	query := `
		INSERT INTO cache_entries (
			key, category, payload, compressed,
			original_size, compressed_size, checksum,
			created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			category = excluded.category,
			payload = excluded.payload,
			compressed = excluded.compressed,
			original_size = excluded.original_size,
			compressed_size = excluded.compressed_size,
			checksum = excluded.checksum,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`

	_, err := s.db.Exec(
		query,
		entry.Key, entry.Category, entry.Payload, entry.Compressed,
		entry.OriginalSize, entry.CompressedSize, entry.Checksum,
		toMillis(entry.CreatedAt), toMillis(entry.ExpiresAt),
	)
	return err
}

// Get retrieves a cache entry by key. Returns (nil, nil) on miss.
func (s *Store) Get(key string) (*domain.CacheEntry, error) {
	query := `
		SELECT key, category, payload, compressed,
			   original_size, compressed_size, checksum,
			   created_at, expires_at
		FROM cache_entries
		WHERE key = ?
	`

	entry := &domain.CacheEntry{}
	var createdAt, expiresAt int64

	err := s.db.QueryRow(query, key).Scan(
		&entry.Key, &entry.Category, &entry.Payload, &entry.Compressed,
		&entry.OriginalSize, &entry.CompressedSize, &entry.Checksum,
		&createdAt, &expiresAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entry.CreatedAt = fromMillis(createdAt)
	entry.ExpiresAt = fromMillis(expiresAt)
	return entry, nil
}

// Delete removes a cache entry by key. Idempotent.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM cache_entries WHERE key = ?", key)
	return err
}

// DeleteByCategory removes all entries tagged with the category
func (s *Store) DeleteByCategory(category string) (int, error) {
	result, err := s.db.Exec("DELETE FROM cache_entries WHERE category = ?", category)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// DeleteExpired removes all entries past their expiry at the given instant
func (s *Store) DeleteExpired(now time.Time) (int, error) {
	result, err := s.db.Exec("DELETE FROM cache_entries WHERE expires_at < ?", toMillis(now))
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// All returns every cache entry ordered by key, for snapshot export
func (s *Store) All() ([]domain.CacheEntry, error) {
	query := `
		SELECT key, category, payload, compressed,
			   original_size, compressed_size, checksum,
			   created_at, expires_at
		FROM cache_entries
		ORDER BY key
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.CacheEntry
	for rows.Next() {
		var entry domain.CacheEntry
		var createdAt, expiresAt int64

		err := rows.Scan(
			&entry.Key, &entry.Category, &entry.Payload, &entry.Compressed,
			&entry.OriginalSize, &entry.CompressedSize, &entry.Checksum,
			&createdAt, &expiresAt,
		)
		if err != nil {
			return nil, err
		}

		entry.CreatedAt = fromMillis(createdAt)
		entry.ExpiresAt = fromMillis(expiresAt)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Stats returns aggregate compression statistics across all entries
func (s *Store) Stats() (*domain.CompressionStats, error) {
	stats := &domain.CompressionStats{}

	var originalBytes, compressedBytes sql.NullInt64
	err := s.db.QueryRow(`
		SELECT COUNT(*),
			   COUNT(CASE WHEN compressed THEN 1 END),
			   SUM(original_size),
			   SUM(compressed_size)
		FROM cache_entries
	`).Scan(&stats.TotalItems, &stats.CompressedItems, &originalBytes, &compressedBytes)
	if err != nil {
		return nil, err
	}

	stats.OriginalBytes = originalBytes.Int64
	stats.CompressedBytes = compressedBytes.Int64
	if stats.OriginalBytes > 0 {
		stats.AverageRatio = float64(stats.CompressedBytes) / float64(stats.OriginalBytes)
	}

	return stats, nil
}
