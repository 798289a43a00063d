package sqlite

import (
	"database/sql"

	"github.com/vendapos/pos-edge-cache/internal/domain"
)

// PutResponse writes or replaces a cached HTTP response
func (s *Store) PutResponse(resp *domain.CachedResponse) error {
	query := `
		INSERT INTO response_cache (method, url, status, content_type, body, cache_name, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(method, url) DO UPDATE SET
			status = excluded.status,
			content_type = excluded.content_type,
			body = excluded.body,
			cache_name = excluded.cache_name,
			fetched_at = excluded.fetched_at
	`

	_, err := s.db.Exec(
		query,
		resp.Method, resp.URL, resp.Status, resp.ContentType,
		resp.Body, resp.CacheName, toMillis(resp.FetchedAt),
	)
	return err
}

// GetResponse retrieves a cached HTTP response. Returns (nil, nil) on miss.
func (s *Store) GetResponse(method, url string) (*domain.CachedResponse, error) {
	query := `
		SELECT method, url, status, content_type, body, cache_name, fetched_at
		FROM response_cache
		WHERE method = ? AND url = ?
	`

	resp := &domain.CachedResponse{}
	var fetchedAt int64

	err := s.db.QueryRow(query, method, url).Scan(
		&resp.Method, &resp.URL, &resp.Status, &resp.ContentType,
		&resp.Body, &resp.CacheName, &fetchedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	resp.FetchedAt = fromMillis(fetchedAt)
	return resp, nil
}

// PurgeOtherCaches removes responses written by any other gateway version
func (s *Store) PurgeOtherCaches(keep string) (int, error) {
	result, err := s.db.Exec("DELETE FROM response_cache WHERE cache_name != ?", keep)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
