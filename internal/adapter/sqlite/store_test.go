package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/vendapos/pos-edge-cache/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "edge-cache.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_CacheEntryLifecycle(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	entry := &domain.CacheEntry{
		Key:            "order:1001",
		Category:       domain.CategoryOrders,
		Payload:        `{"id":"1001","total":42.5}`,
		Compressed:     false,
		OriginalSize:   26,
		CompressedSize: 26,
		Checksum:       "a1b2c3",
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Hour),
	}

	if err := store.Put(entry); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get("order:1001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() = nil, want entry")
	}
	if got.Payload != entry.Payload || got.Category != entry.Category || got.Checksum != entry.Checksum {
		t.Errorf("Get() = %+v, want %+v", got, entry)
	}
	if !got.ExpiresAt.Equal(entry.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, entry.ExpiresAt)
	}

	// Overwrite is a full replace.
	entry.Payload = `{"id":"1001","total":50}`
	entry.Category = domain.CategoryGeneral
	if err := store.Put(entry); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}
	got, err = store.Get("order:1001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Payload != entry.Payload || got.Category != domain.CategoryGeneral {
		t.Errorf("overwrite not applied: %+v", got)
	}

	if err := store.Delete("order:1001"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, err = store.Get("order:1001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() after delete = %+v, want nil", got)
	}

	// Deleting again is a no-op.
	if err := store.Delete("order:1001"); err != nil {
		t.Errorf("Delete() second call error = %v", err)
	}
}

func TestStore_DeleteByCategory(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	for _, e := range []struct{ key, category string }{
		{"product:1", domain.CategoryProducts},
		{"product:2", domain.CategoryProducts},
		{"customer:1", domain.CategoryCustomers},
	} {
		err := store.Put(&domain.CacheEntry{
			Key: e.key, Category: e.category, Payload: "{}",
			CreatedAt: now, ExpiresAt: now.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("Put(%s) error = %v", e.key, err)
		}
	}

	removed, err := store.DeleteByCategory(domain.CategoryProducts)
	if err != nil {
		t.Fatalf("DeleteByCategory() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	// Second call is a no-op.
	removed, err = store.DeleteByCategory(domain.CategoryProducts)
	if err != nil {
		t.Fatalf("DeleteByCategory() second call error = %v", err)
	}
	if removed != 0 {
		t.Errorf("second removal = %d, want 0", removed)
	}

	got, err := store.Get("customer:1")
	if err != nil || got == nil {
		t.Errorf("other category entry lost: entry=%v err=%v", got, err)
	}
}

func TestStore_DeleteExpired(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	entries := []*domain.CacheEntry{
		{Key: "fresh", Category: "general", Payload: "{}", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
		{Key: "stale-1", Category: "general", Payload: "{}", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
		{Key: "stale-2", Category: "general", Payload: "{}", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Minute)},
	}
	for _, e := range entries {
		if err := store.Put(e); err != nil {
			t.Fatalf("Put(%s) error = %v", e.Key, err)
		}
	}

	removed, err := store.DeleteExpired(now)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalItems != 1 {
		t.Errorf("TotalItems = %d, want 1", stats.TotalItems)
	}
}

func TestStore_Stats(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	entries := []*domain.CacheEntry{
		{Key: "a", Category: "general", Payload: "x", Compressed: true, OriginalSize: 1000, CompressedSize: 400, CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
		{Key: "b", Category: "general", Payload: "y", Compressed: false, OriginalSize: 50, CompressedSize: 50, CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	}
	for _, e := range entries {
		if err := store.Put(e); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalItems != 2 || stats.CompressedItems != 1 {
		t.Errorf("items = %d/%d, want 2/1", stats.TotalItems, stats.CompressedItems)
	}
	if stats.OriginalBytes != 1050 || stats.CompressedBytes != 450 {
		t.Errorf("bytes = %d/%d, want 1050/450", stats.OriginalBytes, stats.CompressedBytes)
	}
	wantRatio := 450.0 / 1050.0
	if stats.AverageRatio < wantRatio-0.001 || stats.AverageRatio > wantRatio+0.001 {
		t.Errorf("AverageRatio = %f, want %f", stats.AverageRatio, wantRatio)
	}
}

func TestStore_QueueFIFO(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	ids := []string{
		"01ARZ3NDEKTSV4RRFFQ69G5FAA",
		"01ARZ3NDEKTSV4RRFFQ69G5FAB",
		"01ARZ3NDEKTSV4RRFFQ69G5FAC",
	}
	for i, id := range ids {
		err := store.Append(&domain.QueueItem{
			ID:         id,
			Action:     domain.ActionCreate,
			Endpoint:   "/api/orders",
			Data:       []byte(`{"n":1}`),
			EnqueuedAt: now.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	items, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	for i, item := range items {
		if item.ID != ids[i] {
			t.Errorf("items[%d].ID = %s, want %s", i, item.ID, ids[i])
		}
	}

	if err := store.UpdateRetries(ids[0], 2); err != nil {
		t.Fatalf("UpdateRetries() error = %v", err)
	}
	items, _ = store.List()
	if items[0].Retries != 2 {
		t.Errorf("Retries = %d, want 2", items[0].Retries)
	}

	if err := store.DeleteItem(ids[1]); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestStore_ResponseCache(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	responses := []*domain.CachedResponse{
		{Method: "GET", URL: "/api/products", Status: 200, ContentType: "application/json", Body: []byte(`[]`), CacheName: "pos-dynamic-v1", FetchedAt: now},
		{Method: "GET", URL: "/index.html", Status: 200, ContentType: "text/html", Body: []byte("<html></html>"), CacheName: "pos-shell-v1", FetchedAt: now},
		{Method: "GET", URL: "/old.js", Status: 200, ContentType: "text/javascript", Body: []byte("//"), CacheName: "pos-static-v0", FetchedAt: now},
	}
	for _, r := range responses {
		if err := store.PutResponse(r); err != nil {
			t.Fatalf("PutResponse() error = %v", err)
		}
	}

	got, err := store.GetResponse("GET", "/api/products")
	if err != nil {
		t.Fatalf("GetResponse() error = %v", err)
	}
	if got == nil || got.Status != 200 || string(got.Body) != "[]" {
		t.Errorf("GetResponse() = %+v", got)
	}

	got, err = store.GetResponse("GET", "/missing")
	if err != nil {
		t.Fatalf("GetResponse() miss error = %v", err)
	}
	if got != nil {
		t.Errorf("GetResponse() miss = %+v, want nil", got)
	}

	// Activation purge keeps only responses matching the current tag. The
	// shell cache here is a different tag, so only same-tag rows survive.
	purged, err := store.PurgeOtherCaches("pos-dynamic-v1")
	if err != nil {
		t.Fatalf("PurgeOtherCaches() error = %v", err)
	}
	if purged != 2 {
		t.Errorf("purged = %d, want 2", purged)
	}
}

func TestStore_Meta(t *testing.T) {
	store := openTestStore(t)

	value, err := store.GetMeta("last_sync_at")
	if err != nil {
		t.Fatalf("GetMeta() error = %v", err)
	}
	if value != "" {
		t.Errorf("GetMeta() unset = %q, want empty", value)
	}

	if err := store.SetMeta("last_sync_at", "2026-08-28T10:00:00Z"); err != nil {
		t.Fatalf("SetMeta() error = %v", err)
	}
	if err := store.SetMeta("last_sync_at", "2026-08-28T11:00:00Z"); err != nil {
		t.Fatalf("SetMeta() overwrite error = %v", err)
	}

	value, err = store.GetMeta("last_sync_at")
	if err != nil {
		t.Fatalf("GetMeta() error = %v", err)
	}
	if value != "2026-08-28T11:00:00Z" {
		t.Errorf("GetMeta() = %q", value)
	}
}
