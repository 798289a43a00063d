package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/vendapos/pos-edge-cache/internal/domain"
	"github.com/vendapos/pos-edge-cache/internal/domain/event"
	"github.com/vendapos/pos-edge-cache/internal/port"
	"github.com/vendapos/pos-edge-cache/internal/service/monitor"
	"github.com/vendapos/pos-edge-cache/internal/service/syncqueue"
)

// mockBackend serves scripted responses keyed by "METHOD url"
type mockBackend struct {
	mu        sync.Mutex
	reachable bool
	responses map[string]*port.BackendResponse
	calls     []string
}

func newMockBackend() *mockBackend {
	return &mockBackend{responses: make(map[string]*port.BackendResponse)}
}

func (m *mockBackend) Do(ctx context.Context, method, endpoint string, body []byte) (*port.BackendResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method+" "+endpoint)
	if !m.reachable {
		return nil, fmt.Errorf("connection refused")
	}
	if resp, ok := m.responses[method+" "+endpoint]; ok {
		return resp, nil
	}
	return &port.BackendResponse{Status: http.StatusNotFound}, nil
}

func (m *mockBackend) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.reachable {
		return fmt.Errorf("connection refused")
	}
	return nil
}

// mockResponseCache is an in-memory port.ResponseCacheRepository
type mockResponseCache struct {
	mu        sync.Mutex
	responses map[string]*domain.CachedResponse
}

func newMockResponseCache() *mockResponseCache {
	return &mockResponseCache{responses: make(map[string]*domain.CachedResponse)}
}

func (m *mockResponseCache) PutResponse(resp *domain.CachedResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *resp
	m.responses[resp.Method+" "+resp.URL] = &clone
	return nil
}

func (m *mockResponseCache) GetResponse(method, url string) (*domain.CachedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if resp, ok := m.responses[method+" "+url]; ok {
		clone := *resp
		return &clone, nil
	}
	return nil, nil
}

func (m *mockResponseCache) PurgeOtherCaches(keep string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int
	for key, resp := range m.responses {
		if resp.CacheName != keep {
			delete(m.responses, key)
			purged++
		}
	}
	return purged, nil
}

// mockMeta is an in-memory port.MetaRepository
type mockMeta struct {
	mu     sync.Mutex
	values map[string]string
}

func newMockMeta() *mockMeta {
	return &mockMeta{values: make(map[string]string)}
}

func (m *mockMeta) GetMeta(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *mockMeta) SetMeta(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// mockCacheExport satisfies the Cache surface
type mockCacheExport struct{}

func (m *mockCacheExport) Export() (*domain.Snapshot, error) {
	return &domain.Snapshot{Timestamp: time.Now()}, nil
}

// mockQueue records enqueued mutations
type mockQueue struct {
	mu    sync.Mutex
	items []domain.QueueItem
}

func (m *mockQueue) Enqueue(ctx context.Context, action domain.Action, endpoint string, data json.RawMessage) (*domain.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := domain.QueueItem{
		ID:         ulid.Make().String(),
		Action:     action,
		Endpoint:   endpoint,
		Data:       data,
		EnqueuedAt: time.Now(),
	}
	m.items = append(m.items, item)
	return &item, nil
}

func (m *mockQueue) Drain(ctx context.Context) error { return nil }

func (m *mockQueue) Pending() ([]domain.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.QueueItem(nil), m.items...), nil
}

func (m *mockQueue) Size() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

// mockMonitor is a settable connectivity flag
type mockMonitor struct {
	mu     sync.Mutex
	online bool
}

func (m *mockMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *mockMonitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = online
}

func (m *mockMonitor) Status() (*monitor.Status, error) {
	return &monitor.Status{Online: m.Online(), CheckedAt: time.Now()}, nil
}

type testGateway struct {
	gateway   *Service
	backend   *mockBackend
	responses *mockResponseCache
	meta      *mockMeta
	queue     *mockQueue
	monitor   *mockMonitor
}

func newTestGateway(t *testing.T, cfg *Config) *testGateway {
	t.Helper()

	tg := &testGateway{
		backend:   newMockBackend(),
		responses: newMockResponseCache(),
		meta:      newMockMeta(),
		queue:     &mockQueue{},
		monitor:   &mockMonitor{},
	}
	tg.gateway = New(cfg, tg.backend, tg.responses, tg.meta, &mockCacheExport{}, tg.queue, tg.monitor, event.NewNullDispatcher(), zap.NewNop())
	return tg
}

func (tg *testGateway) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	tg.gateway.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestGateway_OfflineOrderSubmissionQueues(t *testing.T) {
	tg := newTestGateway(t, nil)
	tg.monitor.SetOnline(context.Background(), false)

	order := `{"items":[{"sku":"espresso","qty":2}],"total":7.00}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(order))
	rec := tg.do(req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["status"] != "queued" {
		t.Errorf("response status = %v, want queued", resp["status"])
	}
	if resp["offline"] != true {
		t.Errorf("response offline = %v, want true", resp["offline"])
	}
	id, _ := resp["id"].(string)
	if !strings.HasPrefix(id, "local-") {
		t.Errorf("response id = %q, want local- prefix", id)
	}

	items, _ := tg.queue.Pending()
	if len(items) != 1 {
		t.Fatalf("queued items = %d, want 1", len(items))
	}
	if items[0].Action != domain.ActionCreate {
		t.Errorf("queued action = %q, want %q", items[0].Action, domain.ActionCreate)
	}
	if items[0].Endpoint != "/api/orders" {
		t.Errorf("queued endpoint = %q, want /api/orders", items[0].Endpoint)
	}
	if string(items[0].Data) != order {
		t.Errorf("queued data = %s, want %s", items[0].Data, order)
	}
}

func TestGateway_DataAPINetworkFirstWithCacheFallback(t *testing.T) {
	tg := newTestGateway(t, nil)
	tg.backend.reachable = true
	tg.backend.responses["GET /api/products?category=coffee"] = &port.BackendResponse{
		Status:      http.StatusOK,
		ContentType: "application/json",
		Body:        []byte(`{"products":[{"sku":"espresso"}]}`),
	}
	tg.monitor.SetOnline(context.Background(), true)

	// Online: proxied and recorded.
	req := httptest.NewRequest(http.MethodGet, "/api/products?category=coffee", nil)
	rec := tg.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("online status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Cache") != "" {
		t.Errorf("online response marked as cache hit")
	}

	// Offline: served from the dynamic response cache.
	tg.monitor.SetOnline(context.Background(), false)
	rec = tg.do(httptest.NewRequest(http.MethodGet, "/api/products?category=coffee", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("offline status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Cache") != "hit" {
		t.Errorf("offline response not marked as cache hit")
	}
	if !strings.Contains(rec.Body.String(), "espresso") {
		t.Errorf("offline body = %s, want cached product payload", rec.Body.String())
	}
}

func TestGateway_OfflineSynthesizedPayloads(t *testing.T) {
	tg := newTestGateway(t, nil)
	tg.monitor.SetOnline(context.Background(), false)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantField  string
	}{
		{"terminal config", "/api/terminal/config", http.StatusOK, "terminalId"},
		{"product list", "/api/products", http.StatusOK, "products"},
		{"unknown endpoint", "/api/reports/daily", http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tg.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid response JSON: %v", err)
			}
			if _, ok := resp[tt.wantField]; !ok {
				t.Errorf("response %v missing field %q", resp, tt.wantField)
			}
			if resp["offline"] != true {
				t.Errorf("response offline = %v, want true", resp["offline"])
			}
		})
	}
}

func TestGateway_NavigationFallsBackToShell(t *testing.T) {
	tg := newTestGateway(t, nil)
	tg.monitor.SetOnline(context.Background(), false)

	nav := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/orders/history", nil)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		return req
	}

	// No shell cached: generated offline page.
	rec := tg.do(nav())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "offline") {
		t.Errorf("body = %s, want generated offline page", rec.Body.String())
	}

	// Shell cached: served instead of the generated page.
	shell := []byte(`<!DOCTYPE html><html><body id="app">POS</body></html>`)
	if err := tg.responses.PutResponse(&domain.CachedResponse{
		Method:      http.MethodGet,
		URL:         "/",
		Status:      http.StatusOK,
		ContentType: "text/html",
		Body:        shell,
		CacheName:   "pos-v1",
		FetchedAt:   time.Now(),
	}); err != nil {
		t.Fatalf("failed to seed shell: %v", err)
	}

	rec = tg.do(nav())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != string(shell) {
		t.Errorf("body = %s, want cached shell", rec.Body.String())
	}
}

func TestGateway_StaticAssetsCacheFirst(t *testing.T) {
	tg := newTestGateway(t, nil)
	tg.backend.reachable = true
	tg.backend.responses["GET /assets/app.js"] = &port.BackendResponse{
		Status:      http.StatusOK,
		ContentType: "application/javascript",
		Body:        []byte(`console.log("pos")`),
	}
	tg.monitor.SetOnline(context.Background(), true)

	// First request fetches and stores.
	rec := tg.do(httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// Second request is a cache hit; the backend is not consulted again.
	before := len(tg.backend.calls)
	rec = tg.do(httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Cache") != "hit" {
		t.Errorf("second fetch not marked as cache hit")
	}
	if len(tg.backend.calls) != before {
		t.Errorf("backend consulted on cache hit")
	}
}

func TestGateway_InstallPrecachesShell(t *testing.T) {
	tg := newTestGateway(t, nil)
	tg.backend.reachable = true
	tg.backend.responses["GET /"] = &port.BackendResponse{
		Status:      http.StatusOK,
		ContentType: "text/html",
		Body:        []byte("<html>shell</html>"),
	}
	tg.backend.responses["GET /index.html"] = &port.BackendResponse{
		Status:      http.StatusOK,
		ContentType: "text/html",
		Body:        []byte("<html>shell</html>"),
	}

	tg.gateway.install(context.Background())

	if tg.gateway.State() != StateInstalled {
		t.Errorf("state = %v, want installed", tg.gateway.State())
	}
	cached, err := tg.responses.GetResponse(http.MethodGet, "/index.html")
	if err != nil || cached == nil {
		t.Fatalf("shell asset not precached (err=%v)", err)
	}
	if cached.CacheName != "pos-v1" {
		t.Errorf("shell cache name = %q, want pos-v1", cached.CacheName)
	}
}

func TestGateway_ActivationPurgesStaleCaches(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = "v2"
	tg := newTestGateway(t, cfg)

	stale := &domain.CachedResponse{
		Method: http.MethodGet, URL: "/api/old", Status: http.StatusOK,
		Body: []byte("{}"), CacheName: "pos-v1", FetchedAt: time.Now(),
	}
	current := &domain.CachedResponse{
		Method: http.MethodGet, URL: "/api/new", Status: http.StatusOK,
		Body: []byte("{}"), CacheName: "pos-v2", FetchedAt: time.Now(),
	}
	if err := tg.responses.PutResponse(stale); err != nil {
		t.Fatal(err)
	}
	if err := tg.responses.PutResponse(current); err != nil {
		t.Fatal(err)
	}

	tg.gateway.Activate()

	if tg.gateway.State() != StateActivated {
		t.Errorf("state = %v, want activated", tg.gateway.State())
	}
	if got, _ := tg.responses.GetResponse(http.MethodGet, "/api/old"); got != nil {
		t.Errorf("stale cache entry survived activation")
	}
	if got, _ := tg.responses.GetResponse(http.MethodGet, "/api/new"); got == nil {
		t.Errorf("current cache entry purged by activation")
	}
	if v, _ := tg.meta.GetMeta("gateway_active_version"); v != "v2" {
		t.Errorf("active version = %q, want v2", v)
	}
}

func TestGateway_AdminEndpointsRequireAuth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdminUsername = "admin"
	cfg.AdminPassword = "secret"
	tg := newTestGateway(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
	rec := tg.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
	req.SetBasicAuth("admin", "secret")
	rec = tg.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", rec.Code)
	}
}

// memQueueRepo is an in-memory port.QueueRepository for end-to-end tests
type memQueueRepo struct {
	mu    sync.Mutex
	items map[string]*domain.QueueItem
}

func (m *memQueueRepo) Append(item *domain.QueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *item
	m.items[item.ID] = &clone
	return nil
}

func (m *memQueueRepo) List() ([]domain.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.QueueItem, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memQueueRepo) UpdateRetries(id string, retries int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		item.Retries = retries
	}
	return nil
}

func (m *memQueueRepo) DeleteItem(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memQueueRepo) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func TestGateway_OfflineOrderSyncsWhenBackOnline(t *testing.T) {
	backend := newMockBackend()
	backend.responses["POST /api/orders"] = &port.BackendResponse{
		Status:      http.StatusCreated,
		ContentType: "application/json",
		Body:        []byte(`{"id":"order-42"}`),
	}

	queueSvc := syncqueue.New(nil,
		&memQueueRepo{items: make(map[string]*domain.QueueItem)},
		newMockMeta(), backend, event.NewNullDispatcher(), zap.NewNop())

	mon := &mockMonitor{}
	gw := New(nil, backend, newMockResponseCache(), newMockMeta(),
		&mockCacheExport{}, queueSvc, mon, event.NewNullDispatcher(), zap.NewNop())

	// Offline order submission is acknowledged as queued.
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"total":12.5}`))
	rec := httptest.NewRecorder()
	gw.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("offline submission status = %d, want 202", rec.Code)
	}
	if size, _ := queueSvc.Size(); size != 1 {
		t.Fatalf("queue size = %d, want 1", size)
	}

	// Back online: draining replays the order and empties the queue.
	backend.reachable = true
	mon.SetOnline(context.Background(), true)
	if err := queueSvc.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if size, _ := queueSvc.Size(); size != 0 {
		t.Errorf("queue size after drain = %d, want 0", size)
	}
	var posts int
	for _, call := range backend.calls {
		if call == "POST /api/orders" {
			posts++
		}
	}
	if posts != 1 {
		t.Errorf("order POST replays = %d, want 1", posts)
	}
}

func TestGateway_DebugQueueListsPending(t *testing.T) {
	tg := newTestGateway(t, nil)
	tg.monitor.SetOnline(context.Background(), false)

	tg.do(httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"total":1}`)))

	rec := tg.do(httptest.NewRequest(http.MethodGet, "/debug/queue", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Count int                `json:"count"`
		Items []domain.QueueItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Count != 1 || len(resp.Items) != 1 {
		t.Fatalf("count = %d items = %d, want 1", resp.Count, len(resp.Items))
	}
	if resp.Items[0].Endpoint != "/api/orders" {
		t.Errorf("item endpoint = %q, want /api/orders", resp.Items[0].Endpoint)
	}
}
