package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Ankit-Rajput1112/DECS-Project/cache"
	"github.com/Ankit-Rajput1112/DECS-Project/kv"
	"github.com/Ankit-Rajput1112/DECS-Project/metrics"
	"github.com/Ankit-Rajput1112/DECS-Project/ratelimit"
	"github.com/Ankit-Rajput1112/DECS-Project/store"
)

// memStore is a minimal in-memory store.Store for handler tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	v, ok := m.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	delete(m.data, key)
	return nil
}

func (m *memStore) LastError() string { return "" }
func (m *memStore) Close() error      { return nil }

func newTestHandler(t *testing.T, cfg Config) (http.Handler, *memStore, *metrics.Registry) {
	t.Helper()
	c, err := cache.New(16)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	ms := newMemStore()
	reg := metrics.NewRegistry()
	svc := kv.NewService(c, ms, reg, nil)
	return NewHandler(svc, reg, nil, cfg), ms, reg
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestPutGetDeleteRoundTrip(t *testing.T) {
	h, _, _ := newTestHandler(t, Config{})

	rec := do(t, h, http.MethodPut, "/kv/greeting", []byte("hello"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d, want 201", rec.Code)
	}
	if resp := decode(t, rec); resp.Status != "ok" {
		t.Fatalf("PUT status field = %q", resp.Status)
	}

	rec = do(t, h, http.MethodGet, "/kv/greeting", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
	resp := decode(t, rec)
	if string(resp.Value) != "hello" {
		t.Fatalf("GET value = %q, want %q", resp.Value, "hello")
	}

	rec = do(t, h, http.MethodDelete, "/kv/greeting", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d, want 200", rec.Code)
	}
	if resp := decode(t, rec); resp.Message != "deleted" {
		t.Fatalf("DELETE message = %q", resp.Message)
	}

	rec = do(t, h, http.MethodGet, "/kv/greeting", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET after delete = %d, want 404", rec.Code)
	}
}

func TestGetMissingKey(t *testing.T) {
	h, _, reg := newTestHandler(t, Config{})

	rec := do(t, h, http.MethodGet, "/kv/absent", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	resp := decode(t, rec)
	if resp.Status != "error" || resp.Error != "key not found" {
		t.Fatalf("envelope = %+v", resp)
	}
	if reg.Snapshot().TotalErrors != 1 {
		t.Fatalf("TotalErrors = %d, want 1 (counted at the transport boundary)",
			reg.Snapshot().TotalErrors)
	}
}

func TestBinaryValueSurvivesEnvelope(t *testing.T) {
	h, _, _ := newTestHandler(t, Config{})
	binary := []byte{0x00, 0x01, 0xfe, 0xff}

	if rec := do(t, h, http.MethodPut, "/kv/bin", binary); rec.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/kv/bin", nil)
	resp := decode(t, rec)
	if !bytes.Equal(resp.Value, binary) {
		t.Fatalf("value = %v, want %v", resp.Value, binary)
	}
}

func TestKeyWithSlashes(t *testing.T) {
	h, _, _ := newTestHandler(t, Config{})

	if rec := do(t, h, http.MethodPut, "/kv/a/b/c", []byte("nested")); rec.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/kv/a/b/c", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	if resp := decode(t, rec); string(resp.Value) != "nested" {
		t.Fatalf("value = %q", resp.Value)
	}
}

func TestDeleteAbsentKeyReturnsOK(t *testing.T) {
	h, _, _ := newTestHandler(t, Config{})

	rec := do(t, h, http.MethodDelete, "/kv/never-written", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (idempotent delete)", rec.Code)
	}
}

func TestStoreFailureReturns500(t *testing.T) {
	h, ms, _ := newTestHandler(t, Config{})
	ms.fail = context.DeadlineExceeded

	rec := do(t, h, http.MethodPut, "/kv/k", []byte("v"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if resp := decode(t, rec); resp.Status != "error" {
		t.Fatalf("envelope = %+v", resp)
	}
}

func TestWriteFailureKeepsOldValueReadable(t *testing.T) {
	h, ms, _ := newTestHandler(t, Config{})

	if rec := do(t, h, http.MethodPut, "/kv/k", []byte("v1")); rec.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d", rec.Code)
	}

	ms.mu.Lock()
	ms.fail = context.DeadlineExceeded
	ms.mu.Unlock()
	if rec := do(t, h, http.MethodPut, "/kv/k", []byte("v2")); rec.Code != http.StatusInternalServerError {
		t.Fatalf("failing PUT status = %d, want 500", rec.Code)
	}

	// The store is still unreachable, but the previous value is cached.
	rec := do(t, h, http.MethodGet, "/kv/k", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200 from cache", rec.Code)
	}
	if resp := decode(t, rec); string(resp.Value) != "v1" {
		t.Fatalf("value = %q, want the pre-failure %q", resp.Value, "v1")
	}
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler(t, Config{})

	rec := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp := decode(t, rec); resp.Status != "ok" {
		t.Fatalf("envelope = %+v", resp)
	}
}

func TestMetricsSnapshotEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t, Config{})

	do(t, h, http.MethodPut, "/kv/k", []byte("v"))
	do(t, h, http.MethodGet, "/kv/k", nil)
	do(t, h, http.MethodGet, "/kv/absent", nil)

	rec := do(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap metricsBody
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.TotalRequests != 3 {
		t.Fatalf("TotalRequests = %d, want 3", snap.TotalRequests)
	}
	if snap.CacheHits != 1 || snap.CacheMisses != 1 {
		t.Fatalf("hits=%d misses=%d, want 1/1", snap.CacheHits, snap.CacheMisses)
	}
	if snap.CacheHitRate != 50 {
		t.Fatalf("CacheHitRate = %v, want 50", snap.CacheHitRate)
	}
	if snap.CacheSize != 1 || snap.CacheCapacity != 16 {
		t.Fatalf("cache size/capacity = %d/%d, want 1/16", snap.CacheSize, snap.CacheCapacity)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	h, _, _ := newTestHandler(t, Config{
		RateLimit: ratelimit.NewLimiter(0.001, 2),
	})

	if rec := do(t, h, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("request 1 = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("request 2 = %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request 3 = %d, want 429", rec.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h, _, _ := newTestHandler(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "fixed-id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "fixed-id" {
		t.Fatalf("echoed request id = %q, want %q", got, "fixed-id")
	}

	// Absent header gets a generated ID.
	rec = do(t, h, http.MethodGet, "/health", nil)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a generated request id")
	}
}
