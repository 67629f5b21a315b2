package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Akansha-Mulchandani/GAIA/internal/cache"
	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

// sleepRecorder replaces real backoff waits and records requested delays.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *sleepRecorder) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	rec := &sleepRecorder{}
	c := New(Config{
		BaseURL: server.URL + "/api/",
		Cache:   cache.New(nil),
		Sleep:   rec.sleep,
	})
	return c, rec
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/edge/nodes", "/edge/nodes"},
		{"api/edge/nodes", "/edge/nodes"},
		{"/edge/nodes", "/edge/nodes"},
		{"edge/nodes", "/edge/nodes"},
		{"//edge/nodes", "/edge/nodes"},
		{"/api", "/"},
		{"/apiary/list", "/apiary/list"},
		{"", "/"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestURL_NeverDoublesNamespace(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:8000/api/"})
	for _, p := range []string{"/api/edge/nodes", "edge/nodes", "/edge/nodes"} {
		got := c.URL(p)
		if got != "http://localhost:8000/api/edge/nodes" {
			t.Errorf("URL(%q) = %q", p, got)
		}
		if strings.Count(got, "/api/") != 1 {
			t.Errorf("URL(%q) contains namespace twice: %q", p, got)
		}
	}

	abs := "https://example.org/api/api/x"
	if got := c.URL(abs); got != abs {
		t.Errorf("URL(absolute) = %q, want verbatim", got)
	}
}

func TestRootURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000/api", "http://localhost:8000/health"},
		{"http://localhost:8000/api/", "http://localhost:8000/health"},
		{"http://backend:8000", "http://backend:8000/health"},
	}
	for _, tt := range tests {
		c := New(Config{BaseURL: tt.base})
		if got := c.RootURL("/health"); got != tt.want {
			t.Errorf("RootURL with base %q = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestPing(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":"ok"}`))
	})

	if err := c.Ping(context.Background(), time.Second); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if gotPath != "/health" {
		t.Errorf("path = %q, want /health", gotPath)
	}
}

func TestHeaderRules(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string]http.Header{}
	)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Method] = r.Header.Clone()
		mu.Unlock()
		_, _ = io.WriteString(w, `{}`)
	})
	ctx := context.Background()

	get := &Request{Header: http.Header{"X-Trace": {"abc"}}}
	if _, err := c.Execute(ctx, "/edge/nodes", get, time.Second); err != nil {
		t.Fatalf("GET: %v", err)
	}
	post, _ := NewJSONRequest(http.MethodPost, map[string]int{"n": 1})
	if _, err := c.Execute(ctx, "/simulation/create", post, time.Second); err != nil {
		t.Fatalf("POST: %v", err)
	}
	put := &Request{Method: "put", Header: http.Header{"Content-Type": {"text/plain"}}, Body: []byte("x")}
	if _, err := c.Execute(ctx, "/scenarios", put, time.Second); err != nil {
		t.Fatalf("PUT: %v", err)
	}

	if ct := seen[http.MethodGet].Get("Content-Type"); ct != "" {
		t.Errorf("GET Content-Type = %q, want none", ct)
	}
	if got := seen[http.MethodGet].Get("X-Trace"); got != "abc" {
		t.Errorf("GET X-Trace = %q, want passthrough", got)
	}
	if ct := seen[http.MethodPost].Get("Content-Type"); ct != "application/json" {
		t.Errorf("POST Content-Type = %q", ct)
	}
	if id := seen[http.MethodPost].Get(RequestIDHeader); !core.IsValidUUID(id) {
		t.Errorf("POST %s = %q, want uuid", RequestIDHeader, id)
	}
	if id := seen[http.MethodGet].Get(RequestIDHeader); id != "" {
		t.Errorf("GET %s = %q, want none", RequestIDHeader, id)
	}
	if ct := seen[http.MethodPut].Get("Content-Type"); ct != "text/plain" {
		t.Errorf("PUT Content-Type = %q, caller value must win", ct)
	}
	if get.Header.Get("Content-Type") != "" || len(get.Header) != 1 {
		t.Error("caller headers were mutated")
	}
}

func TestExecute_ErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail", 404, `{"detail":"Simulation not found"}`, "Simulation not found"},
		{"message", 400, `{"message":"bad scenario"}`, "bad scenario"},
		{"detail wins", 422, `{"detail":"d","message":"m"}`, "d"},
		{"detail list", 422, `{"detail":[{"loc":["body"],"msg":"field required"}]}`, `[{"loc":["body"],"msg":"field required"}]`},
		{"json without fields", 400, `{"error":"x"}`, `{"error":"x"}`},
		{"raw text", 400, "plain failure", "plain failure"},
		{"empty body", 404, "", "404 Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Execute(context.Background(), "/x", nil, time.Second)
			var apiErr *core.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *core.APIError", err)
			}
			if apiErr.Kind != core.KindHTTP || apiErr.Status != tt.status {
				t.Errorf("kind/status = %s/%d", apiErr.Kind, apiErr.Status)
			}
			if apiErr.Message != tt.want {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.want)
			}
		})
	}
}

func TestExecute_Timeout(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	_, err := c.Execute(context.Background(), "/slow", nil, 20*time.Millisecond)
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v", err)
	}
	if apiErr.Kind != core.KindTimeout || apiErr.Status != 408 || apiErr.Message != core.TimeoutMessage {
		t.Errorf("got %+v, want timeout 408", apiErr)
	}
}

func TestExecute_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := New(Config{BaseURL: url + "/api"})
	_, err := c.Execute(context.Background(), "/x", nil, time.Second)
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v", err)
	}
	if apiErr.Kind != core.KindTransport || apiErr.Status != 0 {
		t.Errorf("got %+v, want transport with status 0", apiErr)
	}
}

func TestFetchWithRetry_SucceedsAfterServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	resp, err := c.FetchWithRetry(context.Background(), "/edge/nodes", nil, 2, time.Second)
	if err != nil {
		t.Fatalf("FetchWithRetry: %v", err)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("body = %s", resp.Body)
	}
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", calls.Load())
	}
	delays := rec.recorded()
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Errorf("delays = %v, want [1s 2s]", delays)
	}
}

func TestFetchWithRetry_NonRetryableStopsImmediately(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 422} {
		var calls atomic.Int32
		c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"detail":"nope"}`)
		})

		_, err := c.FetchWithRetry(context.Background(), "/x", nil, 3, time.Second)
		var apiErr *core.APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != core.KindHTTP || apiErr.Status != status {
			t.Errorf("status %d: error = %v", status, err)
		}
		if calls.Load() != 1 {
			t.Errorf("status %d: attempts = %d, want 1", status, calls.Load())
		}
		if len(rec.recorded()) != 0 {
			t.Errorf("status %d: slept %v", status, rec.recorded())
		}
	}
}

func TestFetchWithRetry_RetryableStatuses(t *testing.T) {
	for _, status := range []int{408, 429, 500, 502, 503} {
		var calls atomic.Int32
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
		})
		_, _ = c.FetchWithRetry(context.Background(), "/x", nil, 2, time.Second)
		if calls.Load() != 3 {
			t.Errorf("status %d: attempts = %d, want 3", status, calls.Load())
		}
	}
}

func TestFetchWithRetry_Exhausted(t *testing.T) {
	var calls atomic.Int32
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"detail":"database down"}`)
	})

	_, err := c.FetchWithRetry(context.Background(), "/x", nil, 4, time.Second)
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v", err)
	}
	if apiErr.Kind != core.KindExhausted {
		t.Errorf("kind = %s, want exhausted", apiErr.Kind)
	}
	if apiErr.Message != "Failed to fetch: database down" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if apiErr.Status != 500 {
		t.Errorf("status = %d, want last attempt's 500", apiErr.Status)
	}
	if calls.Load() != 5 {
		t.Errorf("attempts = %d, want 5", calls.Load())
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	got := rec.recorded()
	if len(got) != len(want) {
		t.Fatalf("delays = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFetchWithRetry_ZeroRetries(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.FetchWithRetry(context.Background(), "/x", nil, 0, time.Second)
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != core.KindExhausted {
		t.Errorf("error = %v, want exhausted", err)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts = %d, want 1", calls.Load())
	}
}

func TestFetchWithRetry_ResendsBody(t *testing.T) {
	var (
		calls  atomic.Int32
		mu     sync.Mutex
		bodies []string
	)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	})

	req, _ := NewJSONRequest(http.MethodPost, map[string]string{"name": "drought"})
	if _, err := c.FetchWithRetry(context.Background(), "/simulation/create", req, 1, time.Second); err != nil {
		t.Fatalf("FetchWithRetry: %v", err)
	}
	if len(bodies) != 2 || bodies[0] != bodies[1] || bodies[1] != `{"name":"drought"}` {
		t.Errorf("bodies = %q", bodies)
	}
}

func TestFetchWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(Config{
		BaseURL: server.URL,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})

	_, err := c.FetchWithRetry(ctx, "/x", nil, 5, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled in chain", err)
	}
}

func TestCachedFetchJSON_ServesFreshCopy(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"nodes":[1,2]}`)
	})
	ctx := context.Background()
	opts := DefaultCacheOptions()

	for i := 0; i < 3; i++ {
		got, err := c.CachedFetchJSON(ctx, "/edge/nodes", nil, opts)
		if err != nil {
			t.Fatalf("CachedFetchJSON: %v", err)
		}
		if string(got) != `{"nodes":[1,2]}` {
			t.Errorf("payload = %s", got)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("network calls = %d, want 1", calls.Load())
	}
}

func TestCachedFetchJSON_ZeroTTLAlwaysFetchesButStores(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"clusters":[]}`)
	})
	ctx := context.Background()

	opts := DefaultCacheOptions()
	opts.TTL = 0
	for i := 0; i < 2; i++ {
		if _, err := c.CachedFetchJSON(ctx, "/species/clusters", nil, opts); err != nil {
			t.Fatalf("CachedFetchJSON: %v", err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("network calls = %d, want 2", calls.Load())
	}

	// A later reader with a positive TTL sees the stored copy.
	if _, err := c.CachedFetchJSON(ctx, "/species/clusters", nil, DefaultCacheOptions()); err != nil {
		t.Fatalf("CachedFetchJSON: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("network calls = %d, want cached read", calls.Load())
	}
}

func TestCachedFetchJSON_Disabled(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `[]`)
	})
	opts := DefaultCacheOptions()
	opts.Disable = true
	for i := 0; i < 2; i++ {
		_, _ = c.CachedFetchJSON(context.Background(), "/x", nil, opts)
	}
	if calls.Load() != 2 {
		t.Errorf("network calls = %d, want 2", calls.Load())
	}
}

func TestCachedFetchJSON_KeyedByMethod(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"method":"`+r.Method+`"}`)
	})
	ctx := context.Background()
	opts := DefaultCacheOptions()

	got, _ := c.CachedFetchJSON(ctx, "/twin/state", nil, opts)
	post := &Request{Method: http.MethodPost, Body: []byte(`{}`)}
	gotPost, _ := c.CachedFetchJSON(ctx, "/twin/state", post, opts)

	if string(got) == string(gotPost) {
		t.Errorf("GET and POST shared a cache entry: %s", got)
	}
	if calls.Load() != 2 {
		t.Errorf("network calls = %d, want 2", calls.Load())
	}
	if key := c.CacheKey("/twin/state", post); key != "gaia:cache:/twin/state:POST" {
		t.Errorf("CacheKey = %q", key)
	}
}

func TestCachedFetchJSON_FailureIsNotCached(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	ctx := context.Background()

	if _, err := c.CachedFetchJSON(ctx, "/x", nil, DefaultCacheOptions()); err == nil {
		t.Fatal("expected error on 404")
	}
	got, err := c.CachedFetchJSON(ctx, "/x", nil, DefaultCacheOptions())
	if err != nil || string(got) != `{"ok":true}` {
		t.Errorf("second read = %s, %v", got, err)
	}
}

func TestCachedFetchJSON_InvalidJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>`)
	})
	_, err := c.CachedFetchJSON(context.Background(), "/x", nil, DefaultCacheOptions())
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != core.KindDecode {
		t.Errorf("error = %v, want decode error", err)
	}
}

func TestRefreshAndGetJSON(t *testing.T) {
	var version atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		v := version.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]int32{"v": v})
	})
	ctx := context.Background()

	var first struct{ V int32 }
	if err := c.GetJSON(ctx, "/alerts/status", DefaultCacheOptions(), &first); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if _, err := c.Refresh(ctx, "/alerts/status", DefaultCacheOptions()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	var second struct{ V int32 }
	if err := c.GetJSON(ctx, "/alerts/status", DefaultCacheOptions(), &second); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if first.V != 1 || second.V != 2 {
		t.Errorf("versions = %d, %d; want 1, 2", first.V, second.V)
	}

	c.Invalidate(ctx, "/alerts/status")
	var third struct{ V int32 }
	_ = c.GetJSON(ctx, "/alerts/status", DefaultCacheOptions(), &third)
	if third.V != 3 {
		t.Errorf("after Invalidate v = %d, want 3", third.V)
	}
}
