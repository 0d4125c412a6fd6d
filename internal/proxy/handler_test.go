package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/hls-gateway/internal/cache"
	"github.com/example/hls-gateway/internal/headers"
	"github.com/example/hls-gateway/internal/pipeline"
	"github.com/example/hls-gateway/internal/platform/api"
	"github.com/example/hls-gateway/internal/platform/httpserver"
	"github.com/example/hls-gateway/internal/rewriter"
	"github.com/example/hls-gateway/internal/upstream"
)

func newTestRouter(t *testing.T, timeout time.Duration) (chi.Router, *cache.Cache) {
	t.Helper()
	c := cache.New(nil, time.Minute)
	t.Cleanup(c.Stop)

	pipe := pipeline.New(
		headers.NewRegistry(),
		c,
		upstream.New(nil, 1<<20),
		rewriter.New(nil),
		nil,
		time.Minute,
		timeout,
		"/proxy",
	)

	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	New(pipe, c, nil, "/proxy").Routes(r)
	return r, c
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestProxy_MissingURLParameter(t *testing.T) {
	r, _ := newTestRouter(t, time.Second)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/proxy", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeAPIError(t, rec); resp.Error.Code != "INVALID_URL" {
		t.Fatalf("unexpected error code %q", resp.Error.Code)
	}
}

func TestProxy_InvalidTargetURL(t *testing.T) {
	r, _ := newTestRouter(t, time.Second)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/proxy?url=ftp%3A%2F%2Fx%2Fy", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeAPIError(t, rec); resp.Error.Code != "INVALID_URL" {
		t.Fatalf("unexpected error code %q", resp.Error.Code)
	}
}

func TestProxy_MissThenHit(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte("#EXTM3U\nseg0.ts\n"))
	}))
	defer origin.Close()

	r, _ := newTestRouter(t, 2*time.Second)
	target := "/proxy?url=" + strings.ReplaceAll(origin.URL, ":", "%3A") + "%2Findex.m3u8"

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Fatalf("expected X-Cache MISS, got %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.apple.mpegurl" {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.Contains(rec.Body.String(), "/proxy?url=") {
		t.Fatalf("playlist not rewritten: %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if got := rec.Header().Get("X-Cache"); got != "HIT" {
		t.Fatalf("expected X-Cache HIT, got %q", got)
	}
}

func TestProxy_HeadOmitsBody(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer origin.Close()

	r, _ := newTestRouter(t, 2*time.Second)
	target := "/proxy?url=" + strings.ReplaceAll(origin.URL, ":", "%3A") + "%2Fa.bin"

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, target, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("HEAD response must have no body, got %d bytes", rec.Body.Len())
	}
}

func TestProxy_UpstreamTimeoutMapsTo504(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer origin.Close()

	r, _ := newTestRouter(t, 30*time.Millisecond)
	target := "/proxy?url=" + strings.ReplaceAll(origin.URL, ":", "%3A") + "%2Fslow.ts"

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
	if resp := decodeAPIError(t, rec); resp.Error.Code != "UPSTREAM_TIMEOUT" {
		t.Fatalf("unexpected error code %q", resp.Error.Code)
	}
}

func TestProxy_UnreachableOriginMapsTo502(t *testing.T) {
	r, _ := newTestRouter(t, time.Second)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/proxy?url=http%3A%2F%2F127.0.0.1%3A1%2Fx.ts", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if resp := decodeAPIError(t, rec); resp.Error.Code != "UPSTREAM_ERROR" {
		t.Fatalf("unexpected error code %q", resp.Error.Code)
	}
}

func TestProxy_UndecodableBodyNeverServedFromCache(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write([]byte("not actually gzip"))
	}))
	defer origin.Close()

	r, _ := newTestRouter(t, 2*time.Second)
	target := "/proxy?url=" + strings.ReplaceAll(origin.URL, ":", "%3A") + "%2Fblob"

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if got := rec.Header().Get("X-Cache"); got != "MISS" {
			t.Fatalf("request %d: undecodable body must not be cached, got X-Cache %q", i+1, got)
		}
		if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
			t.Fatalf("request %d: Content-Encoding must reach the client, got %q", i+1, got)
		}
		if rec.Body.String() != "not actually gzip" {
			t.Fatalf("request %d: unexpected body %q", i+1, rec.Body.String())
		}
	}
}

func TestProxy_Non2xxPassedThrough(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("denied"))
	}))
	defer origin.Close()

	r, _ := newTestRouter(t, 2*time.Second)
	target := "/proxy?url=" + strings.ReplaceAll(origin.URL, ":", "%3A") + "%2Fx.ts"

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("origin status must pass through, got %d", rec.Code)
	}
	if rec.Body.String() != "denied" {
		t.Fatalf("origin body must pass through, got %q", rec.Body.String())
	}
}

func TestCacheAdmin_StatsAndClear(t *testing.T) {
	r, c := newTestRouter(t, time.Second)
	c.Set("k", []byte("v"), "text/plain", time.Minute)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats cache.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Fatalf("expected 1 entry, got %d", stats.Entries)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/cache", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := c.Stats().Entries; got != 0 {
		t.Fatalf("expected empty cache after clear, got %d entries", got)
	}
}
