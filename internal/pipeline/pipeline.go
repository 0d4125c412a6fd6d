// Package pipeline orchestrates a proxy fetch: headers, origin fetch,
// decompression, classification, playlist rewriting and caching.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/hls-gateway/internal/cache"
	"github.com/example/hls-gateway/internal/classify"
	"github.com/example/hls-gateway/internal/headers"
	"github.com/example/hls-gateway/internal/rewriter"
	"github.com/example/hls-gateway/internal/upstream"
)

type CacheStatus string

const (
	CacheHit  CacheStatus = "HIT"
	CacheMiss CacheStatus = "MISS"
)

// Result is what the HTTP layer serves back to the player.
type Result struct {
	Content     []byte
	ContentType string
	Status      int
	Cache       CacheStatus
	Header      http.Header
}

type Pipeline struct {
	registry      *headers.Registry
	cache         *cache.Cache
	client        *upstream.Client
	rewriter      *rewriter.Rewriter
	log           *zap.Logger
	ttl           time.Duration
	timeout       time.Duration
	proxyBasePath string
}

func New(registry *headers.Registry, c *cache.Cache, client *upstream.Client, rw *rewriter.Rewriter, log *zap.Logger, ttl, timeout time.Duration, proxyBasePath string) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		registry:      registry,
		cache:         c,
		client:        client,
		rewriter:      rw,
		log:           log,
		ttl:           ttl,
		timeout:       timeout,
		proxyBasePath: proxyBasePath,
	}
}

// Handle runs one request through the pipeline. The cache is consulted
// before and written after the blocking fetch, so no cache state is held
// across network I/O, and nothing is cached on a failed run.
func (p *Pipeline) Handle(ctx context.Context, targetURL string) (*Result, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, URL: targetURL, Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &Error{Kind: KindInvalidURL, URL: targetURL, Err: errors.New("target must be an absolute http(s) url")}
	}

	if entry, ok := p.cache.Get(targetURL); ok {
		p.log.Debug("cache hit", zap.String("url", targetURL))
		return &Result{
			Content:     entry.Content,
			ContentType: entry.ContentType,
			Status:      http.StatusOK,
			Cache:       CacheHit,
		}, nil
	}

	reqHeaders := p.registry.BuildHeaders(targetURL)

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	res, err := p.client.Fetch(fetchCtx, targetURL, reqHeaders)
	if err != nil {
		if upstream.IsTimeout(err) {
			return nil, &Error{Kind: KindTimeout, URL: targetURL, Err: err}
		}
		return nil, &Error{Kind: KindUpstream, URL: targetURL, Err: err}
	}

	body := res.Body
	respHeader := res.Header
	decodeFailed := false
	if enc := respHeader.Get("Content-Encoding"); enc != "" && !strings.EqualFold(enc, "identity") {
		decoded, derr := upstream.Decompress(body, enc)
		if derr != nil {
			// Serve the compressed bytes and keep the Content-Encoding
			// header so the player can decode on its own.
			decodeFailed = true
			p.log.Warn("decompression failed, serving original bytes",
				zap.String("url", targetURL), zap.String("encoding", enc), zap.Error(derr))
		} else {
			body = decoded
			respHeader.Del("Content-Encoding")
		}
	}

	mediaType := classify.Classify(targetURL, body, res.ContentType)

	// The extension or declared type alone is not enough to rewrite: the
	// payload itself must open with a playlist marker, or a disguised
	// binary segment would be corrupted.
	if looksLikePlaylist(targetURL, mediaType) && hasPlaylistMarker(body) {
		body = []byte(p.rewriter.Rewrite(string(body), targetURL, p.proxyBasePath))
		mediaType = classify.MediaTypePlaylist
	}

	result := &Result{
		Content:     body,
		ContentType: mediaType,
		Status:      res.Status,
		Cache:       CacheMiss,
		Header:      respHeader,
	}

	switch {
	case decodeFailed:
		// A body that could not be decoded is served once but never
		// memoized: a cache hit replays content without the response
		// headers, so the Content-Encoding the player needs would be lost.
	case res.Status >= 200 && res.Status < 300:
		p.cache.Set(targetURL, body, mediaType, p.ttl)
	default:
		// Non-2xx bodies are still returned (an origin error page can be
		// useful to the caller) but never cached.
		p.log.Warn("upstream returned non-2xx",
			zap.String("url", targetURL), zap.Int("status", res.Status))
	}
	return result, nil
}

func looksLikePlaylist(rawURL, mediaType string) bool {
	if strings.Contains(strings.ToLower(mediaType), "mpegurl") {
		return true
	}
	p := strings.ToLower(rawURL)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.HasSuffix(p, ".m3u8") || strings.HasSuffix(p, ".m3u")
}

func hasPlaylistMarker(body []byte) bool {
	b := bytes.TrimLeft(body, " \t\r\n")
	return bytes.HasPrefix(b, []byte("#EXTM3U")) || bytes.HasPrefix(b, []byte("#EXT-X-"))
}
