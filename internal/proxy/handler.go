// Package proxy exposes the fetch pipeline over HTTP.
package proxy

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/hls-gateway/internal/cache"
	"github.com/example/hls-gateway/internal/pipeline"
	"github.com/example/hls-gateway/internal/platform/api"
	"github.com/example/hls-gateway/internal/platform/httpserver"
)

// Headers forwarded from the origin response when present.
var passthroughHeaders = []string{
	"Content-Range",
	"Accept-Ranges",
	"Content-Disposition",
	"Cache-Control",
	"Etag",
}

type Handler struct {
	pipe     *pipeline.Pipeline
	cache    *cache.Cache
	log      *zap.Logger
	basePath string
}

func New(pipe *pipeline.Pipeline, c *cache.Cache, log *zap.Logger, basePath string) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{pipe: pipe, cache: c, log: log, basePath: basePath}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get(h.basePath, h.proxy)
	r.Head(h.basePath, h.proxy)
	r.Get("/cache/stats", h.cacheStats)
	r.Delete("/cache", h.clearCache)
}

func (h *Handler) proxy(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		api.BadRequest(w, "INVALID_URL", "missing url parameter", rid, nil)
		return
	}

	res, err := h.pipe.Handle(r.Context(), target)
	if err != nil {
		var perr *pipeline.Error
		if !errors.As(err, &perr) {
			h.log.Error("proxy request failed", zap.String("url", target), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		switch perr.Kind {
		case pipeline.KindInvalidURL:
			api.BadRequest(w, "INVALID_URL", "target is not a valid http(s) url", rid, map[string]any{"url": perr.URL})
		case pipeline.KindTimeout:
			api.GatewayTimeout(w, "UPSTREAM_TIMEOUT", "origin did not respond in time", rid, map[string]any{"url": perr.URL})
		default:
			api.BadGateway(w, "UPSTREAM_ERROR", perr.Err.Error(), rid, map[string]any{"url": perr.URL})
		}
		return
	}

	for _, k := range passthroughHeaders {
		if v := res.Header.Get(k); v != "" {
			w.Header().Set(k, v)
		}
	}
	if enc := res.Header.Get("Content-Encoding"); enc != "" {
		w.Header().Set("Content-Encoding", enc)
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("X-Cache", string(res.Cache))

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(res.Content)
	}
}

func (h *Handler) cacheStats(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) clearCache(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()
	h.log.Info("cache cleared",
		zap.String("request_id", httpserver.RequestIDFromContext(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}
