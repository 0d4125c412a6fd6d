package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/hls-gateway/internal/cache"
	"github.com/example/hls-gateway/internal/config"
	"github.com/example/hls-gateway/internal/headers"
	"github.com/example/hls-gateway/internal/pipeline"
	"github.com/example/hls-gateway/internal/platform/httpserver"
	"github.com/example/hls-gateway/internal/platform/logging"
	"github.com/example/hls-gateway/internal/platform/run"
	"github.com/example/hls-gateway/internal/proxy"
	"github.com/example/hls-gateway/internal/rewriter"
	"github.com/example/hls-gateway/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}

	respCache := cache.New(log, cfg.CacheSweepInterval)

	registry := headers.NewRegistry(headers.Defaults()...)
	client := upstream.New(log, cfg.MaxBodyBytes)
	rw := rewriter.New(log)
	pipe := pipeline.New(registry, respCache, client, rw, log, cfg.CacheTTL, cfg.RequestTimeout, cfg.ProxyBasePath)

	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	proxy.New(pipe, respCache, log, cfg.ProxyBasePath).Routes(r)

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTPAddr, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return srv.Start(log)
	})

	respCache.Stop()
	log.Info("gateway stopped", zap.Int("code", code))
	_ = log.Sync()
	run.Exit(code)
}
