package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8084" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.ProxyBasePath != "/proxy" {
		t.Fatalf("unexpected base path %q", cfg.ProxyBasePath)
	}
	if cfg.CacheTTL != 300*time.Second {
		t.Fatalf("unexpected ttl %v", cfg.CacheTTL)
	}
	if cfg.CacheSweepInterval != 60*time.Second {
		t.Fatalf("unexpected sweep interval %v", cfg.CacheSweepInterval)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.RequestTimeout)
	}
	if cfg.MaxBodyBytes != 32<<20 {
		t.Fatalf("unexpected body cap %d", cfg.MaxBodyBytes)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("PROXY_BASE_PATH", "/hls")
	t.Setenv("CACHE_TTL", "30")
	t.Setenv("REQUEST_TIMEOUT_MS", "2500")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.ProxyBasePath != "/hls" {
		t.Fatalf("unexpected base path %q", cfg.ProxyBasePath)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Fatalf("unexpected ttl %v", cfg.CacheTTL)
	}
	if cfg.RequestTimeout != 2500*time.Millisecond {
		t.Fatalf("unexpected timeout %v", cfg.RequestTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log level %q", cfg.LogLevel)
	}
}

func TestLoad_RejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("CACHE_TTL", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestLoad_RejectsMalformedTimeout(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_MS", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed timeout")
	}
}

func TestLoad_RejectsRelativeBasePath(t *testing.T) {
	t.Setenv("PROXY_BASE_PATH", "proxy")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for base path without leading slash")
	}
}
