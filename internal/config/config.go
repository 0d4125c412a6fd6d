package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName        string
	LogLevel           string
	HTTPAddr           string
	ProxyBasePath      string
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration
	RequestTimeout     time.Duration
	MaxBodyBytes       int64
}

func Load() (Config, error) {
	cfg := Config{
		ServiceName:        "hls-gateway",
		LogLevel:           "info",
		HTTPAddr:           ":8084",
		ProxyBasePath:      "/proxy",
		CacheTTL:           300 * time.Second,
		CacheSweepInterval: 60 * time.Second,
		RequestTimeout:     15 * time.Second,
		MaxBodyBytes:       32 << 20,
	}

	if v := strings.TrimSpace(os.Getenv("SERVICE_NAME")); v != "" {
		cfg.ServiceName = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("PROXY_BASE_PATH")); v != "" {
		if !strings.HasPrefix(v, "/") {
			return Config{}, errors.New("PROXY_BASE_PATH must start with /")
		}
		cfg.ProxyBasePath = v
	}
	if v := strings.TrimSpace(os.Getenv("CACHE_TTL")); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("CACHE_TTL must be a positive number of seconds, got %q", v)
		}
		cfg.CacheTTL = time.Duration(secs) * time.Second
	}
	if v := strings.TrimSpace(os.Getenv("CACHE_SWEEP_INTERVAL")); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("CACHE_SWEEP_INTERVAL must be a positive number of seconds, got %q", v)
		}
		cfg.CacheSweepInterval = time.Duration(secs) * time.Second
	}
	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT_MS")); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return Config{}, fmt.Errorf("REQUEST_TIMEOUT_MS must be a positive number of milliseconds, got %q", v)
		}
		cfg.RequestTimeout = time.Duration(ms) * time.Millisecond
	}
	if v := strings.TrimSpace(os.Getenv("MAX_BODY_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("MAX_BODY_BYTES must be a positive byte count, got %q", v)
		}
		cfg.MaxBodyBytes = n
	}
	return cfg, nil
}
