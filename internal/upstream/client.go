// Package upstream fetches resources from streaming origins.
package upstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Resource is an origin response, immutable once fetched.
type Resource struct {
	Body        []byte
	ContentType string
	Status      int
	Header      http.Header
}

type Client struct {
	http         *http.Client
	maxBodyBytes int64
	log          *zap.Logger
}

func New(log *zap.Logger, maxBodyBytes int64) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		// Streaming origins routinely serve expired or self-signed
		// certificates; connections proceed unverified so playback keeps
		// working. This is a deliberate trust trade-off.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	return &Client{
		http:         &http.Client{Transport: transport},
		maxBodyBytes: maxBodyBytes,
		log:          log,
	}
}

// Fetch issues a GET for rawURL with the given headers, following redirects.
// The caller bounds the fetch through ctx; the response body is capped at
// maxBodyBytes.
func (c *Client) Fetch(ctx context.Context, rawURL string, reqHeaders map[string]string) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range reqHeaders {
		if strings.EqualFold(k, "Host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}
	// Set explicitly so the transport does not transparently decode; the
	// pipeline owns decompression.
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	c.log.Debug("origin fetch",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)))

	return &Resource{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Status:      resp.StatusCode,
		Header:      resp.Header.Clone(),
	}, nil
}

// IsTimeout reports whether err was caused by the fetch deadline elapsing.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
