// Package rewriter transforms HLS playlists so every URI they reference is
// fetched back through the gateway.
package rewriter

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var uriAttrPattern = regexp.MustCompile(`URI="([^"]*)"`)

type Rewriter struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Rewriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Rewriter{log: log}
}

// Rewrite maps every segment and sub-playlist reference in playlist onto
// proxyBasePath + "?url=" + the percent-encoded absolute URL. The transform
// is total: every input line yields exactly one output line, a line that
// cannot be resolved is passed through unmodified, and any unexpected
// failure returns the original text — a player must never receive a
// playlist that is guaranteed broken.
func (r *Rewriter) Rewrite(playlist, sourceURL, proxyBasePath string) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("playlist rewrite failed, returning original",
				zap.Any("panic", rec), zap.String("source", sourceURL))
			out = playlist
		}
	}()

	base := basePathFor(sourceURL)
	lines := splitLines(playlist)
	rewritten := make([]string, 0, len(lines))
	for _, line := range lines {
		rewritten = append(rewritten, r.rewriteLine(line, sourceURL, base, proxyBasePath))
	}
	return strings.Join(rewritten, "\n")
}

func (r *Rewriter) rewriteLine(line, sourceURL, base, proxyBasePath string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return line
	}

	if strings.HasPrefix(trimmed, "#") {
		// Tags like #EXT-X-KEY, #EXT-X-MAP and #EXT-X-PART carry URI="..."
		// attributes; each value is rewritten in place, everything else on
		// the line stays verbatim.
		if !strings.Contains(line, `URI="`) {
			return line
		}
		return uriAttrPattern.ReplaceAllStringFunc(line, func(attr string) string {
			value := attr[len(`URI="`) : len(attr)-1]
			return `URI="` + r.proxyRef(value, sourceURL, base, proxyBasePath) + `"`
		})
	}

	return r.proxyRef(trimmed, sourceURL, base, proxyBasePath)
}

// proxyRef turns one URI reference into a proxied one. Already-proxied
// references pass through so the transform is idempotent.
func (r *Rewriter) proxyRef(ref, sourceURL, base, proxyBasePath string) string {
	if ref == "" || strings.HasPrefix(ref, proxyBasePath) {
		return ref
	}
	abs, err := resolveRef(ref, sourceURL, base)
	if err != nil {
		r.log.Warn("unresolvable playlist reference left as-is",
			zap.String("ref", ref), zap.String("source", sourceURL), zap.Error(err))
		return ref
	}
	return proxyBasePath + "?url=" + url.QueryEscape(abs)
}

func resolveRef(ref, sourceURL, base string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	if strings.HasPrefix(ref, "//") {
		return schemeOf(sourceURL) + ":" + ref, nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse ref %q: %w", ref, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// basePathFor computes the URL relative references resolve against: the
// source playlist's directory.
func basePathFor(sourceURL string) string {
	if strings.HasSuffix(sourceURL, ".m3u8") {
		if i := strings.LastIndexByte(sourceURL, '/'); i >= 0 {
			return sourceURL[:i+1]
		}
		return sourceURL
	}
	if !strings.HasSuffix(sourceURL, "/") {
		return sourceURL + "/"
	}
	return sourceURL
}

func schemeOf(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Scheme == "" {
		return "https"
	}
	return u.Scheme
}

// splitLines splits on \n and tolerates \r\n input; output is always joined
// with \n.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
