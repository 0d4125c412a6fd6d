// Package classify recovers the true media type of a fetched resource.
// Origins routinely mislabel transport-stream segments as images or text to
// dodge hotlink scrapers, so the URL extension and declared content type are
// treated as hints, never as truth.
package classify

import (
	"regexp"
	"strings"
)

const (
	MediaTypePlaylist        = "application/vnd.apple.mpegurl"
	MediaTypeTransportStream = "video/mp2t"
	MediaTypeBinary          = "application/octet-stream"
)

const (
	tsPacketSize = 188
	tsSyncByte   = 0x47
)

// Extensions sometimes used to disguise media segments.
var suspiciousExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".bmp": {},
	".ico": {}, ".txt": {}, ".html": {}, ".htm": {}, ".css": {}, ".js": {},
	".json": {}, ".xml": {},
}

var segmentExts = map[string]struct{}{
	".ts": {}, ".m4s": {}, ".m2ts": {}, ".mts": {},
}

var (
	segmentNamePattern = regexp.MustCompile(`(?i)(?:^|[/_.-])(?:seg|segment|chunk|frag|fragment|part)[-_]?\d+`)
	variantPattern     = regexp.MustCompile(`(?i)-v\d+-a\d+`)
	numericNamePattern = regexp.MustCompile(`^\d+$`)
)

// Classify decides the media type of a payload fetched from urlOrPath.
// sample may be nil when only the location is known; declared is the
// upstream Content-Type and is only trusted as a last resort.
func Classify(urlOrPath string, sample []byte, declared string) string {
	p := pathOf(urlOrPath)
	ext := extOf(p)

	// A playlist extension is trusted unless the payload says otherwise:
	// real playlists start with "#EXTM3U", so the first two bytes are "#E".
	if ext == ".m3u8" || ext == ".m3u" {
		if len(sample) == 0 {
			return MediaTypePlaylist
		}
		if len(sample) >= 2 && sample[0] == '#' && sample[1] == 'E' {
			return MediaTypePlaylist
		}
	}

	if len(sample) > 0 && IsTransportStream(sample) {
		return MediaTypeTransportStream
	}

	if looksLikeSegmentName(p, ext) {
		return MediaTypeTransportStream
	}

	if declared != "" {
		return declared
	}
	return MediaTypeBinary
}

// IsTransportStream reports whether sample begins with MPEG-TS packets. One
// sync byte is not enough — a second hit on a 188-byte stride is required to
// rule out coincidence. Short samples are simply not transport streams.
func IsTransportStream(sample []byte) bool {
	if len(sample) < tsPacketSize {
		return false
	}
	if sample[0] != tsSyncByte {
		return false
	}
	for stride := 1; stride <= 5; stride++ {
		off := stride * tsPacketSize
		if off >= len(sample) {
			return false
		}
		if sample[off] == tsSyncByte {
			return true
		}
	}
	return false
}

// looksLikeSegmentName matches common segment-naming conventions combined
// with a standard or disguised segment extension.
func looksLikeSegmentName(p, ext string) bool {
	_, segExt := segmentExts[ext]
	_, suspExt := suspiciousExts[ext]
	if !segExt && !suspExt {
		return false
	}
	name := p
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ext)
	return segmentNamePattern.MatchString(name) ||
		variantPattern.MatchString(name) ||
		numericNamePattern.MatchString(name)
}

func pathOf(urlOrPath string) string {
	p := urlOrPath
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(p)
}

func extOf(p string) string {
	i := strings.LastIndexByte(p, '.')
	if i < 0 || strings.ContainsRune(p[i:], '/') {
		return ""
	}
	return p[i:]
}
