// Package headers maps origin hostnames to the request headers that get a
// fetch past their anti-hotlinking checks.
package headers

import (
	"net/url"
	"regexp"
	"strings"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"

// Template describes the headers to impersonate an allowed origin for
// hostnames matching Pattern. Templates are immutable after registration.
type Template struct {
	Pattern   *regexp.Regexp
	Origin    string
	Referer   string
	UserAgent string
	Extra     map[string]string
}

// Registry holds an ordered template list; the first matching pattern wins.
type Registry struct {
	templates []Template
}

func NewRegistry(templates ...Template) *Registry {
	return &Registry{templates: templates}
}

// Defaults returns the built-in anti-hotlinking rules. Order matters.
func Defaults() []Template {
	return []Template{
		{
			Pattern: regexp.MustCompile(`(^|\.)(megacloud|megaplay)\.`),
			Origin:  "https://megacloud.blog",
			Referer: "https://hianime.to/",
			Extra:   map[string]string{"Sec-Gpc": "1"},
		},
		{
			Pattern: regexp.MustCompile(`(^|\.)(hianime|aniwatch)\.`),
			Origin:  "https://hianime.to",
			Referer: "https://hianime.to/",
		},
		{
			Pattern:   regexp.MustCompile(`(^|\.)(bilivideo|biliapi)\.`),
			Origin:    "https://www.bilibili.com",
			Referer:   "https://www.bilibili.com/",
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36",
		},
		{
			Pattern: regexp.MustCompile(`(^|\.)akamaized\.net$`),
			Origin:  "https://www.akamai.com",
			Referer: "https://www.akamai.com/",
		},
	}
}

// Match returns the first template whose pattern matches the hostname.
// Matching is case-insensitive; no match is a normal outcome.
func (r *Registry) Match(hostname string) (*Template, bool) {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	for i := range r.templates {
		if r.templates[i].Pattern.MatchString(hostname) {
			return &r.templates[i], true
		}
	}
	return nil, false
}

// BuildHeaders assembles the outgoing header set for rawURL: fixed defaults,
// overlaid by a matching template, with Host always set to the target's
// authority last so a template can never override it. Pure, never fails;
// an unparseable URL just yields the defaults.
func (r *Registry) BuildHeaders(rawURL string) map[string]string {
	h := map[string]string{
		"User-Agent":     defaultUserAgent,
		"Accept":         "*/*",
		"Sec-Fetch-Dest": "empty",
		"Sec-Fetch-Mode": "cors",
		"Sec-Fetch-Site": "cross-site",
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return h
	}

	if tpl, ok := r.Match(u.Hostname()); ok {
		h["Origin"] = tpl.Origin
		h["Referer"] = tpl.Referer
		if tpl.UserAgent != "" {
			h["User-Agent"] = tpl.UserAgent
		}
		for k, v := range tpl.Extra {
			h[k] = v
		}
	}

	h["Host"] = u.Host
	return h
}
