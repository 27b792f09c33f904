package csp

import (
	"net/url"
	"strings"
)

// IsAllowed reports whether resourceURL is admitted by the named directive of m.
//
// Matching is a deliberately small subset of CSP source matching: only sources
// starting with "http" are considered, and they match when their hostname equals
// the resource hostname or is a parent domain of it. Keyword sources never admit
// a cross-origin resource. Scheme-only ("https:"), wildcard ("*.example.com"),
// nonce and hash sources are not evaluated and never match.
func IsAllowed(resourceURL string, m *Model, directive string) bool {
	values := m.Values(directive)
	if values == nil {
		return false
	}

	resourceHost, ok := hostname(resourceURL)
	if !ok {
		return false
	}

	for _, value := range values {
		switch value {
		case KeywordSelf, KeywordUnsafeInline, KeywordUnsafeEval:
			continue
		}
		if !strings.HasPrefix(value, "http") {
			continue
		}
		allowedHost, ok := hostname(value)
		if !ok {
			continue
		}
		if allowedHost == resourceHost || strings.HasSuffix(resourceHost, "."+allowedHost) {
			return true
		}
	}
	return false
}

// hostname parses raw as an absolute URL and returns its lowercased host
// without port.
func hostname(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Hostname()), true
}

// Hostname returns the hostname of an absolute URL, or raw itself when it
// cannot be parsed.
func Hostname(raw string) string {
	if h, ok := hostname(raw); ok {
		return h
	}
	return raw
}
