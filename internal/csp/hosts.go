package csp

import (
	"net/url"
	"strings"
)

// fetchDirectives are directives whose source lists name hosts to load from.
var fetchDirectives = map[string]bool{
	DefaultSrc:        true,
	ScriptSrc:         true,
	StyleSrc:          true,
	ImgSrc:            true,
	ConnectSrc:        true,
	FontSrc:           true,
	FrameSrc:          true,
	MediaSrc:          true,
	ObjectSrc:         true,
	"form-action":     true,
	"frame-ancestors": true,
	"child-src":       true,
	"worker-src":      true,
	"manifest-src":    true,
}

// nonHostSources are source expressions that name no host.
var nonHostSources = map[string]bool{
	KeywordSelf:          true,
	KeywordUnsafeInline:  true,
	KeywordUnsafeEval:    true,
	"'unsafe-hashes'":    true,
	"'strict-dynamic'":   true,
	"'report-sample'":    true,
	"'none'":             true,
	"'wasm-unsafe-eval'": true,
	"data:":              true,
	"blob:":              true,
	"mediastream:":       true,
	"filesystem:":        true,
	"https:":             true,
	"http:":              true,
	"wss:":               true,
	"ws:":                true,
	"*":                  true,
}

// Hosts lists the unique hosts named by the fetch directives of m, in
// directive order. Wildcard hosts are kept as written ("*.example.com").
func (m *Model) Hosts() []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, d := range m.Directives() {
		if !fetchDirectives[strings.ToLower(d.Name)] {
			continue
		}
		for _, source := range d.Values {
			h := sourceHost(source)
			if h != "" && !seen[h] {
				seen[h] = true
				hosts = append(hosts, h)
			}
		}
	}
	return hosts
}

// sourceHost returns the host a source expression names, or "".
func sourceHost(source string) string {
	lower := strings.ToLower(source)
	if nonHostSources[lower] {
		return ""
	}
	if strings.HasPrefix(lower, "'nonce-") || strings.HasPrefix(lower, "'sha") {
		return ""
	}

	if strings.Contains(source, "://") {
		u, err := url.Parse(source)
		if err != nil || u.Host == "" {
			return ""
		}
		return u.Hostname()
	}

	host := source
	if i := strings.Index(host, "/"); i != -1 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host, "]") {
		host = host[:i]
	}
	if !strings.Contains(host, ".") {
		return ""
	}
	return host
}
