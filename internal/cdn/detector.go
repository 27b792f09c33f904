// Package cdn recognises the edge network serving a page. A consolidated CSP
// is usually deployed as an edge rule, so the audit reports where to put it.
package cdn

import (
	"net/http"
	"strings"
)

// signature matches when header is present and, if contains is set, its
// value includes contains (case-insensitive).
type signature struct {
	provider string
	header   string
	contains string
}

var signatures = []signature{
	{"Cloudflare", "Cf-Ray", ""},
	{"Cloudflare", "Server", "cloudflare"},
	{"CloudFront", "X-Amz-Cf-Id", ""},
	{"CloudFront", "X-Amz-Cf-Pop", ""},
	{"CloudFront", "Via", "cloudfront"},
	{"Fastly", "X-Fastly-Request-Id", ""},
	{"Fastly", "Fastly-Debug-Digest", ""},
	{"Fastly", "X-Served-By", "cache-"},
	{"Akamai", "X-Akamai-Transformed", ""},
	{"Akamai", "Server", "akamaighost"},
	{"Azure Front Door", "X-Azure-Ref", ""},
	{"Vercel", "X-Vercel-Id", ""},
	{"Netlify", "X-Nf-Request-Id", ""},
	{"Sucuri", "X-Sucuri-Id", ""},
	{"Incapsula", "X-Iinfo", ""},
	{"KeyCDN", "Server", "keycdn"},
	{"StackPath", "X-Hw", ""},
	{"Varnish", "Via", "varnish"},
}

// Detect returns the provider name for the first matching signature. A
// generic X-CDN header is used as a last resort.
func Detect(headers http.Header) (string, bool) {
	for _, sig := range signatures {
		val := headers.Get(sig.header)
		if val == "" {
			continue
		}
		if sig.contains == "" || strings.Contains(strings.ToLower(val), sig.contains) {
			return sig.provider, true
		}
	}
	if name := headers.Get("X-CDN"); name != "" {
		return name, true
	}
	return "", false
}
