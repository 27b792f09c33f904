package csp

import (
	"fmt"
	"net/url"
	"strings"
)

// GeneralBlockedNote closes every grouped recommendation list.
const GeneralBlockedNote = "These blocked resources indicate missing domains in your CSP configuration. Update your CDN CSP rules accordingly."

var triageRules = []struct {
	kind    string
	matches func(path string) bool
}{
	{"style", func(p string) bool { return strings.Contains(p, ".css") || strings.Contains(p, "/css/") }},
	{"script", func(p string) bool { return strings.Contains(p, ".js") || strings.Contains(p, "/js/") }},
	{"image", func(p string) bool { return containsAny(p, ".png", ".jpg", ".gif", ".svg") }},
	{"font", func(p string) bool { return containsAny(p, ".woff", ".ttf", ".eot") }},
}

// TriageBlockedURL guesses the resource type of a URL reported as blocked by
// a browser, from substrings of its path alone. Unknown paths are treated as
// scripts. Images map to img-src.
func TriageBlockedURL(raw string) (BlockedResource, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return BlockedResource{}, fmt.Errorf("invalid blocked resource URL %q", raw)
	}
	path := u.Path

	kind := "script"
	for _, s := range triageRules {
		if s.matches(path) {
			kind = s.kind
			break
		}
	}
	directive := directiveForKind(kind)
	return BlockedResource{
		Type:           kind,
		URL:            raw,
		Directive:      directive,
		Hostname:       u.Hostname(),
		Recommendation: fmt.Sprintf("Add %s to %s directive", u.Hostname(), directive),
	}, nil
}

// GroupRecommendations folds blocked resources into one recommendation per
// directive listing every host to admit, followed by GeneralBlockedNote.
func GroupRecommendations(blocked []BlockedResource) []string {
	var order []string
	hosts := make(map[string][]string)
	for _, b := range blocked {
		h := b.Hostname
		if h == "" {
			h = Hostname(b.URL)
		}
		if _, ok := hosts[b.Directive]; !ok {
			order = append(order, b.Directive)
		}
		if !containsString(hosts[b.Directive], h) {
			hosts[b.Directive] = append(hosts[b.Directive], h)
		}
	}

	out := make([]string, 0, len(order)+1)
	for _, d := range order {
		origins := make([]string, 0, len(hosts[d]))
		for _, h := range hosts[d] {
			origins = append(origins, "https://"+h)
		}
		out = append(out, fmt.Sprintf("Update %s to include: %s", d, strings.Join(origins, " ")))
	}
	if len(order) > 0 {
		out = append(out, GeneralBlockedNote)
	}
	return out
}

func directiveForKind(kind string) string {
	if kind == "image" {
		return ImgSrc
	}
	return kind + "-src"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
