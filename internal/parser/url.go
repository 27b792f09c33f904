package parser

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*$`)

// IsValidURL reports whether s parses as an absolute URL. http and https URLs
// must also name a host.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || !schemePattern.MatchString(u.Scheme) {
		return false
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return u.Host != ""
	}
	return u.Opaque != "" || u.Host != "" || u.Path != ""
}

// NormalizeInput turns a bare host or host/path into an https URL.
func NormalizeInput(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return input
	}
	return "https://" + input
}

// ValidateURL checks that input is a fetchable http(s) page URL.
// Loopback and private addresses are refused unless allowPrivateIPs is set.
func ValidateURL(input string, allowPrivateIPs bool) error {
	if len(input) > 2048 {
		return fmt.Errorf("URL too long (max 2048 chars)")
	}
	if strings.Contains(input, "\x00") {
		return fmt.Errorf("URL contains null bytes")
	}

	u, err := url.Parse(input)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("empty hostname")
	}

	if !allowPrivateIPs {
		if host == "localhost" {
			return fmt.Errorf("localhost not allowed")
		}
		if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified()) {
			return fmt.Errorf("private IP addresses not allowed")
		}
	}
	return nil
}

// SplitURLList splits free text on commas and newlines, trimming entries and
// dropping empty ones.
func SplitURLList(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ReadURLs reads one URL per line, skipping blank lines and # comments.
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, scanner.Err()
}

// NormalizeURL removes default ports so http://host and http://host:80 compare equal.
func NormalizeURL(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}
	if (parsed.Scheme == "http" && parsed.Port() == "80") || (parsed.Scheme == "https" && parsed.Port() == "443") {
		parsed.Host = parsed.Hostname()
	}
	return parsed.String()
}

// DeduplicateURLs drops URLs whose normalized form was already seen, keeping order.
func DeduplicateURLs(urls []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range urls {
		n := NormalizeURL(u)
		if !seen[n] {
			seen[n] = true
			out = append(out, u)
		}
	}
	return out
}

// ExcludeFilter drops URLs matching any of a set of glob patterns, for
// example "*/wp-admin/*" or "https://*.example.com/*.pdf".
type ExcludeFilter struct {
	patterns []glob.Glob
}

// NewExcludeFilter compiles comma-separated glob patterns. Blank input
// yields a filter that excludes nothing.
func NewExcludeFilter(patterns string) (*ExcludeFilter, error) {
	f := &ExcludeFilter{}
	for _, p := range SplitURLList(patterns) {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, g)
	}
	return f, nil
}

// Excluded reports whether u matches any pattern.
func (f *ExcludeFilter) Excluded(u string) bool {
	if f == nil {
		return false
	}
	for _, g := range f.patterns {
		if g.Match(u) {
			return true
		}
	}
	return false
}

// Filter returns the URLs not excluded, keeping order.
func (f *ExcludeFilter) Filter(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !f.Excluded(u) {
			out = append(out, u)
		}
	}
	return out
}
