// Package sitemap reads page URLs out of sitemap XML.
package sitemap

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"cspAudit/internal/fetch"
	"cspAudit/internal/parser"
)

var locPattern = regexp.MustCompile(`<loc>(.*?)</loc>`)

// ParseError reports a document that yielded no usable page URLs.
type ParseError struct {
	URL     string
	Message string
}

func (e *ParseError) Error() string {
	return e.Message + ": " + e.URL
}

// ExtractURLs returns the trimmed contents of every <loc> element that is a
// valid absolute URL, in document order. Anything else in the document is
// ignored, so malformed XML still yields whatever <loc> entries it contains.
func ExtractURLs(xml string) []string {
	urls := []string{}
	for _, m := range locPattern.FindAllStringSubmatch(xml, -1) {
		u := strings.TrimSpace(m[1])
		if u != "" && parser.IsValidURL(u) {
			urls = append(urls, u)
		}
	}
	return urls
}

// IsIndex reports whether xml is a sitemap index listing further sitemaps.
func IsIndex(xml string) bool {
	return strings.Contains(xml, "<sitemapindex")
}

// Load fetches a sitemap and returns its page URLs. A sitemap index is
// expanded one level; nested sitemaps that fail to load are skipped.
func Load(ctx context.Context, f fetch.Fetcher, sitemapURL string) ([]string, error) {
	body, err := get(ctx, f, sitemapURL)
	if err != nil {
		return nil, err
	}

	urls := ExtractURLs(body)
	if IsIndex(body) {
		var pages []string
		for _, child := range urls {
			childBody, err := get(ctx, f, child)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				continue
			}
			pages = append(pages, ExtractURLs(childBody)...)
		}
		urls = pages
	}

	if len(urls) == 0 {
		return nil, &ParseError{URL: sitemapURL, Message: "No valid URLs found in sitemap"}
	}
	return urls, nil
}

func get(ctx context.Context, f fetch.Fetcher, u string) (string, error) {
	resp, err := f.Fetch(ctx, u)
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch sitemap %s", u)
	}
	return string(resp.Body), nil
}
