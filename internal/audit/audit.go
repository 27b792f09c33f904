// Package audit loads pages in a real browser and reports the origins each
// policy directive has to admit for the page to work.
package audit

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"cspAudit/internal/config"
	"cspAudit/internal/csp"
)

// Entry is one resource the browser loaded, as reported by the performance
// timeline.
type Entry struct {
	Name          string `json:"name"`
	InitiatorType string `json:"initiatorType"`
}

// Observation is what the browser saw while loading one page.
type Observation struct {
	Headers       map[string]string
	Resources     []Entry
	ConsoleErrors []string
}

// Observer loads a page and reports what happened.
type Observer interface {
	Observe(ctx context.Context, pageURL string) (*Observation, error)
}

// CSPError is a console message mentioning the content security policy.
type CSPError struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// Result is the outcome of a runtime audit over a set of pages.
type Result struct {
	Success          bool                         `json:"success"`
	Message          string                       `json:"message,omitempty"`
	URLsProcessed    int                          `json:"urlsProcessed"`
	FinalResult      map[string][]string          `json:"finalResult"`
	CSPErrors        []CSPError                   `json:"cspErrors"`
	PerURLHeaders    map[string]map[string]string `json:"perUrlHeaders"`
	UpdatedCSP       string                       `json:"updatedCSP"`
	BlockedResources []csp.BlockedResource        `json:"blockedResources"`
	Failures         map[string]string            `json:"failures,omitempty"`
}

// Directives are the categories observed resources are bucketed into.
var Directives = []string{
	csp.ScriptSrc,
	csp.StyleSrc,
	csp.ImgSrc,
	csp.FontSrc,
	csp.ConnectSrc,
	csp.MediaSrc,
	csp.FrameSrc,
	csp.ObjectSrc,
}

var (
	fontExtensions  = []string{".woff", ".woff2", ".ttf", ".otf", ".eot"}
	imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".avif", ".bmp"}
)

// DirectiveFor maps a resource timing entry to the directive governing it.
// Stylesheet-initiated loads are split by file extension because fonts and
// background images are reported with the stylesheet as initiator.
func DirectiveFor(e Entry) (string, bool) {
	switch strings.ToLower(e.InitiatorType) {
	case "script":
		return csp.ScriptSrc, true
	case "link", "css":
		ext := extension(e.Name)
		if hasAny(ext, fontExtensions) {
			return csp.FontSrc, true
		}
		if hasAny(ext, imageExtensions) {
			return csp.ImgSrc, true
		}
		return csp.StyleSrc, true
	case "img", "image", "input":
		return csp.ImgSrc, true
	case "xmlhttprequest", "fetch", "beacon":
		return csp.ConnectSrc, true
	case "video", "audio", "track":
		return csp.MediaSrc, true
	case "iframe", "frame":
		return csp.FrameSrc, true
	case "object", "embed":
		return csp.ObjectSrc, true
	}
	return "", false
}

func extension(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}

func hasAny(ext string, list []string) bool {
	for _, e := range list {
		if ext == e {
			return true
		}
	}
	return false
}

// IsCSPMessage reports whether a console message is about the content
// security policy.
func IsCSPMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "content security policy")
}

// Auditor drives an Observer over a list of pages.
type Auditor struct {
	observer Observer
	config   *config.Config
}

// NewAuditor creates an Auditor.
func NewAuditor(cfg *config.Config, obs Observer) *Auditor {
	return &Auditor{observer: obs, config: cfg}
}

type pageRecord struct {
	url       string
	policy    string
	resources map[string][]string // directive -> resource URLs
}

// Run observes at most cfg.MaxRuntimeURLs pages. A page that cannot be
// loaded is recorded in Failures and the audit continues; the result is only
// unsuccessful when no page could be observed.
func (a *Auditor) Run(ctx context.Context, urls []string) (*Result, error) {
	if len(urls) == 0 {
		return &Result{Message: "No URLs to process"}, nil
	}
	if limit := a.config.MaxRuntimeURLs; limit > 0 && len(urls) > limit {
		a.config.Logger.Info("limiting runtime audit", "requested", len(urls), "limit", limit)
		urls = urls[:limit]
	}

	result := &Result{
		URLsProcessed:    len(urls),
		FinalResult:      make(map[string][]string, len(Directives)),
		CSPErrors:        []CSPError{},
		PerURLHeaders:    make(map[string]map[string]string, len(urls)),
		BlockedResources: []csp.BlockedResource{},
	}

	origins := make(map[string]map[string]bool, len(Directives))
	for _, d := range Directives {
		origins[d] = map[string]bool{}
	}

	var pages []pageRecord
	for _, pageURL := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		obs, err := a.observer.Observe(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !a.config.Silent {
				a.config.Logger.Warn("runtime observation failed", "url", pageURL, "error", err)
			}
			if result.Failures == nil {
				result.Failures = map[string]string{}
			}
			result.Failures[pageURL] = err.Error()
			continue
		}

		rec := a.record(pageURL, obs, origins, result)
		pages = append(pages, rec)
		a.config.Logger.Debug("page observed",
			"url", pageURL,
			"resources", len(obs.Resources),
			"csp_errors", len(obs.ConsoleErrors),
		)
	}

	if len(pages) == 0 {
		result.Message = "Failed to load any of the requested pages"
		return result, nil
	}

	observed := map[string][]string{}
	for _, d := range Directives {
		hosts := sortedKeys(origins[d])
		result.FinalResult[d] = hosts
		if len(hosts) > 0 {
			observed[d] = hosts
		}
	}

	policies := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.policy != "" {
			policies = append(policies, p.policy)
		}
		result.BlockedResources = append(result.BlockedResources, blocked(p)...)
	}
	existing := ""
	if len(policies) > 0 {
		existing = csp.MergePolicies(policies...).Rule
	}
	result.UpdatedCSP = csp.MergeFromObservedOrigins(existing, observed)
	result.Success = true
	return result, nil
}

func (a *Auditor) record(pageURL string, obs *Observation, origins map[string]map[string]bool, result *Result) pageRecord {
	headers := make(map[string]string, len(obs.Headers))
	for k, v := range obs.Headers {
		headers[strings.ToLower(k)] = v
	}
	result.PerURLHeaders[pageURL] = headers

	for _, msg := range obs.ConsoleErrors {
		if IsCSPMessage(msg) {
			result.CSPErrors = append(result.CSPErrors, CSPError{URL: pageURL, Message: msg})
		}
	}

	rec := pageRecord{
		url:       pageURL,
		policy:    headers["content-security-policy"],
		resources: map[string][]string{},
	}
	pageHost := csp.Hostname(pageURL)
	for _, e := range obs.Resources {
		u, err := url.Parse(e.Name)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if host == pageHost {
			continue
		}
		directive, ok := DirectiveFor(e)
		if !ok {
			continue
		}
		origins[directive][host] = true
		rec.resources[directive] = append(rec.resources[directive], e.Name)
	}
	return rec
}

// blocked evaluates the page's own header policy against what it loaded. A
// directive absent from the policy falls back to default-src; when neither is
// present nothing restricts the load.
func blocked(p pageRecord) []csp.BlockedResource {
	if p.policy == "" {
		return nil
	}
	m := csp.Parse(p.policy)
	seen := map[string]bool{}
	var out []csp.BlockedResource
	for _, d := range Directives {
		effective := d
		if !m.Has(d) {
			if !m.Has(csp.DefaultSrc) {
				continue
			}
			effective = csp.DefaultSrc
		}
		for _, res := range p.resources[d] {
			if seen[d+" "+res] || csp.IsAllowed(res, m, effective) {
				continue
			}
			seen[d+" "+res] = true
			host := csp.Hostname(res)
			out = append(out, csp.BlockedResource{
				Type:           strings.TrimSuffix(d, "-src"),
				URL:            res,
				Directive:      d,
				Hostname:       host,
				Recommendation: fmt.Sprintf("Add %s to %s directive", host, d),
			})
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
