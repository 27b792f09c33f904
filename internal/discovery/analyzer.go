package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cspAudit/internal/cdn"
	"cspAudit/internal/config"
	"cspAudit/internal/csp"
	"cspAudit/internal/dom"
	"cspAudit/internal/fetch"
	"cspAudit/internal/hash"
	"cspAudit/internal/output"
	"cspAudit/internal/parser"
	"cspAudit/internal/session"
	"cspAudit/internal/storage"
	"cspAudit/internal/tech"
)

// Analyzer fetches pages, discovers their policy and reports the gaps.
type Analyzer struct {
	fetcher fetch.Fetcher
	config  *config.Config
	enrich  bool
	tech    *tech.Detector
}

// NewAnalyzer creates an Analyzer using f to retrieve pages.
func NewAnalyzer(cfg *config.Config, f fetch.Fetcher) *Analyzer {
	return &Analyzer{fetcher: f, config: cfg}
}

// EnableEnrichment adds fingerprints, policy hosts and the optional CDN,
// technology and storage details to every result. td may be nil.
func (a *Analyzer) EnableEnrichment(td *tech.Detector) {
	a.enrich = true
	a.tech = td
}

// AnalyzePage fetches pageURL and audits it. Fetch problems are reported in
// the result, never as an error.
func (a *Analyzer) AnalyzePage(ctx context.Context, pageURL string) output.PageResult {
	if err := parser.ValidateURL(pageURL, a.config.AllowPrivateIPs); err != nil {
		a.logError("refusing URL", "url", pageURL, "error", err)
		return output.Failure(pageURL, fmt.Sprintf("Invalid URL: %v", err))
	}

	resp, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		a.logError("fetch failed", "url", pageURL, "error", err)
		return output.Failure(pageURL, fetch.Message(err))
	}

	result := a.AnalyzeResponse(pageURL, resp.Headers, resp.Body)
	if a.enrich {
		a.enrichResult(&result, resp)
	}

	a.config.Logger.Debug("page analyzed",
		"url", pageURL,
		"source", result.Source,
		"missing", len(result.Analysis.MissingDirectives),
		"blocked", len(result.Analysis.BlockedResources),
	)
	return result
}

// AnalyzeResponse audits an already fetched page.
func (a *Analyzer) AnalyzeResponse(pageURL string, headers http.Header, body []byte) output.PageResult {
	doc, err := dom.Parse(bytes.NewReader(body))
	if err != nil {
		a.config.Logger.Warn("failed to parse HTML", "url", pageURL, "error", err)
		doc = nil
	}

	det := Detect(headers, doc)
	if !det.Found() {
		return output.Success(pageURL, det.Policy, det.Source, csp.NoPolicyAnalysis())
	}

	res := csp.NewResources()
	if doc != nil {
		res = a.resources(doc)
	}
	return output.Success(pageURL, det.Policy, det.Source, csp.Analyze(csp.Parse(det.Policy), det.Policy, res))
}

// Resources fetches pageURL and extracts the external resources it references.
func (a *Analyzer) Resources(ctx context.Context, pageURL string) (csp.Resources, error) {
	resp, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return csp.Resources{}, err
	}
	doc, err := dom.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return csp.Resources{}, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return a.resources(doc), nil
}

func (a *Analyzer) resources(doc dom.Document) csp.Resources {
	res := csp.Classify(doc)
	if a.config.InlineCSS {
		inline := csp.ScanInlineStyles(doc)
		res.Styles = append(res.Styles, inline.Styles...)
		res.Images = append(res.Images, inline.Images...)
		res.Fonts = append(res.Fonts, inline.Fonts...)
	}
	return res
}

func (a *Analyzer) enrichResult(result *output.PageResult, resp *fetch.Response) {
	result.Timestamp = time.Now().Format(time.RFC3339)
	result.FinalURL = resp.FinalURL
	result.StatusCode = resp.StatusCode
	result.Protocol = resp.Protocol
	result.Strategy = resp.Strategy

	fp := hash.New(resp.Headers, resp.Body)
	if result.Source != SourceNone {
		fp.PolicyMMH3 = hash.CalculatePolicyMMH3(result.Policy())
		result.PolicyHosts = csp.Parse(result.Policy()).Hosts()
	}
	result.Hash = &fp

	if a.tech != nil {
		result.Technologies = a.tech.Detect(resp.Headers, resp.Body)
	}
	if a.config.DetectCDN {
		result.CDNName, result.CDN = cdn.Detect(resp.Headers)
	}
	if a.config.StoreResponse {
		u, err := url.Parse(resp.FinalURL)
		if err != nil {
			return
		}
		path, err := storage.StorePage(a.config.StoreResponseDir, u, resp.Status, resp.Headers, result.Policy(), result.Source, resp.Body)
		if err != nil {
			a.config.Logger.Warn("failed to store page", "url", resp.FinalURL, "error", err)
			return
		}
		result.StoredPath = path
	}
}

// Process audits the URLs of run one at a time, pausing cfg.BatchDelay between
// pages. A page that fails, even by panicking, yields an error result. Every result is recorded on run and sent on the returned channel,
// which is closed when the run is exhausted or ctx is cancelled.
func (a *Analyzer) Process(ctx context.Context, run *session.Run) <-chan output.PageResult {
	results := make(chan output.PageResult, run.TotalURLs)

	go func() {
		defer close(results)
		first := true
		for {
			if ctx.Err() != nil {
				return
			}
			pageURL, ok := run.Next()
			if !ok {
				return
			}
			if !first && a.config.BatchDelay > 0 {
				select {
				case <-time.After(a.config.BatchDelay):
				case <-ctx.Done():
					return
				}
			}
			first = false

			result := a.analyzeRecovered(ctx, pageURL)
			run.Record(result)
			results <- result
		}
	}()

	return results
}

// analyzeRecovered is AnalyzePage for batch runs: a panic while auditing one
// page becomes that page's failure instead of ending the run.
func (a *Analyzer) analyzeRecovered(ctx context.Context, pageURL string) (result output.PageResult) {
	defer func() {
		if r := recover(); r != nil {
			a.config.Logger.Error("page analysis panicked", "url", pageURL, "panic", r)
			result = output.Failure(pageURL, "Failed to fetch page")
		}
	}()
	return a.AnalyzePage(ctx, pageURL)
}

// AnalyzeURLs runs Process to completion and returns the results in URL order.
func (a *Analyzer) AnalyzeURLs(ctx context.Context, run *session.Run) []output.PageResult {
	out := make([]output.PageResult, 0, run.TotalURLs)
	for result := range a.Process(ctx, run) {
		out = append(out, result)
	}
	return out
}

func (a *Analyzer) logError(msg string, args ...any) {
	if !a.config.Silent {
		a.config.Logger.Warn(msg, args...)
	}
}
