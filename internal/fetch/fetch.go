package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/pkg/errors"
)

// Response is a successfully fetched page.
type Response struct {
	URL        string
	FinalURL   string
	StatusCode int
	Status     string
	Protocol   string
	Strategy   string
	Headers    http.Header
	Body       []byte
	Elapsed    time.Duration
}

// Fetcher retrieves a page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// Fetch tries each strategy in turn and returns the first response with a
// status below 400. Between failed strategies it waits the configured backoff.
// When every strategy fails the last error is returned.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid URL %s", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported scheme %q", u.Scheme)
	}

	var lastErr error
	for i, s := range c.strategies {
		if i > 0 {
			if err := sleep(ctx, c.config.StrategyBackoff); err != nil {
				return nil, errors.Wrap(err, "fetch cancelled")
			}
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "fetch cancelled")
		}

		if c.config.DebugLogger != nil {
			c.config.DebugLogger.Info("trying fetch strategy",
				"url", rawURL,
				"strategy", s.Name,
				"attempt", i+1,
				"of", len(c.strategies),
			)
		}

		resp, err := c.fetchWithStrategy(ctx, u, s)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		c.config.Logger.Debug("fetch strategy failed",
			"url", rawURL,
			"strategy", s.Name,
			"error", err,
		)
	}
	return nil, lastErr
}

func (c *Client) fetchWithStrategy(ctx context.Context, u *url.URL, s Strategy) (*Response, error) {
	if err := c.waitLimiter(ctx, u.Hostname()); err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, u.String(), s)
	if err != nil {
		return nil, err
	}

	if c.config.FollowMetaRefresh {
		if target := MetaRefreshTarget(resp.Body, resp.FinalURL); target != "" && target != resp.FinalURL {
			c.config.Logger.Debug("following meta refresh", "url", resp.FinalURL, "target", target)
			refreshed, err := c.get(ctx, target, s)
			if err != nil {
				return nil, errors.Wrapf(err, "meta refresh to %s", target)
			}
			refreshed.URL = resp.URL
			resp = refreshed
		}
	}

	// let client-side rendering settle before the caller looks at the page
	if err := sleep(ctx, s.Delay); err != nil {
		return nil, errors.Wrap(err, "fetch cancelled")
	}
	return resp, nil
}

func (c *Client) waitLimiter(ctx context.Context, host string) error {
	limiter := c.Limiter(host)
	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(c.config.RateLimitTimeout)*time.Second)
	defer cancel()
	if err := limiter.Wait(waitCtx); err != nil {
		return errors.Wrapf(err, "rate limit wait for %s", host)
	}
	return nil
}

func (c *Client) get(ctx context.Context, target string, s Strategy) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.clientFor(s).Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %s failed", target)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, httpFailure(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodySize))
	if err != nil {
		return nil, errors.Wrapf(err, "reading body of %s", target)
	}
	if int64(len(body)) >= c.config.MaxBodySize {
		c.config.Logger.Warn("response body truncated",
			"url", target,
			"max_size", c.config.MaxBodySize,
		)
	}

	if c.config.DebugLogger != nil {
		c.config.DebugLogger.Info("request succeeded",
			"url", target,
			"strategy", s.Name,
			"protocol", resp.Proto,
			"status_code", resp.StatusCode,
			"duration", time.Since(start),
		)
	}

	return &Response{
		URL:        target,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Protocol:   resp.Proto,
		Strategy:   s.Name,
		Headers:    resp.Header,
		Body:       body,
		Elapsed:    time.Since(start),
	}, nil
}

// MetaRefreshTarget returns the absolute URL named by a
// <meta http-equiv="refresh" content="N; url=..."> tag, or "".
func MetaRefreshTarget(body []byte, base string) string {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	for _, n := range htmlquery.Find(doc, "//meta[@http-equiv]") {
		if !strings.EqualFold(strings.TrimSpace(htmlquery.SelectAttr(n, "http-equiv")), "refresh") {
			continue
		}
		target := refreshURL(htmlquery.SelectAttr(n, "content"))
		if target == "" {
			continue
		}
		baseURL, err := url.Parse(base)
		if err != nil {
			return ""
		}
		ref, err := url.Parse(target)
		if err != nil {
			return ""
		}
		abs := baseURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return ""
		}
		return abs.String()
	}
	return ""
}

// refreshURL extracts the url= part of a refresh content value.
func refreshURL(content string) string {
	for _, part := range strings.Split(content, ";") {
		part = strings.TrimSpace(part)
		if len(part) > 4 && strings.EqualFold(part[:4], "url=") {
			return strings.Trim(strings.TrimSpace(part[4:]), `"'`)
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
