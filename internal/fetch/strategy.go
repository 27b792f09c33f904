package fetch

import (
	"time"

	"cspAudit/internal/config"
)

const (
	userAgentChrome91  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	userAgentChrome120 = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptHTML         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// Strategy is one way of fetching a page: request headers, a timeout for the
// request and a pause taken after a successful response.
type Strategy struct {
	Name    string
	Timeout time.Duration
	Delay   time.Duration
	Headers map[string]string
	HTTP3   bool
}

// Accept-Encoding and Connection are left to net/http, which negotiates gzip
// and keep-alive itself and decompresses transparently only when it does.
func browserHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    acceptHTML,
		"Accept-Language":           "en-US,en;q=0.9",
		"DNT":                       "1",
		"Upgrade-Insecure-Requests": "1",
	}
}

func minimalHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent": userAgent,
		"Accept":     acceptHTML,
	}
}

// Strategies returns the fetch strategies in the order they are tried.
// Serverless hosts get the single quick Chrome/120 strategy.
//  1. standard: Chrome/91 with full browser headers, short timeout and delay
//  2. extended: same headers, long timeout and delay
//  3. alternate-ua: Chrome/120 with a minimal Accept header
//  4. http3: as standard over QUIC, only with -http3
func Strategies(cfg *config.Config) []Strategy {
	if cfg.IsVercel {
		return []Strategy{{
			Name:    "alternate-ua",
			Timeout: cfg.FetchTimeout,
			Delay:   cfg.FetchDelay,
			Headers: minimalHeaders(userAgentChrome120),
		}}
	}

	strategies := []Strategy{
		{
			Name:    "standard",
			Timeout: cfg.FetchTimeout,
			Delay:   cfg.FetchDelay,
			Headers: browserHeaders(userAgentChrome91),
		},
		{
			Name:    "extended",
			Timeout: cfg.FetchTimeoutLong,
			Delay:   cfg.FetchDelayLong,
			Headers: browserHeaders(userAgentChrome91),
		},
		{
			Name:    "alternate-ua",
			Timeout: cfg.FetchTimeout,
			Delay:   cfg.FetchDelay,
			Headers: minimalHeaders(userAgentChrome120),
		},
	}
	if cfg.EnableHTTP3 {
		strategies = append(strategies, Strategy{
			Name:    "http3",
			Timeout: cfg.FetchTimeout,
			Delay:   cfg.FetchDelay,
			Headers: browserHeaders(userAgentChrome91),
			HTTP3:   true,
		})
	}
	return strategies
}
