package fetch

import (
	"crypto/tls"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go/http3"
	"golang.org/x/time/rate"

	"cspAudit/internal/config"
)

// Client wraps the HTTP clients used by the fetch strategies with per-host rate limiting.
type Client struct {
	httpClient  *http.Client
	http3Client *http.Client
	h3transport *http3.Transport
	limiters    map[string]*rate.Limiter
	mu          sync.Mutex
	config      *config.Config
	strategies  []Strategy
}

// NewClient creates a Client for cfg. The HTTP/3 client is only built when
// cfg.EnableHTTP3 is set.
func NewClient(cfg *config.Config) *Client {
	tlsConfig := newTLSConfig(cfg)

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig:     tlsConfig,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		httpClient: &http.Client{
			Transport:     transport,
			CheckRedirect: redirectPolicy(cfg.MaxRedirects),
		},
		limiters:   make(map[string]*rate.Limiter),
		config:     cfg,
		strategies: Strategies(cfg),
	}

	if cfg.EnableHTTP3 {
		c.h3transport = &http3.Transport{TLSClientConfig: tlsConfig.Clone()}
		c.http3Client = &http.Client{
			Transport:     c.h3transport,
			CheckRedirect: redirectPolicy(cfg.MaxRedirects),
		}
	}
	return c
}

func newTLSConfig(cfg *config.Config) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
}

func redirectPolicy(max int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
}

// Limiter returns the rate limiter for host, creating it on first use.
// Rate: 10 requests per second per host, burst 1.
func (c *Client) Limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limiter, exists := c.limiters[host]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(10, 1)
	c.limiters[host] = limiter
	return limiter
}

// Strategies returns the strategies this client tries, in order.
func (c *Client) Strategies() []Strategy {
	return c.strategies
}

func (c *Client) clientFor(s Strategy) *http.Client {
	if s.HTTP3 && c.http3Client != nil {
		return c.http3Client
	}
	return c.httpClient
}

// Close releases idle connections and the QUIC transport.
func (c *Client) Close() error {
	if t, ok := c.httpClient.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	if c.h3transport != nil {
		return c.h3transport.Close()
	}
	return nil
}
