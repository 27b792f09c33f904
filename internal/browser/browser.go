// Package browser observes page loads in headless Chrome.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"cspAudit/internal/audit"
	"cspAudit/internal/config"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const resourceScript = `performance.getEntriesByType('resource').map(e => ({name: e.name, initiatorType: e.initiatorType}))`

// Observer loads pages in a shared browser, one tab per page.
type Observer struct {
	config        *config.Config
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewObserver starts the browser. Close must be called to stop it.
func NewObserver(ctx context.Context, cfg *config.Config) (*Observer, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if cfg.ShowBrowser {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// start the browser now so a missing binary fails fast
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Observer{
		config:        cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Observe navigates to pageURL, waits for the page to settle and collects the
// document response headers, console errors and loaded resources.
func (o *Observer) Observe(ctx context.Context, pageURL string) (*audit.Observation, error) {
	tabCtx, tabCancel := chromedp.NewContext(o.browserCtx)
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, o.config.FetchTimeoutLong)
	defer cancel()

	// stop the tab when the caller gives up
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		mu      sync.Mutex
		headers map[string]string
		errs    []string
	)

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		mu.Lock()
		defer mu.Unlock()

		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Type != network.ResourceTypeDocument || headers != nil || e.Response == nil {
				return
			}
			headers = make(map[string]string, len(e.Response.Headers))
			for k, v := range e.Response.Headers {
				headers[strings.ToLower(k)] = fmt.Sprint(v)
			}
		case *log.EventEntryAdded:
			if e.Entry != nil && e.Entry.Level == log.LevelError {
				errs = append(errs, e.Entry.Text)
			}
		case *runtime.EventConsoleAPICalled:
			if e.Type != runtime.APITypeError {
				return
			}
			parts := make([]string, 0, len(e.Args))
			for _, arg := range e.Args {
				if arg.Value != nil {
					parts = append(parts, strings.Trim(string(arg.Value), `"`))
				} else if arg.Description != "" {
					parts = append(parts, arg.Description)
				}
			}
			errs = append(errs, strings.Join(parts, " "))
		}
	})

	var entries []audit.Entry
	err := chromedp.Run(tabCtx,
		network.Enable(),
		log.Enable(),
		runtime.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(o.config.FetchDelay),
		chromedp.Evaluate(resourceScript, &entries),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", pageURL, err)
	}

	mu.Lock()
	defer mu.Unlock()
	return &audit.Observation{
		Headers:       headers,
		Resources:     entries,
		ConsoleErrors: errs,
	}, nil
}

// Close stops the browser.
func (o *Observer) Close() {
	o.browserCancel()
	o.allocCancel()
}
