package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"cspAudit/internal/audit"
	"cspAudit/internal/browser"
	"cspAudit/internal/config"
	"cspAudit/internal/csp"
	"cspAudit/internal/discovery"
	"cspAudit/internal/fetch"
	"cspAudit/internal/output"
	"cspAudit/internal/parser"
	"cspAudit/internal/server"
	"cspAudit/internal/session"
	"cspAudit/internal/sitemap"
	"cspAudit/internal/storage"
	"cspAudit/internal/tech"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cfg.Close()

	// If no arguments provided and nothing is piped to stdin, show help
	if flag.NFlag() == 0 && !config.HasPipedData() {
		flag.Usage()
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cfg.Logger.Info("shutting down gracefully...")
		cancel()
	}()

	client := fetch.NewClient(cfg)
	defer client.Close()

	if cfg.Serve {
		if err := serve(ctx, cfg, client); err != nil {
			cfg.Logger.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	var outputWriter io.Writer = os.Stdout
	if cfg.OutputFile != "" {
		file, err := os.Create(cfg.OutputFile)
		if err != nil {
			cfg.Logger.Error("failed to create output file", "file", cfg.OutputFile, "error", err)
			os.Exit(1)
		}
		defer file.Close()
		outputWriter = file
	}
	out := output.NewWriter(outputWriter)

	if cfg.BlockedURLs != "" {
		if err := triage(cfg, out); err != nil {
			cfg.Logger.Error("failed to write triage", "error", err)
			os.Exit(1)
		}
		return
	}

	if cfg.StoreResponse {
		if err := os.MkdirAll(cfg.StoreResponseDir, 0755); err != nil {
			cfg.Logger.Error("failed to create response directory", "path", cfg.StoreResponseDir, "error", err)
			os.Exit(1)
		}
		cfg.Logger.Info("response storage enabled", "directory", cfg.StoreResponseDir)
	}

	urls, err := collectURLs(ctx, cfg, client)
	if err != nil {
		cfg.Logger.Error("failed to read input", "error", err)
		os.Exit(1)
	}
	if len(urls) == 0 {
		cfg.Logger.Error("no valid URLs to audit")
		os.Exit(1)
	}
	cfg.Logger.Info("loaded URLs", "count", len(urls))

	if cfg.Runtime {
		if err := runtimeAudit(ctx, cfg, urls, out); err != nil {
			cfg.Logger.Error("runtime audit failed", "error", err)
			os.Exit(1)
		}
		return
	}

	analyzer := discovery.NewAnalyzer(cfg, client)
	var detector *tech.Detector
	if cfg.TechDetect {
		detector, err = tech.NewDetector()
		if err != nil {
			cfg.Logger.Error("failed to load technology fingerprints", "error", err)
			os.Exit(1)
		}
	}
	analyzer.EnableEnrichment(detector)

	run := session.New(urls)
	results := analyzer.Process(ctx, run)
	completed := 0
	total := run.TotalURLs

	// Check if stderr is a terminal for progress display
	showProgress := !cfg.Silent && term.IsTerminal(int(os.Stderr.Fd()))
	var termHeight int
	if showProgress {
		_, termHeight, _ = term.GetSize(int(os.Stderr.Fd()))
		if termHeight > 0 {
			// Set scroll region to exclude the bottom line
			fmt.Fprintf(os.Stderr, "\033[1;%dr", termHeight-1)
			fmt.Fprintf(os.Stderr, "\033[1;1H")
			fmt.Fprintf(os.Stderr, "\033[s\033[%d;1H\033[K[0/%d] Starting...\033[u", termHeight, total)
		}
	}

	updateStatusBar := func(url string) {
		if !showProgress || termHeight <= 0 {
			return
		}
		displayURL := url
		maxURLLen := 70
		if len(displayURL) > maxURLLen {
			displayURL = displayURL[:maxURLLen-3] + "..."
		}
		fmt.Fprintf(os.Stderr, "\033[s\033[%d;1H\033[K[%d/%d] %s\033[u", termHeight, completed, total, displayURL)
	}

	for result := range results {
		completed++
		updateStatusBar(result.URL)

		if err := out.Write(result); err != nil {
			cfg.Logger.Error("failed to write result", "url", result.URL, "error", err)
			continue
		}

		// With an output file, list audited pages and where their policy came from
		if cfg.OutputFile != "" && result.OK() {
			fmt.Printf("%s [%s]\n", result.URL, result.Source)
		}
	}

	if showProgress && termHeight > 0 {
		fmt.Fprintf(os.Stderr, "\033[r")
		fmt.Fprintf(os.Stderr, "\033[%d;1H\033[K", termHeight)
		fmt.Fprintf(os.Stderr, "\033[%d;1H", termHeight-1)
	}

	if cfg.ExportDir != "" {
		if err := export(cfg, run); err != nil {
			cfg.Logger.Error("export failed", "error", err)
		}
	}

	if cfg.ExistingRule != "" {
		cmp := csp.CompareRule(cfg.ExistingRule, run.PolicyStrings())
		cfg.Logger.Info("existing rule comparison",
			"missing", len(cmp.Missing),
			"removed", len(cmp.Removed),
			"updated_rule", cmp.UpdatedRule,
		)
	}

	for _, stat := range run.Stats() {
		cfg.Logger.Debug("directive", "name", stat.Directive, "pages", stat.Pages, "values", stat.Values)
	}

	p := run.Progress()
	cfg.Logger.Info("audit completed",
		"run", p.ID,
		"total", p.Total,
		"completed", p.Completed,
		"success", p.Succeeded,
		"errors", p.Failed,
		"elapsed", p.Elapsed.Round(time.Millisecond).String(),
	)
}

// collectURLs gathers page URLs from -u, the input file or stdin and the
// sitemap, then validates, deduplicates and filters them.
func collectURLs(ctx context.Context, cfg *config.Config, f fetch.Fetcher) ([]string, error) {
	var raw []string
	if cfg.URLs != "" {
		raw = append(raw, parser.SplitURLList(cfg.URLs)...)
	}

	if cfg.InputFile != "" {
		file, err := os.Open(cfg.InputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		lines, err := parser.ReadURLs(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		raw = append(raw, lines...)
	} else if config.HasPipedData() {
		lines, err := parser.ReadURLs(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		raw = append(raw, lines...)
	}

	if cfg.SitemapURL != "" {
		pages, err := sitemap.Load(ctx, f, parser.NormalizeInput(cfg.SitemapURL))
		if err != nil {
			return nil, err
		}
		cfg.Logger.Info("sitemap loaded", "url", cfg.SitemapURL, "count", len(pages))
		raw = append(raw, pages...)
	}

	var urls []string
	for _, input := range raw {
		u := parser.NormalizeInput(input)
		if err := parser.ValidateURL(u, cfg.AllowPrivateIPs); err != nil {
			cfg.Logger.Warn("skipping invalid URL", "url", input, "error", err)
			continue
		}
		urls = append(urls, u)
	}

	before := len(urls)
	urls = parser.DeduplicateURLs(urls)
	if before != len(urls) {
		cfg.Logger.Info("deduplicated URLs", "before", before, "after", len(urls))
	}

	filter, err := parser.NewExcludeFilter(cfg.Exclude)
	if err != nil {
		return nil, err
	}
	return filter.Filter(urls), nil
}

func export(cfg *config.Config, run *session.Run) error {
	now := time.Now()
	results := run.Snapshot()
	meta := output.NewMetadata(run.URLs, now)
	consolidated := run.Consolidate()

	write := func(name string, data []byte) error {
		path, err := storage.WriteExport(cfg.ExportDir, name, data)
		if err != nil {
			return err
		}
		cfg.Logger.Info("export written", "path", path)
		return nil
	}

	if cfg.ExportFormat == "csv" || cfg.ExportFormat == "both" {
		name := output.ExportFilename("csp-analysis", meta.Domain, now, "csv")
		if err := write(name, output.CSV(results)); err != nil {
			return err
		}
	}
	if cfg.ExportFormat == "json" || cfg.ExportFormat == "both" {
		data, err := output.JSON(meta, results, consolidated)
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if err := write(output.ExportFilename("csp-analysis", meta.Domain, now, "json"), data); err != nil {
			return err
		}
	}

	data, err := output.ConsolidatedJSON(meta, consolidated)
	if err != nil {
		return fmt.Errorf("failed to encode consolidated policy: %w", err)
	}
	return write(output.ExportFilename("consolidated-csp", meta.Domain, now, "json"), data)
}

// triage classifies URLs reported as blocked and prints one directive update
// per directive.
func triage(cfg *config.Config, out *output.Writer) error {
	var blocked []csp.BlockedResource
	for _, u := range parser.SplitURLList(cfg.BlockedURLs) {
		b, err := csp.TriageBlockedURL(u)
		if err != nil {
			cfg.Logger.Warn("skipping blocked URL", "url", u, "error", err)
			continue
		}
		blocked = append(blocked, b)
	}
	return out.Write(struct {
		BlockedResources []csp.BlockedResource `json:"blockedResources"`
		Recommendations  []string              `json:"recommendations"`
	}{blocked, csp.GroupRecommendations(blocked)})
}

func runtimeAudit(ctx context.Context, cfg *config.Config, urls []string, out *output.Writer) error {
	observer, err := browser.NewObserver(ctx, cfg)
	if err != nil {
		return err
	}
	defer observer.Close()

	result, err := audit.NewAuditor(cfg, observer).Run(ctx, urls)
	if err != nil {
		return err
	}
	if !result.Success {
		cfg.Logger.Warn("runtime audit produced no observations", "message", result.Message)
	}
	return out.Write(result)
}

func serve(ctx context.Context, cfg *config.Config, client *fetch.Client) error {
	var auditor server.Auditor
	observer, err := browser.NewObserver(ctx, cfg)
	if err != nil {
		cfg.Logger.Warn("runtime audit disabled", "error", err)
	} else {
		defer observer.Close()
		auditor = audit.NewAuditor(cfg, observer)
	}

	return server.New(cfg, client, auditor).ListenAndServe(ctx)
}
