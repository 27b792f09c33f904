package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// FlagDef describes one flag for the help output. Default carries the
// flag's Go type as well as its default value.
type FlagDef struct {
	Short       string
	Long        string
	Default     any
	Description string
}

// FlagGroup is a named category containing related flags
type FlagGroup struct {
	Name  string
	Flags []FlagDef
}

// HelpFormatter holds the tool info and ordered flag groups for custom help rendering
type HelpFormatter struct {
	ToolName    string
	Description string
	Groups      []*FlagGroup
}

// define registers p under both names using one of the flag.XxxVar functions.
func define[T any](g *FlagGroup, varFn func(*T, string, T, string), p *T, short, long string, value T, usage string) {
	for _, name := range []string{short, long} {
		if name != "" {
			varFn(p, name, value, usage)
		}
	}
	g.Flags = append(g.Flags, FlagDef{Short: short, Long: long, Default: value, Description: usage})
}

func (g *FlagGroup) Bool(p *bool, short, long string, value bool, usage string) {
	define(g, flag.BoolVar, p, short, long, value, usage)
}

func (g *FlagGroup) String(p *string, short, long, value, usage string) {
	define(g, flag.StringVar, p, short, long, value, usage)
}

func (g *FlagGroup) Int(p *int, short, long string, value int, usage string) {
	define(g, flag.IntVar, p, short, long, value, usage)
}

func (g *FlagGroup) Duration(p *time.Duration, short, long string, value time.Duration, usage string) {
	define(g, flag.DurationVar, p, short, long, value, usage)
}

// RegisterFlags creates all flag groups, registers every flag with the standard flag package,
// and returns a populated HelpFormatter.
func RegisterFlags(cfg *Config) *HelpFormatter {
	formatter := &HelpFormatter{
		ToolName:    "cspAudit",
		Description: "Content-Security-Policy discovery, gap analysis and policy synthesis",
	}

	// INPUT
	input := &FlagGroup{Name: "INPUT"}
	input.String(&cfg.InputFile, "i", "input", "", "Input file with one URL per line (default: stdin)")
	input.String(&cfg.URLs, "u", "urls", "", "Comma separated URLs to audit")
	input.String(&cfg.SitemapURL, "sm", "sitemap", "", "Sitemap URL to read page URLs from")
	input.String(&cfg.Exclude, "e", "exclude", "", "Comma separated glob patterns of URLs to skip")
	input.String(&cfg.ConfigFile, "cfg", "config", "", "YAML settings file")
	formatter.Groups = append(formatter.Groups, input)

	// OUTPUT
	output := &FlagGroup{Name: "OUTPUT"}
	output.String(&cfg.OutputFile, "o", "output", "", "JSONL output file (default: stdout)")
	output.String(&cfg.ExportDir, "x", "export-dir", "", "Write CSV/JSON batch reports to this directory")
	output.String(&cfg.ExportFormat, "xf", "export-format", cfg.ExportFormat, "Report format: csv, json or both")
	output.Bool(&cfg.StoreResponse, "sr", "store-response", false, "Store fetched pages to output directory")
	output.String(&cfg.StoreResponseDir, "srd", "store-response-dir", cfg.StoreResponseDir, "Directory to store fetched pages")
	output.String(&cfg.ExistingRule, "er", "existing-rule", "", "Compare the consolidated policy against this CSP")
	formatter.Groups = append(formatter.Groups, output)

	// ANALYSIS
	analysis := &FlagGroup{Name: "ANALYSIS"}
	analysis.Bool(&cfg.TechDetect, "td", "tech-detect", false, "Enable technology detection using wappalyzer")
	analysis.Bool(&cfg.DetectCDN, "cdn", "detect-cdn", false, "Detect CDN from response headers")
	analysis.Bool(&cfg.InlineCSS, "css", "inline-css", false, "Scan inline <style> blocks for url() and @import origins")
	analysis.String(&cfg.BlockedURLs, "b", "blocked", "", "Triage URLs a browser reported as blocked and print directive updates")
	formatter.Groups = append(formatter.Groups, analysis)

	// RUNTIME
	runtime := &FlagGroup{Name: "RUNTIME"}
	runtime.Bool(&cfg.Runtime, "r", "runtime", false, "Load pages in headless Chrome and record what was blocked")
	runtime.String(&cfg.ChromePath, "", "chrome-path", "", "Chrome/Chromium executable (default: autodetect)")
	runtime.Int(&cfg.MaxRuntimeURLs, "", "max-runtime-urls", cfg.MaxRuntimeURLs, "Maximum URLs loaded per runtime audit")
	runtime.Bool(&cfg.ShowBrowser, "", "show-browser", false, "Run Chrome with a visible window")
	formatter.Groups = append(formatter.Groups, runtime)

	// SERVER
	server := &FlagGroup{Name: "SERVER"}
	server.Bool(&cfg.Serve, "s", "serve", false, "Serve the JSON API instead of auditing from the command line")
	server.String(&cfg.ListenAddr, "", "listen", "", "Listen address (overrides -port)")
	server.Int(&cfg.Port, "p", "port", cfg.Port, "Listen port")
	formatter.Groups = append(formatter.Groups, server)

	// CONFIGURATION
	configuration := &FlagGroup{Name: "CONFIGURATION"}
	configuration.Int(&cfg.MaxRedirects, "maxr", "max-redirects", cfg.MaxRedirects, "Max redirects")
	configuration.Bool(&cfg.FollowMetaRefresh, "", "follow-meta-refresh", cfg.FollowMetaRefresh, "Follow one <meta http-equiv=refresh> hop")
	configuration.Bool(&cfg.InsecureSkipVerify, "k", "insecure", false, "Skip TLS certificate verification")
	configuration.Bool(&cfg.AllowPrivateIPs, "", "allow-private", false, "Allow auditing private IP addresses")
	configuration.Bool(&cfg.EnableHTTP3, "", "http3", false, "Add an HTTP/3 (QUIC) fetch strategy")
	formatter.Groups = append(formatter.Groups, configuration)

	// RATE-LIMIT
	rateLimit := &FlagGroup{Name: "RATE-LIMIT"}
	rateLimit.Duration(&cfg.FetchTimeout, "t", "fetch-timeout", cfg.FetchTimeout, "Timeout of the standard fetch strategies")
	rateLimit.Duration(&cfg.FetchTimeoutLong, "", "fetch-timeout-long", cfg.FetchTimeoutLong, "Timeout of the extended fetch strategy")
	rateLimit.Duration(&cfg.FetchDelay, "", "fetch-delay", cfg.FetchDelay, "Pause before each standard fetch")
	rateLimit.Duration(&cfg.FetchDelayLong, "", "fetch-delay-long", cfg.FetchDelayLong, "Pause before the extended fetch")
	rateLimit.Duration(&cfg.StrategyBackoff, "", "backoff", cfg.StrategyBackoff, "Wait between failed strategies")
	rateLimit.Duration(&cfg.BatchDelay, "", "batch-delay", cfg.BatchDelay, "Pause between URLs of a batch")
	rateLimit.Int(&cfg.RateLimitTimeout, "", "rate-limit-timeout", cfg.RateLimitTimeout, "Rate limit wait timeout in seconds")
	formatter.Groups = append(formatter.Groups, rateLimit)

	// DEBUG
	debug := &FlagGroup{Name: "DEBUG"}
	debug.Bool(&cfg.Debug, "d", "debug", false, "Debug mode (log every fetch attempt to stderr)")
	debug.Bool(&cfg.Silent, "", "silent", false, "Silent mode (no errors to stderr)")
	debug.String(&cfg.DebugLogFile, "", "debug-log", "", "Write detailed debug logs to file")
	formatter.Groups = append(formatter.Groups, debug)

	// MISCELLANEOUS
	misc := &FlagGroup{Name: "MISCELLANEOUS"}
	misc.Bool(&cfg.Version, "v", "version", false, "Show version information")
	formatter.Groups = append(formatter.Groups, misc)

	return formatter
}

// ExplicitFlags returns the long names of the flags set on the command line,
// whichever of the two names was used.
func (h *HelpFormatter) ExplicitFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	explicit := make(map[string]bool)
	for _, group := range h.Groups {
		for _, f := range group.Flags {
			name := f.Long
			if name == "" {
				name = f.Short
			}
			if set[f.Short] || set[f.Long] {
				explicit[name] = true
			}
		}
	}
	return explicit
}

// PrintUsage writes the grouped help output to w
func (h *HelpFormatter) PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "%s - %s\n\n", h.ToolName, h.Description)
	fmt.Fprintf(w, "Usage:\n  %s [flags]\n\nFlags:\n", h.ToolName)

	for _, group := range h.Groups {
		fmt.Fprintf(w, "\n%s:\n", group.Name)

		tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
		for _, f := range group.Flags {
			suffix, def := typeAndDefault(f)
			desc := f.Description
			if def != "" {
				desc += " " + def
			}
			fmt.Fprintf(tw, "   %s%s\t%s\n", flagNames(f), suffix, desc)
		}
		tw.Flush()
	}
}

func flagNames(f FlagDef) string {
	var names []string
	for _, n := range []string{f.Short, f.Long} {
		if n != "" {
			names = append(names, "-"+n)
		}
	}
	return strings.Join(names, ", ")
}

// typeAndDefault returns the " type" suffix shown after the flag name and
// the "(default ...)" note, which is empty for zero defaults.
func typeAndDefault(f FlagDef) (string, string) {
	switch v := f.Default.(type) {
	case bool:
		if v {
			return "", "(default true)"
		}
		return "", ""
	case string:
		if v != "" {
			return " string", fmt.Sprintf("(default %q)", v)
		}
		return " string", ""
	case int:
		if v != 0 {
			return " int", fmt.Sprintf("(default %d)", v)
		}
		return " int", ""
	case time.Duration:
		if v != 0 {
			return " duration", fmt.Sprintf("(default %s)", v)
		}
		return " duration", ""
	}
	return "", ""
}
