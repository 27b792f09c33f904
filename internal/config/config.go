package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cspAudit/pkg/version"
)

// Config holds the CLI and server configuration
type Config struct {
	// Input
	InputFile  string
	URLs       string // comma or newline separated
	SitemapURL string
	Exclude    string // comma separated glob patterns
	ConfigFile string

	// Output
	OutputFile       string
	ExportDir        string
	ExportFormat     string // csv, json or both
	StoreResponse    bool
	StoreResponseDir string
	ExistingRule     string

	// Analysis
	TechDetect  bool
	DetectCDN   bool
	InlineCSS   bool
	BlockedURLs string // comma or newline separated, triaged instead of auditing

	// Runtime (headless browser) audit
	Runtime        bool
	ChromePath     string
	MaxRuntimeURLs int
	ShowBrowser    bool

	// Server
	Serve      bool
	ListenAddr string
	Port       int

	// Fetching
	IsVercel           bool
	FetchTimeout       time.Duration
	FetchTimeoutLong   time.Duration
	FetchDelay         time.Duration
	FetchDelayLong     time.Duration
	StrategyBackoff    time.Duration
	BatchDelay         time.Duration
	RateLimitTimeout   int
	MaxBodySize        int64
	MaxRedirects       int
	FollowMetaRefresh  bool
	EnableHTTP3        bool
	InsecureSkipVerify bool
	AllowPrivateIPs    bool

	// Debug
	Debug        bool
	Silent       bool
	DebugLogFile string
	Version      bool

	Logger          *slog.Logger
	DebugLogger     *slog.Logger // nil unless DebugLogFile is set
	debugFileHandle *os.File

	// flag names given on the command line; they win over file and env
	explicit map[string]bool
}

// New creates a Config with defaults for a long-running (non-serverless) host.
func New() *Config {
	return &Config{
		ExportFormat:      "both",
		StoreResponseDir:  "output",
		MaxRuntimeURLs:    10,
		ListenAddr:        "",
		Port:              3000,
		FetchTimeout:      30 * time.Second,
		FetchTimeoutLong:  45 * time.Second,
		FetchDelay:        4 * time.Second,
		FetchDelayLong:    6 * time.Second,
		StrategyBackoff:   time.Second,
		BatchDelay:        100 * time.Millisecond,
		RateLimitTimeout:  60,
		MaxBodySize:       10 * 1024 * 1024,
		MaxRedirects:      10,
		FollowMetaRefresh: true,
		Logger:            slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
}

// ParseFlags builds the configuration from defaults, the optional settings
// file and the environment. Flags set on the command line take precedence
// over both.
func ParseFlags() (*Config, error) {
	cfg := New()

	formatter := RegisterFlags(cfg)
	flag.Usage = func() {
		formatter.PrintUsage(os.Stderr)
	}
	flag.Parse()

	if cfg.Version {
		fmt.Println(version.GetVersion())
		os.Exit(0)
	}

	cfg.explicit = formatter.ExplicitFlags()

	if cfg.ConfigFile != "" {
		settings, err := LoadSettings(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		settings.Apply(cfg, cfg.explicit)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	if cfg.Silent {
		logLevel = slog.LevelError
	}
	cfg.Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if cfg.DebugLogFile != "" {
		debugFile, err := os.Create(cfg.DebugLogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create debug log file: %w", err)
		}
		cfg.debugFileHandle = debugFile
		cfg.DebugLogger = slog.New(slog.NewTextHandler(debugFile, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		cfg.Logger.Info("debug logging enabled", "file", cfg.DebugLogFile)
	}

	return cfg, nil
}

// Validate rejects contradictory settings.
func (c *Config) Validate() error {
	switch c.ExportFormat {
	case "csv", "json", "both":
	default:
		return fmt.Errorf("-export-format must be csv, json or both, got %q", c.ExportFormat)
	}
	if c.Serve && c.Runtime {
		return fmt.Errorf("-serve and -runtime are mutually exclusive (the server exposes /api/extract-csp)")
	}
	if c.MaxRuntimeURLs < 1 {
		return fmt.Errorf("-max-runtime-urls must be at least 1")
	}
	return nil
}

// Addr is the listen address for server mode.
func (c *Config) Addr() string {
	if c.ListenAddr != "" {
		return c.ListenAddr
	}
	return fmt.Sprintf(":%d", c.Port)
}

// Close cleans up the config's resources
func (c *Config) Close() error {
	if c.debugFileHandle != nil {
		return c.debugFileHandle.Close()
	}
	return nil
}

// HasPipedData checks if there is data being piped to stdin
func HasPipedData() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) == 0
}
