package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the optional YAML settings file. Zero values leave the
// corresponding Config field untouched.
type Settings struct {
	Exclude      []string `yaml:"exclude"`
	ExistingRule string   `yaml:"existing_rule"`
	ExportDir    string   `yaml:"export_dir"`
	ExportFormat string   `yaml:"export_format"`

	TechDetect *bool `yaml:"tech_detect"`
	DetectCDN  *bool `yaml:"detect_cdn"`
	InlineCSS  *bool `yaml:"inline_css"`

	Fetch struct {
		Timeout     string `yaml:"timeout"`
		TimeoutLong string `yaml:"timeout_long"`
		Delay       string `yaml:"delay"`
		DelayLong   string `yaml:"delay_long"`
		Backoff     string `yaml:"backoff"`
		BatchDelay  string `yaml:"batch_delay"`
		HTTP3       *bool  `yaml:"http3"`
	} `yaml:"fetch"`

	Runtime struct {
		ChromePath string `yaml:"chrome_path"`
		MaxURLs    int    `yaml:"max_urls"`
	} `yaml:"runtime"`

	Server struct {
		Listen string `yaml:"listen"`
		Port   int    `yaml:"port"`
	} `yaml:"server"`
}

// LoadSettings reads and decodes a YAML settings file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("settings file %s: %w", path, err)
	}
	return &s, nil
}

func (s *Settings) validate() error {
	for name, v := range map[string]string{
		"fetch.timeout":      s.Fetch.Timeout,
		"fetch.timeout_long": s.Fetch.TimeoutLong,
		"fetch.delay":        s.Fetch.Delay,
		"fetch.delay_long":   s.Fetch.DelayLong,
		"fetch.backoff":      s.Fetch.Backoff,
		"fetch.batch_delay":  s.Fetch.BatchDelay,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Apply copies the file's values into cfg, skipping any field whose flag
// was set explicitly on the command line.
func (s *Settings) Apply(cfg *Config, explicit map[string]bool) {
	setString := func(flagName string, dst *string, v string) {
		if v != "" && !explicit[flagName] {
			*dst = v
		}
	}
	setBool := func(flagName string, dst *bool, v *bool) {
		if v != nil && !explicit[flagName] {
			*dst = *v
		}
	}
	setInt := func(flagName string, dst *int, v int) {
		if v != 0 && !explicit[flagName] {
			*dst = v
		}
	}
	setDuration := func(flagName string, dst *time.Duration, v string) {
		if v == "" || explicit[flagName] {
			return
		}
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}

	if len(s.Exclude) > 0 && !explicit["exclude"] {
		cfg.Exclude = strings.Join(s.Exclude, ",")
	}
	setString("existing-rule", &cfg.ExistingRule, s.ExistingRule)
	setString("export-dir", &cfg.ExportDir, s.ExportDir)
	setString("export-format", &cfg.ExportFormat, s.ExportFormat)

	setBool("tech-detect", &cfg.TechDetect, s.TechDetect)
	setBool("detect-cdn", &cfg.DetectCDN, s.DetectCDN)
	setBool("inline-css", &cfg.InlineCSS, s.InlineCSS)

	setDuration("fetch-timeout", &cfg.FetchTimeout, s.Fetch.Timeout)
	setDuration("fetch-timeout-long", &cfg.FetchTimeoutLong, s.Fetch.TimeoutLong)
	setDuration("fetch-delay", &cfg.FetchDelay, s.Fetch.Delay)
	setDuration("fetch-delay-long", &cfg.FetchDelayLong, s.Fetch.DelayLong)
	setDuration("backoff", &cfg.StrategyBackoff, s.Fetch.Backoff)
	setDuration("batch-delay", &cfg.BatchDelay, s.Fetch.BatchDelay)
	setBool("http3", &cfg.EnableHTTP3, s.Fetch.HTTP3)

	setString("chrome-path", &cfg.ChromePath, s.Runtime.ChromePath)
	setInt("max-runtime-urls", &cfg.MaxRuntimeURLs, s.Runtime.MaxURLs)

	setString("listen", &cfg.ListenAddr, s.Server.Listen)
	setInt("port", &cfg.Port, s.Server.Port)
}
