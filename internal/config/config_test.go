package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestApplyEnv_Defaults(t *testing.T) {
	cfg := New()
	if err := cfg.ApplyEnv(envMap(nil)); err != nil {
		t.Fatal(err)
	}
	if cfg.IsVercel {
		t.Error("IsVercel should be false without VERCEL")
	}
	if cfg.FetchTimeout != 30*time.Second || cfg.FetchTimeoutLong != 45*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.FetchTimeout, cfg.FetchTimeoutLong)
	}
	if cfg.FetchDelay != 4*time.Second || cfg.FetchDelayLong != 6*time.Second {
		t.Errorf("delays = %v/%v", cfg.FetchDelay, cfg.FetchDelayLong)
	}
	if cfg.MaxRuntimeURLs != 10 {
		t.Errorf("MaxRuntimeURLs = %d", cfg.MaxRuntimeURLs)
	}
}

func TestApplyEnv_Vercel(t *testing.T) {
	cfg := New()
	if err := cfg.ApplyEnv(envMap(map[string]string{EnvVercel: "1"})); err != nil {
		t.Fatal(err)
	}
	if !cfg.IsVercel {
		t.Fatal("IsVercel should be true")
	}
	if cfg.FetchTimeout != 8*time.Second || cfg.FetchTimeoutLong != 9*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.FetchTimeout, cfg.FetchTimeoutLong)
	}
	if cfg.FetchDelay != 200*time.Millisecond || cfg.FetchDelayLong != 300*time.Millisecond {
		t.Errorf("delays = %v/%v", cfg.FetchDelay, cfg.FetchDelayLong)
	}
	if cfg.StrategyBackoff != 50*time.Millisecond {
		t.Errorf("backoff = %v", cfg.StrategyBackoff)
	}
	if cfg.MaxRuntimeURLs != 3 {
		t.Errorf("MaxRuntimeURLs = %d", cfg.MaxRuntimeURLs)
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	cfg := New()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvFetchTimeout:   "1500",
		EnvFetchDelay:     "0",
		EnvFetchDelayLong: "soon",
		EnvPort:           "8080",
		EnvExtractMaxURLs: "25",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FetchTimeout != 1500*time.Millisecond {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout)
	}
	// zero and malformed values keep the default
	if cfg.FetchDelay != 4*time.Second || cfg.FetchDelayLong != 6*time.Second {
		t.Errorf("delays = %v/%v", cfg.FetchDelay, cfg.FetchDelayLong)
	}
	if cfg.Port != 8080 || cfg.Addr() != ":8080" {
		t.Errorf("Port = %d, Addr = %s", cfg.Port, cfg.Addr())
	}
	if cfg.MaxRuntimeURLs != 25 {
		t.Errorf("MaxRuntimeURLs = %d", cfg.MaxRuntimeURLs)
	}
}

func TestApplyEnv_ExplicitFlagWins(t *testing.T) {
	cfg := New()
	cfg.Port = 9000
	cfg.FetchTimeout = 2 * time.Second
	cfg.explicit = map[string]bool{"port": true, "fetch-timeout": true}
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvVercel:       "1",
		EnvPort:         "8080",
		EnvFetchTimeout: "1500",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.FetchTimeout != 2*time.Second {
		t.Errorf("FetchTimeout = %v, want 2s", cfg.FetchTimeout)
	}
	if cfg.FetchTimeoutLong != 9*time.Second {
		t.Errorf("FetchTimeoutLong = %v, want Vercel default", cfg.FetchTimeoutLong)
	}
}

func TestApplyEnv_InvalidPort(t *testing.T) {
	cfg := New()
	if err := cfg.ApplyEnv(envMap(map[string]string{EnvPort: "http"})); err == nil {
		t.Error("expected error for non-numeric PORT")
	}
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cspaudit.yaml")
	content := `
exclude:
  - "*/wp-admin/*"
  - "*.pdf"
existing_rule: "default-src 'self'"
export_format: json
tech_detect: true
fetch:
  timeout: 5s
  batch_delay: 250ms
runtime:
  max_urls: 4
server:
  port: 4000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}

	cfg := New()
	s.Apply(cfg, map[string]bool{"port": true})

	if cfg.Exclude != "*/wp-admin/*,*.pdf" {
		t.Errorf("Exclude = %q", cfg.Exclude)
	}
	if cfg.ExistingRule != "default-src 'self'" {
		t.Errorf("ExistingRule = %q", cfg.ExistingRule)
	}
	if cfg.ExportFormat != "json" || !cfg.TechDetect {
		t.Errorf("ExportFormat = %q, TechDetect = %v", cfg.ExportFormat, cfg.TechDetect)
	}
	if cfg.FetchTimeout != 5*time.Second || cfg.BatchDelay != 250*time.Millisecond {
		t.Errorf("FetchTimeout = %v, BatchDelay = %v", cfg.FetchTimeout, cfg.BatchDelay)
	}
	if cfg.MaxRuntimeURLs != 4 {
		t.Errorf("MaxRuntimeURLs = %d", cfg.MaxRuntimeURLs)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, explicit flag should keep the default", cfg.Port)
	}
	if cfg.DetectCDN {
		t.Error("unset bool should stay false")
	}
}

func TestLoadSettings_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("fetch:\n  timeout: forever\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoadSettings_Missing(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg := New()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	cfg.ExportFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown export format")
	}

	cfg = New()
	cfg.Serve, cfg.Runtime = true, true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for -serve with -runtime")
	}
}
