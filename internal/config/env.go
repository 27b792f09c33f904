package config

import (
	"fmt"
	"strconv"
	"time"
)

// Environment variables understood by the auditor.
const (
	EnvFetchTimeout     = "FETCH_TIMEOUT_MS"
	EnvFetchTimeoutLong = "FETCH_TIMEOUT_MS_LONG"
	EnvFetchDelay       = "FETCH_DELAY_MS"
	EnvFetchDelayLong   = "FETCH_DELAY_MS_LONG"
	EnvVercel           = "VERCEL"
	EnvPort             = "PORT"
	EnvExtractMaxURLs   = "EXTRACT_MAX_URLS"
)

// ApplyEnv reads the environment through getenv. VERCEL switches every
// timing default to the tight serverless profile before the individual
// FETCH_* overrides are applied. Missing, zero or malformed FETCH_* values
// keep the default. Flags given on the command line are never overridden.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	c.IsVercel = getenv(EnvVercel) != ""
	if c.IsVercel {
		c.setDuration("fetch-timeout", &c.FetchTimeout, 8*time.Second)
		c.setDuration("fetch-timeout-long", &c.FetchTimeoutLong, 9*time.Second)
		c.setDuration("fetch-delay", &c.FetchDelay, 200*time.Millisecond)
		c.setDuration("fetch-delay-long", &c.FetchDelayLong, 300*time.Millisecond)
		c.setDuration("backoff", &c.StrategyBackoff, 50*time.Millisecond)
		if !c.explicit["max-runtime-urls"] {
			c.MaxRuntimeURLs = 3
		}
	}

	c.applyMillis("fetch-timeout", getenv(EnvFetchTimeout), &c.FetchTimeout)
	c.applyMillis("fetch-timeout-long", getenv(EnvFetchTimeoutLong), &c.FetchTimeoutLong)
	c.applyMillis("fetch-delay", getenv(EnvFetchDelay), &c.FetchDelay)
	c.applyMillis("fetch-delay-long", getenv(EnvFetchDelayLong), &c.FetchDelayLong)

	if v := getenv(EnvPort); v != "" && !c.explicit["port"] {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s %q", EnvPort, v)
		}
		c.Port = port
	}

	if v := getenv(EnvExtractMaxURLs); v != "" && !c.explicit["max-runtime-urls"] {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid %s %q", EnvExtractMaxURLs, v)
		}
		c.MaxRuntimeURLs = n
	}
	return nil
}

func (c *Config) setDuration(flagName string, dst *time.Duration, v time.Duration) {
	if !c.explicit[flagName] {
		*dst = v
	}
}

func (c *Config) applyMillis(flagName, v string, dst *time.Duration) {
	if v == "" {
		return
	}
	ms, err := strconv.ParseFloat(v, 64)
	if err != nil || ms <= 0 {
		return
	}
	c.setDuration(flagName, dst, time.Duration(ms*float64(time.Millisecond)))
}
