// Package config holds the process configuration for the kaizen server.
//
// Configuration is resolved in three layers, later layers winning:
// built-in defaults, an optional ~/.kaizen/config.json file, and
// KAIZEN_* environment variables. API keys are taken from the standard
// provider variables (ANTHROPIC_API_KEY, OPENAI_API_KEY) so existing
// tool setups keep working.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Provider names accepted in Config.Provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config is the fully resolved server configuration.
type Config struct {
	// Provider selects the AI-request backend: "anthropic" or "openai".
	Provider string `json:"provider"`
	// Model overrides the provider's default model when non-empty.
	Model string `json:"model"`
	// APIKey is never read from the config file — env only.
	APIKey string `json:"-"`

	// DataDir holds the interaction database and log file.
	DataDir string `json:"data_dir"`

	// DefaultInterval is the baseline iteration cadence for new loops.
	DefaultInterval time.Duration `json:"-"`
	// DefaultMaxIterations caps a loop when the caller does not.
	DefaultMaxIterations int `json:"default_max_iterations"`

	// PendingTimeout is how long an acknowledgment may stay waiting
	// before its loop is escalated into the blocked set.
	PendingTimeout time.Duration `json:"-"`
	// StaleTimeout is the global window after which an absent
	// acknowledgment forces strict mode.
	StaleTimeout time.Duration `json:"-"`
	// PendingMonitorPeriod / StaleMonitorPeriod are the monitor tick
	// periods; detection latency is bounded by these, not instantaneous.
	PendingMonitorPeriod time.Duration `json:"-"`
	StaleMonitorPeriod   time.Duration `json:"-"`

	// LogLevel is a zap level string: debug, info, warn, error.
	LogLevel string `json:"log_level"`
}

// fileConfig is the JSON shape of ~/.kaizen/config.json. Durations are
// expressed in seconds to keep the file hand-editable.
type fileConfig struct {
	Provider             string `json:"provider"`
	Model                string `json:"model"`
	DataDir              string `json:"data_dir"`
	DefaultIntervalSecs  int    `json:"default_interval_seconds"`
	DefaultMaxIterations int    `json:"default_max_iterations"`
	PendingTimeoutSecs   int    `json:"pending_timeout_seconds"`
	StaleTimeoutSecs     int    `json:"stale_timeout_seconds"`
	LogLevel             string `json:"log_level"`
}

// Default returns the built-in configuration. The gate timings are the
// product's contract (30s pending, 60s staleness, 5s/30s monitors) and
// only tests should shorten them.
func Default() Config {
	return Config{
		Provider:             ProviderAnthropic,
		DataDir:              defaultDataDir(),
		DefaultInterval:      30 * time.Second,
		DefaultMaxIterations: 10,
		PendingTimeout:       30 * time.Second,
		StaleTimeout:         60 * time.Second,
		PendingMonitorPeriod: 5 * time.Second,
		StaleMonitorPeriod:   30 * time.Second,
		LogLevel:             "info",
	}
}

// Load resolves the configuration: defaults, then the config file if
// present, then environment overrides. A missing config file is not an
// error; a malformed one is.
func Load() (Config, error) {
	cfg := Default()

	path := filepath.Join(configDir(), "config.json")
	if data, err := os.ReadFile(path); err == nil {
		var fc fileConfig
		if err := json.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		applyFile(&cfg, fc)
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid provider %q: must be %q or %q", c.Provider, ProviderAnthropic, ProviderOpenAI)
	}
	if c.DefaultInterval <= 0 {
		return fmt.Errorf("default interval must be positive, got %s", c.DefaultInterval)
	}
	if c.DefaultMaxIterations <= 0 {
		return fmt.Errorf("default max iterations must be positive, got %d", c.DefaultMaxIterations)
	}
	return nil
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.Provider != "" {
		cfg.Provider = fc.Provider
	}
	if fc.Model != "" {
		cfg.Model = fc.Model
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.DefaultIntervalSecs > 0 {
		cfg.DefaultInterval = time.Duration(fc.DefaultIntervalSecs) * time.Second
	}
	if fc.DefaultMaxIterations > 0 {
		cfg.DefaultMaxIterations = fc.DefaultMaxIterations
	}
	if fc.PendingTimeoutSecs > 0 {
		cfg.PendingTimeout = time.Duration(fc.PendingTimeoutSecs) * time.Second
	}
	if fc.StaleTimeoutSecs > 0 {
		cfg.StaleTimeout = time.Duration(fc.StaleTimeoutSecs) * time.Second
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KAIZEN_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("KAIZEN_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("KAIZEN_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("KAIZEN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("KAIZEN_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultMaxIterations = n
		}
	}

	// Provider key: explicit KAIZEN_API_KEY wins, then the provider's
	// conventional variable.
	if v := os.Getenv("KAIZEN_API_KEY"); v != "" {
		cfg.APIKey = v
		return
	}
	switch cfg.Provider {
	case ProviderAnthropic:
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// configDir is ~/.kaizen, falling back to the working directory when
// the home directory cannot be determined.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kaizen"
	}
	return filepath.Join(home, ".kaizen")
}

func defaultDataDir() string {
	return configDir()
}
