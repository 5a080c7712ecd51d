// Package config loads service configuration from an optional YAML
// file with environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	// RetryLimit bounds healing iterations per run.
	RetryLimit int `yaml:"retry_limit"`

	// CIPollIntervalSeconds is the fixed delay between CI status checks.
	CIPollIntervalSeconds int `yaml:"ci_poll_interval_seconds"`

	// CIPollTimeoutSeconds caps one CI polling wait.
	CIPollTimeoutSeconds int `yaml:"ci_poll_timeout_seconds"`

	// TestTimeoutSeconds caps one test-run invocation.
	TestTimeoutSeconds int `yaml:"test_timeout_seconds"`

	// SandboxRoot is where run checkouts are cloned.
	SandboxRoot string `yaml:"sandbox_root"`

	// ResultsDir receives final report JSON files.
	ResultsDir string `yaml:"results_dir"`

	// HistoryPath is the SQLite run-history database file.
	HistoryPath string `yaml:"history_path"`

	// ListenAddr is the HTTP API bind address.
	ListenAddr string `yaml:"listen_addr"`

	// MaxConcurrentRuns bounds simultaneously executing runs.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`

	// GitHubToken authenticates clones and CI polling. Env only in
	// practice; the YAML field exists for completeness.
	GitHubToken string `yaml:"github_token"`

	// AnthropicAPIKey enables the LLM fix generator when set.
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		RetryLimit:            5,
		CIPollIntervalSeconds: 5,
		CIPollTimeoutSeconds:  180,
		TestTimeoutSeconds:    300,
		SandboxRoot:           "sandbox",
		ResultsDir:            "results",
		HistoryPath:           "mend.db",
		ListenAddr:            ":8000",
		MaxConcurrentRuns:     4,
	}
}

// Load reads the YAML file at path (missing file is not an error),
// applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus env.
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	intEnv("RETRY_LIMIT", &c.RetryLimit)
	intEnv("CI_POLL_INTERVAL_SECONDS", &c.CIPollIntervalSeconds)
	intEnv("CI_POLL_TIMEOUT_SECONDS", &c.CIPollTimeoutSeconds)
	intEnv("TEST_TIMEOUT_SECONDS", &c.TestTimeoutSeconds)
	intEnv("MAX_CONCURRENT_RUNS", &c.MaxConcurrentRuns)
	strEnv("SANDBOX_ROOT", &c.SandboxRoot)
	strEnv("RESULTS_DIR", &c.ResultsDir)
	strEnv("HISTORY_PATH", &c.HistoryPath)
	strEnv("LISTEN_ADDR", &c.ListenAddr)
	strEnv("GITHUB_TOKEN", &c.GitHubToken)
	strEnv("ANTHROPIC_API_KEY", &c.AnthropicAPIKey)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.RetryLimit < 1 {
		return fmt.Errorf("retry_limit must be at least 1, got %d", c.RetryLimit)
	}
	if c.CIPollIntervalSeconds < 1 {
		return fmt.Errorf("ci_poll_interval_seconds must be at least 1, got %d", c.CIPollIntervalSeconds)
	}
	if c.CIPollTimeoutSeconds < c.CIPollIntervalSeconds {
		return fmt.Errorf("ci_poll_timeout_seconds (%d) must not be below the poll interval (%d)",
			c.CIPollTimeoutSeconds, c.CIPollIntervalSeconds)
	}
	if c.MaxConcurrentRuns < 1 {
		return fmt.Errorf("max_concurrent_runs must be at least 1, got %d", c.MaxConcurrentRuns)
	}
	return nil
}

// CIPollInterval returns the poll interval as a duration.
func (c *Config) CIPollInterval() time.Duration {
	return time.Duration(c.CIPollIntervalSeconds) * time.Second
}

// CIPollTimeout returns the poll timeout as a duration.
func (c *Config) CIPollTimeout() time.Duration {
	return time.Duration(c.CIPollTimeoutSeconds) * time.Second
}

// TestTimeout returns the test-run timeout as a duration.
func (c *Config) TestTimeout() time.Duration {
	return time.Duration(c.TestTimeoutSeconds) * time.Second
}

func intEnv(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

func strEnv(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
