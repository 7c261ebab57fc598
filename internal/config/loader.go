package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"runnerd/internal/common/fsutil"
)

// Config holds runtime parameters for the service.
// Load starts from Defaults, so fields absent from a file keep their default.
type Config struct {
	Addr        string   `json:"addr" yaml:"addr" toml:"addr"`
	Runners     []string `json:"runners" yaml:"runners" toml:"runners"`
	RunnersFile string   `json:"runners_file" yaml:"runners_file" toml:"runners_file"`
	Model       string   `json:"model" yaml:"model" toml:"model"`
	HealthPath  string   `json:"health_path" yaml:"health_path" toml:"health_path"`

	MaxQueueSize  int      `json:"max_queue_size" yaml:"max_queue_size" toml:"max_queue_size"`
	ProbeAttempts int      `json:"probe_attempts" yaml:"probe_attempts" toml:"probe_attempts"`
	ProbeDelay    Duration `json:"probe_delay" yaml:"probe_delay" toml:"probe_delay"`
	ProbeTimeout  Duration `json:"probe_timeout" yaml:"probe_timeout" toml:"probe_timeout"`
	RunnerTimeout Duration `json:"runner_timeout" yaml:"runner_timeout" toml:"runner_timeout"`
	SubmitTimeout Duration `json:"submit_timeout" yaml:"submit_timeout" toml:"submit_timeout"`

	Selection        string   `json:"selection" yaml:"selection" toml:"selection"`
	FailureThreshold int      `json:"failure_threshold" yaml:"failure_threshold" toml:"failure_threshold"`
	FailureCooldown  Duration `json:"failure_cooldown" yaml:"failure_cooldown" toml:"failure_cooldown"`
	DrainTimeout     Duration `json:"drain_timeout" yaml:"drain_timeout" toml:"drain_timeout"`

	APIKey       string `json:"api_key" yaml:"api_key" toml:"api_key"`
	RunnerAPIKey string `json:"runner_api_key" yaml:"runner_api_key" toml:"runner_api_key"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	RateLimit RateLimit `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit"`
	CORS      CORS      `json:"cors" yaml:"cors" toml:"cors"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
}

// RateLimit configures the per-client fixed window. Requests 0 disables it.
// With RedisURL set the counters are shared through Redis.
type RateLimit struct {
	Requests int      `json:"requests" yaml:"requests" toml:"requests"`
	Window   Duration `json:"window" yaml:"window" toml:"window"`
	RedisURL string   `json:"redis_url" yaml:"redis_url" toml:"redis_url"`
	Prefix   string   `json:"prefix" yaml:"prefix" toml:"prefix"`
}

type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Load reads a configuration file based on its extension. A leading ~ in
// path expands to the home directory.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := fsutil.ReadFile("config file", path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
