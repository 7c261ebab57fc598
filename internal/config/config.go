package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable ApplyEnv reads.
const EnvPrefix = "RUNNERD_"

// Defaults returns the configuration used when nothing else is specified.
func Defaults() Config {
	return Config{
		Addr:            ":8080",
		HealthPath:      "/v1/models",
		MaxQueueSize:    32,
		ProbeAttempts:   60,
		ProbeDelay:      Duration(3 * time.Second),
		ProbeTimeout:    Duration(5 * time.Second),
		Selection:       "ordered",
		FailureCooldown: Duration(30 * time.Second),
		DrainTimeout:    Duration(30 * time.Second),
		MaxBodyBytes:    10 << 20,
		RateLimit: RateLimit{
			Window: Duration(time.Minute),
			Prefix: "runnerd:rl:",
		},
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// ApplyEnv overlays RUNNERD_* variables read through getenv onto cfg. Empty
// variables are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = SplitCSV(v)
		}
	}
	num := func(name string, dst *int) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *Duration) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			d, err := ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = Duration(d)
		}
	}

	str("ADDR", &cfg.Addr)
	list("RUNNERS", &cfg.Runners)
	str("RUNNERS_FILE", &cfg.RunnersFile)
	str("MODEL", &cfg.Model)
	str("HEALTH_PATH", &cfg.HealthPath)
	num("MAX_QUEUE_SIZE", &cfg.MaxQueueSize)
	num("PROBE_ATTEMPTS", &cfg.ProbeAttempts)
	dur("PROBE_DELAY", &cfg.ProbeDelay)
	dur("PROBE_TIMEOUT", &cfg.ProbeTimeout)
	dur("RUNNER_TIMEOUT", &cfg.RunnerTimeout)
	dur("SUBMIT_TIMEOUT", &cfg.SubmitTimeout)
	str("SELECTION", &cfg.Selection)
	num("FAILURE_THRESHOLD", &cfg.FailureThreshold)
	dur("FAILURE_COOLDOWN", &cfg.FailureCooldown)
	dur("DRAIN_TIMEOUT", &cfg.DrainTimeout)
	str("API_KEY", &cfg.APIKey)
	str("RUNNER_API_KEY", &cfg.RunnerAPIKey)
	if v := strings.TrimSpace(getenv(EnvPrefix + "MAX_BODY_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_BODY_BYTES: %w", EnvPrefix, err))
		} else {
			cfg.MaxBodyBytes = n
		}
	}
	num("RATE_LIMIT_REQUESTS", &cfg.RateLimit.Requests)
	dur("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	str("REDIS_URL", &cfg.RateLimit.RedisURL)
	if v := strings.TrimSpace(getenv(EnvPrefix + "CORS_ORIGINS")); v != "" {
		cfg.CORS.Enabled = true
		cfg.CORS.Origins = SplitCSV(v)
	}
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	return errors.Join(errs...)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if len(c.Runners) == 0 && c.RunnersFile == "" {
		errs = append(errs, errors.New("at least one runner is required (runners or runners_file)"))
	}
	if c.MaxQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("max_queue_size must be > 0, got %d", c.MaxQueueSize))
	}
	if c.ProbeAttempts <= 0 {
		errs = append(errs, fmt.Errorf("probe_attempts must be > 0, got %d", c.ProbeAttempts))
	}
	switch c.Selection {
	case "", "ordered", "round_robin", "least_recent":
	default:
		errs = append(errs, fmt.Errorf("selection must be ordered, round_robin or least_recent, got %q", c.Selection))
	}
	if c.FailureThreshold < 0 {
		errs = append(errs, fmt.Errorf("failure_threshold must be >= 0, got %d", c.FailureThreshold))
	}
	for name, d := range map[string]Duration{
		"probe_delay": c.ProbeDelay, "probe_timeout": c.ProbeTimeout, "runner_timeout": c.RunnerTimeout,
		"submit_timeout": c.SubmitTimeout, "failure_cooldown": c.FailureCooldown, "drain_timeout": c.DrainTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.RateLimit.Requests < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests must be >= 0"))
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.window must be > 0 when rate limiting is enabled"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// SplitCSV splits a comma-separated list, trimming blanks and dropping empty items.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
