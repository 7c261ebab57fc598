package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"runnerd/internal/config"
)

// newRootCmd builds the command tree. getenv is injected for tests.
func newRootCmd(getenv func(string) string) *cobra.Command {
	root := &cobra.Command{
		Use:           "runnerd",
		Short:         "Admission and dispatch gateway for a pool of inference runners",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, getenv)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (.yaml, .json, .toml); defaults to RUNNERD_CONFIG")
	pf.String("addr", "", "HTTP listen address, e.g. :8080")
	pf.StringSlice("runners", nil, "Runner base URLs, in priority order")
	pf.String("runners-file", "", "File with one runner URL per line")
	pf.String("model", "", "Model every runner must serve")
	pf.Int("max-queue-size", 0, "Admission queue capacity")
	pf.String("selection", "", "Idle runner selection: ordered|round_robin|least_recent")
	pf.Int("probe-attempts", 0, "Readiness probe attempts per runner")
	pf.Duration("probe-delay", 0, "Pause between readiness attempts")
	pf.Duration("runner-timeout", 0, "Timeout for one runner call (0 = none)")
	pf.Duration("submit-timeout", 0, "Timeout from admission to result (0 = none)")
	pf.Int("failure-threshold", 0, "Consecutive failures before a runner is benched (0 = never)")
	pf.String("api-key", "", "Bearer token required from clients")
	pf.String("log-level", "", "Log level: debug|info|warn|error")
	pf.String("log-format", "", "Log format: console|json")

	root.AddCommand(newProbeCmd(getenv), newVersionCmd(), newConfigCmd(getenv))
	return root
}

// loadConfig layers defaults, the config file, RUNNERD_* variables and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command, getenv func(string) string) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = getenv(config.EnvPrefix + "CONFIG")
	}
	cfg := config.Defaults()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if err := config.ApplyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if fs.Changed(name) {
			*dst, _ = fs.GetInt(name)
		}
	}
	dur := func(name string, dst *config.Duration) {
		if fs.Changed(name) {
			d, _ := fs.GetDuration(name)
			*dst = config.Duration(d)
		}
	}
	str("addr", &cfg.Addr)
	if fs.Changed("runners") {
		cfg.Runners, _ = fs.GetStringSlice("runners")
	}
	str("runners-file", &cfg.RunnersFile)
	str("model", &cfg.Model)
	num("max-queue-size", &cfg.MaxQueueSize)
	str("selection", &cfg.Selection)
	num("probe-attempts", &cfg.ProbeAttempts)
	dur("probe-delay", &cfg.ProbeDelay)
	dur("runner-timeout", &cfg.RunnerTimeout)
	dur("submit-timeout", &cfg.SubmitTimeout)
	num("failure-threshold", &cfg.FailureThreshold)
	str("api-key", &cfg.APIKey)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "runnerd", version)
			return err
		},
	}
}

// newConfigCmd prints the effective configuration with secrets masked.
func newConfigCmd(getenv func(string) string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, getenv)
			if err != nil {
				return err
			}
			if cfg.APIKey != "" {
				cfg.APIKey = "***"
			}
			if cfg.RunnerAPIKey != "" {
				cfg.RunnerAPIKey = "***"
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}
