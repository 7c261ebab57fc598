package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"runnerd/internal/config"
	"runnerd/internal/httpapi"
	"runnerd/internal/logx"
	"runnerd/internal/ratelimit"
	"runnerd/internal/registry"
	"runnerd/internal/scheduler"
)

// shutdownGrace bounds how long in-flight requests may run after a signal.
const shutdownGrace = 30 * time.Second

// schedulerConfig maps file/env configuration onto scheduler tunables.
// Defaults are already applied to cfg, so a zero probe delay was set
// explicitly and means no pause between attempts.
func schedulerConfig(cfg config.Config, runners []string, log *zerolog.Logger) scheduler.Config {
	probeDelay := cfg.ProbeDelay.D()
	if probeDelay == 0 {
		probeDelay = -1
	}
	return scheduler.Config{
		Runners:          runners,
		Model:            cfg.Model,
		HealthPath:       cfg.HealthPath,
		MaxQueueSize:     cfg.MaxQueueSize,
		ProbeAttempts:    cfg.ProbeAttempts,
		ProbeDelay:       probeDelay,
		ProbeTimeout:     cfg.ProbeTimeout.D(),
		RunnerTimeout:    cfg.RunnerTimeout.D(),
		SubmitTimeout:    cfg.SubmitTimeout.D(),
		Selection:        cfg.Selection,
		FailureThreshold: cfg.FailureThreshold,
		FailureCooldown:  cfg.FailureCooldown.D(),
		DrainTimeout:     cfg.DrainTimeout.D(),
		RunnerAPIKey:     cfg.RunnerAPIKey,
		Logger:           log,
	}
}

// newLimiter returns nil when rate limiting is off. The returned close func
// is always safe to call.
func newLimiter(ctx context.Context, rl config.RateLimit) (ratelimit.Limiter, func() error, error) {
	noop := func() error { return nil }
	if rl.Requests <= 0 {
		return nil, noop, nil
	}
	if rl.RedisURL == "" {
		return ratelimit.NewMemoryLimiter(rl.Requests, rl.Window.D()), noop, nil
	}
	l, err := ratelimit.NewRedisLimiter(ctx, rl.RedisURL, rl.Prefix, rl.Requests, rl.Window.D())
	if err != nil {
		return nil, noop, err
	}
	return l, l.Close, nil
}

func newScheduler(cfg config.Config, log zerolog.Logger) (*scheduler.Scheduler, error) {
	runners, err := registry.Resolve(cfg.Runners, cfg.RunnersFile)
	if err != nil {
		return nil, err
	}
	return scheduler.NewWithConfig(schedulerConfig(cfg, runners, &log))
}

// serve listens immediately, reporting not-ready until every runner passes
// its readiness probe. A runner that never becomes ready stops the process.
func serve(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logx.New(cfg.LogLevel, cfg.LogFormat, logOut)
	sched, err := newScheduler(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter, closeLimiter, err := newLimiter(ctx, cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	defer func() { _ = closeLimiter() }()

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetAPIKey(cfg.APIKey)
	httpapi.SetRateLimiter(limiter)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: httpapi.NewMux(sched), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Str("model", cfg.Model).Int("runners", sched.PoolSize()).Msg("runnerd listening")

	startc := make(chan error, 1)
	go func() { startc <- sched.Start(ctx) }()

	var runErr error
loop:
	for {
		select {
		case err := <-startc:
			startc = nil
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("startup failed")
				runErr = fmt.Errorf("startup: %w", err)
				break loop
			}
		case err := <-errc:
			runErr = fmt.Errorf("server error: %w", err)
			break loop
		case <-ctx.Done():
			log.Info().Msg("shutdown requested")
			break loop
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := sched.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("in-flight requests did not finish")
	}
	return runErr
}

// newProbeCmd checks every configured runner once with the readiness budget
// and prints the resulting pool status.
func newProbeCmd(getenv func(string) string) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Wait for every runner to report the model, then print pool status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, getenv)
			if err != nil {
				return err
			}
			log := logx.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			sched, err := newScheduler(cfg, log)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			defer func() { _ = sched.Close(context.Background()) }()
			startErr := sched.Start(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(sched.Status()); err != nil {
				return err
			}
			return startErr
		},
	}
}
