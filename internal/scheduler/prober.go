package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Prober polls a runner's health listing until it reports the expected model.
// Retries are a fixed count with a fixed delay between attempts.
type Prober struct {
	client   *Client
	model    string
	attempts int
	delay    time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

// Check performs a single readiness attempt.
func (p *Prober) Check(ctx context.Context, baseURL string) error {
	ids, err := p.client.Health(ctx, baseURL)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == p.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not loaded (reported %v)", p.model, ids)
}

// WaitReady retries Check up to the configured attempt budget. Exhaustion
// returns a ReadinessTimeoutError; ctx cancellation returns ctx.Err().
func (p *Prober) WaitReady(ctx context.Context, baseURL string) error {
	var last error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		actx, cancel := context.WithTimeout(ctx, p.timeout)
		last = p.Check(actx, baseURL)
		cancel()
		if last == nil {
			p.log.Debug().Str("runner", baseURL).Int("attempt", attempt).Msg("runner ready")
			return nil
		}
		p.log.Debug().Str("runner", baseURL).Int("attempt", attempt).Err(last).Msg("runner not ready")
		if attempt == p.attempts {
			break
		}
		if p.delay > 0 {
			timer := time.NewTimer(p.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return &ReadinessTimeoutError{Runner: baseURL, Model: p.model, Attempts: p.attempts, LastErr: last}
}
