package scheduler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueSize    = 32
	defaultProbeAttempts   = 60
	defaultProbeDelay      = 3 * time.Second
	defaultProbeTimeout    = 5 * time.Second
	defaultHealthPath      = "/v1/models"
	defaultFailureCooldown = 30 * time.Second
	defaultDrainTimeout    = 30 * time.Second
)

// Config encapsulates all tunables for Scheduler construction.
type Config struct {
	// Runners are base URLs in registration order.
	Runners []string
	// Model is the capability identifier every runner must report before it
	// is admitted to the pool.
	Model      string
	HealthPath string

	MaxQueueSize  int
	ProbeAttempts int
	// ProbeDelay is the fixed pause between readiness attempts; negative
	// means no pause.
	ProbeDelay    time.Duration
	ProbeTimeout  time.Duration
	// RunnerTimeout bounds a single runner call (0 disables).
	RunnerTimeout time.Duration
	// SubmitTimeout bounds Do from submission to result (0 disables).
	SubmitTimeout time.Duration

	// Selection is one of ordered, round_robin, least_recent.
	Selection string
	// FailureThreshold consecutive runner failures mark it unreachable for
	// FailureCooldown. 0 keeps failed runners in rotation.
	FailureThreshold int
	FailureCooldown  time.Duration
	DrainTimeout     time.Duration

	RunnerAPIKey string
	HTTPClient   *http.Client
	Logger       *zerolog.Logger
	Publisher    EventPublisher
}

// NewWithConfig constructs a Scheduler from Config. Runners start in the
// loading state; call Start to probe them.
func NewWithConfig(cfg Config) (*Scheduler, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("scheduler: model is required")
	}
	sel, err := newSelector(cfg.Selection)
	if err != nil {
		return nil, err
	}
	// Apply defaults if unset
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = defaultMaxQueueSize
	}
	if cfg.ProbeAttempts <= 0 {
		cfg.ProbeAttempts = defaultProbeAttempts
	}
	if cfg.ProbeDelay < 0 {
		cfg.ProbeDelay = 0
	} else if cfg.ProbeDelay == 0 {
		cfg.ProbeDelay = defaultProbeDelay
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = defaultHealthPath
	}
	if cfg.FailureCooldown <= 0 {
		cfg.FailureCooldown = defaultFailureCooldown
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	var pub EventPublisher = noopPublisher{}
	if cfg.Publisher != nil {
		pub = cfg.Publisher
	}

	client := NewClient(cfg.HTTPClient, cfg.RunnerAPIKey, cfg.HealthPath)
	s := &Scheduler{
		pool:             newPool(sel),
		queue:            newQueue(cfg.MaxQueueSize),
		client:           client,
		model:            cfg.Model,
		runnerTimeout:    cfg.RunnerTimeout,
		submitTimeout:    cfg.SubmitTimeout,
		failureThreshold: cfg.FailureThreshold,
		failureCooldown:  cfg.FailureCooldown,
		drainTimeout:     cfg.DrainTimeout,
		log:              logger,
		publisher:        pub,
		now:              time.Now,
		startTime:        time.Now(),
	}
	s.prober = &Prober{
		client:   client,
		model:    cfg.Model,
		attempts: cfg.ProbeAttempts,
		delay:    cfg.ProbeDelay,
		timeout:  cfg.ProbeTimeout,
		log:      logger,
	}
	for _, u := range cfg.Runners {
		if err := s.pool.add(&Runner{URL: normalizeURL(u), State: StateLoading}); err != nil {
			return nil, err
		}
	}
	s.updateGaugesLocked()
	return s, nil
}

func normalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
