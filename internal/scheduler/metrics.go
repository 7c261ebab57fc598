package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runnersGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "runnerd",
			Subsystem: "scheduler",
			Name:      "runners",
			Help:      "Runners by admission state.",
		},
		[]string{"state"},
	)
	queueDepthGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "runnerd",
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Requests waiting in the admission queue.",
		},
	)
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "runnerd",
			Subsystem: "scheduler",
			Name:      "submissions_total",
			Help:      "Submissions by admission outcome (dispatched, queued, rejected).",
		},
		[]string{"outcome"},
	)
	runnerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "runnerd",
			Subsystem: "scheduler",
			Name:      "runner_calls_total",
			Help:      "Runner calls by runner and outcome (ok, rejected, unreachable).",
		},
		[]string{"runner", "outcome"},
	)
	timeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "runnerd",
			Subsystem: "scheduler",
			Name:      "timeouts_total",
			Help:      "Submissions whose deadline expired, by phase (queued, dispatched).",
		},
		[]string{"phase"},
	)
	queueWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "runnerd",
			Subsystem: "scheduler",
			Name:      "queue_wait_seconds",
			Help:      "Time a request spent queued before dispatch.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		},
	)
	runnerCallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "runnerd",
			Subsystem: "scheduler",
			Name:      "runner_call_duration_seconds",
			Help:      "Duration of runner calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)
)

func init() {
	prometheus.MustRegister(runnersGauge, queueDepthGauge, submissionsTotal, runnerCallsTotal, timeoutsTotal, queueWaitSeconds, runnerCallDuration)
}

// updateGaugesLocked mirrors pool and queue state into gauges. Caller holds s.mu.
func (s *Scheduler) updateGaugesLocked() {
	counts := s.pool.counts()
	for _, st := range allStates {
		runnersGauge.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
	queueDepthGauge.Set(float64(s.queue.Len()))
}
