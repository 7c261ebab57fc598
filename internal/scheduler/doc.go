// Package scheduler provides admission and dispatch of requests onto a fixed
// pool of runner processes. It is structured into small files by concern:
//
//   - scheduler.go: core Scheduler type, Submit/Do, the completion handoff loop.
//   - config.go: Config and package defaults; NewWithConfig applies defaults.
//   - types.go: runner state, Request/Response/Result and the Ticket handle.
//   - errors.go: error types and helpers (IsQueueFull, IsRunnerRejected, ...).
//   - pool.go: Runner Pool and selection policies (ordered, round_robin, least_recent).
//   - queue.go: bounded FIFO admission queue.
//   - client.go: HTTP client for runner health and invocation.
//   - prober.go: readiness probing with bounded linear backoff.
//   - failure.go: optional consecutive-failure policy and recovery probing.
//   - registration.go: runtime add/drain/remove of runners.
//   - status_report.go: Status snapshot and read-only counters.
//   - metrics.go: Prometheus collectors.
//   - events.go, eventpub_memory.go: lifecycle events.
//
// All pool and queue state is guarded by a single mutex on the Scheduler.
// Runner calls and health probes always run outside of it.
package scheduler
