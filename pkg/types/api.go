package types

// ChatMessage is a single turn in a chat completion request.
type ChatMessage struct {
	// Role of the author: system, user or assistant.
	// example: user
	Role string `json:"role" example:"user"`
	// Text content of the message.
	// example: Write a haiku about the ocean.
	Content string `json:"content" example:"Write a haiku about the ocean."`
}

// ChatCompletionRequest is the inbound payload for POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// Optional model identifier. The gateway always routes to the configured
	// runner model; a mismatching value is rejected.
	// example: llama3
	Model string `json:"model,omitempty" example:"llama3"`
	// Conversation so far. At least one message is required.
	Messages []ChatMessage `json:"messages"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Optional stop sequences.
	Stop []string `json:"stop,omitempty"`
	// Random seed for reproducibility.
	// example: 42
	Seed *int64 `json:"seed,omitempty" example:"42"`
	// Streaming is not supported by the gateway; true is rejected.
	Stream bool `json:"stream,omitempty"`
}

// CompletionRequest is the inbound payload for POST /v1/completions.
type CompletionRequest struct {
	// Optional model identifier, see ChatCompletionRequest.Model.
	// example: llama3
	Model string `json:"model,omitempty" example:"llama3"`
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Optional stop sequences.
	Stop []string `json:"stop,omitempty"`
	// Random seed for reproducibility.
	// example: 42
	Seed *int64 `json:"seed,omitempty" example:"42"`
	// Repeat penalty applied by llama servers.
	// example: 1.1
	RepeatPenalty float64 `json:"repeat_penalty,omitempty" example:"1.1"`
	// Streaming is not supported by the gateway; true is rejected.
	Stream bool `json:"stream,omitempty"`
}

// ModelInfo describes the capability served by the runner pool.
type ModelInfo struct {
	// example: llama3
	ID string `json:"id" example:"llama3"`
	// example: model
	Object string `json:"object" example:"model"`
	// example: runnerd
	OwnedBy string `json:"owned_by" example:"runnerd"`
}

// ModelsResponse is returned by GET /v1/models in OpenAI list form.
type ModelsResponse struct {
	// example: list
	Object string      `json:"object" example:"list"`
	Data   []ModelInfo `json:"data"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Status returned by the runner, when the failure came from a runner.
	// example: 500
	RunnerStatus int `json:"runner_status,omitempty" example:"500"`
	// Body returned by the runner (truncated), when the failure came from a runner.
	RunnerBody string `json:"runner_body,omitempty"`
}

// RunnerStatus summarizes a single runner for /status.
type RunnerStatus struct {
	// Base URL of the runner.
	// example: http://127.0.0.1:9001
	URL string `json:"url" example:"http://127.0.0.1:9001"`
	// Admission state: loading, idle, busy, draining, unreachable.
	// example: idle
	State string `json:"state" example:"idle"`
	// Whether a request is currently running on this runner.
	// example: false
	Serving bool `json:"serving" example:"false"`
	// Last time this runner was assigned a request (unix seconds, 0 if never).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Requests completed by this runner.
	// example: 12
	ServedTotal uint64 `json:"served_total" example:"12"`
	// Requests that failed on this runner.
	// example: 1
	FailuresTotal uint64 `json:"failures_total" example:"1"`
	// Current run of consecutive failures.
	// example: 0
	ConsecutiveFailures int `json:"consecutive_failures" example:"0"`
	// When an unreachable runner becomes eligible again (unix seconds).
	// example: 1700000030
	UnreachableUntil int64 `json:"unreachable_until_unix,omitempty" example:"1700000030"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall scheduler state: loading, ready, closed.
	// example: ready
	State string `json:"state" example:"ready"`
	// Capability identifier every runner must serve.
	// example: llama3
	Model string `json:"model" example:"llama3"`
	// Number of runners in the pool.
	// example: 2
	PoolSize int `json:"pool_size" example:"2"`
	// Runners ready to accept work.
	// example: 1
	Idle int `json:"idle" example:"1"`
	// Runners currently serving a request.
	// example: 1
	Busy int `json:"busy" example:"1"`
	// Requests waiting for a runner.
	// example: 0
	QueueDepth int `json:"queue_depth" example:"0"`
	// Maximum queued requests before backpressure triggers.
	// example: 32
	QueueCapacity int `json:"queue_capacity" example:"32"`
	// Age of the oldest queued request in seconds.
	// example: 0.25
	OldestQueuedSeconds float64 `json:"oldest_queued_seconds" example:"0.25"`
	// Per-runner detail in registration order.
	Runners []RunnerStatus `json:"runners"`
	// Submissions accepted (direct or queued).
	// example: 100
	SubmittedTotal uint64 `json:"submitted_total" example:"100"`
	// Submissions rejected because the queue was full.
	// example: 3
	RejectedTotal uint64 `json:"rejected_total" example:"3"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// RunnerRegistration is the body of POST /admin/runners and POST /admin/runners/drain.
type RunnerRegistration struct {
	// example: http://127.0.0.1:9003
	URL string `json:"url" example:"http://127.0.0.1:9003"`
}
