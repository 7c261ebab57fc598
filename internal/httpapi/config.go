package httpapi

import (
	"runnerd/internal/ratelimit"
)

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

// apiKey, when set, is required as a bearer token on /v1 and /admin routes.
var apiKey string

// SetAPIKey configures the bearer token clients must present. Empty disables auth.
func SetAPIKey(key string) { apiKey = key }

// limiter gates completion requests per client. Nil disables rate limiting.
var limiter ratelimit.Limiter

// SetRateLimiter installs the per-client limiter.
func SetRateLimiter(l ratelimit.Limiter) { limiter = l }
