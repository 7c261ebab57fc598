package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"time"
)

// clientKey identifies the caller for rate limiting: a digest of its bearer
// token when present, otherwise its address.
func clientKey(r *http.Request) string {
	if tok := extractBearer(r); tok != "" {
		sum := sha256.Sum256([]byte(tok))
		return "key:" + hex.EncodeToString(sum[:8])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimit applies the installed limiter. Limiter errors let the request
// through.
func RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		d, err := limiter.Allow(r.Context(), clientKey(r))
		if err != nil {
			if zlog != nil {
				zlog.Warn().Err(err).Msg("rate limiter unavailable")
			}
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if !d.Allowed {
			IncrementBackpressure("rate_limit")
			h.Set("Retry-After", strconv.Itoa(int(d.RetryAfter(time.Now())/time.Second)))
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
