package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// extractBearer returns the token from an "Authorization: Bearer" header.
func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// BearerAuth requires the configured API key. It passes everything through
// when no key is set.
func BearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		tok := extractBearer(r)
		if tok == "" || subtle.ConstantTimeCompare([]byte(tok), []byte(apiKey)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="runnerd"`)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
