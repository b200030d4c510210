package transport

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/animadocs/ragd/pkg/api"
)

// APIKeyAuth requires a valid bearer token on every request except
// /health and the given extra exempt paths (typically the configured
// metrics endpoint), so probes and scrapers keep working when API key
// auth is enabled. Keys are compared in constant time.
func APIKeyAuth(keys []string, exempt ...string) Middleware {
	exemptPaths := map[string]bool{"/health": true}
	for _, p := range exempt {
		exemptPaths[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w,
					api.NewInvalidRequestError("authorization", "missing or malformed Authorization header"),
					http.StatusUnauthorized)
				return
			}
			if !keyMatches(token, keys) {
				WriteErrorResponse(w,
					api.NewInvalidRequestError("authorization", "invalid API key"),
					http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}

func keyMatches(token string, keys []string) bool {
	matched := false
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
			matched = true
		}
	}
	return matched
}
