/**
 * @description
 * This file contains custom middleware for the ops router. The service's
 * mutating endpoints are operator-only and sit behind a shared internal API
 * key; there is no end-user surface here.
 */

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// InternalAuthMiddleware guards operator endpoints with a shared API key
// carried in the X-Internal-API-Key header.
func InternalAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(apiKey))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				http.Error(w, "internal API disabled", http.StatusForbidden)
				return
			}
			provided := []byte(strings.TrimSpace(r.Header.Get("X-Internal-API-Key")))
			if subtle.ConstantTimeCompare(expected, provided) != 1 {
				http.Error(w, "invalid internal API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
