package middleware

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/USSTM/asset-backend/internal/ratelimit"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// ByClientIP counts per client address.
func ByClientIP(r *http.Request) string {
	return ClientIP(r)
}

// RateLimit rejects requests over budget with 429. Limiter backend failures
// let the request through.
func RateLimit(limiter ratelimit.Limiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), key(r))
			if err != nil && !errors.Is(err, ratelimit.ErrLimited) {
				GetLoggerFromContext(r.Context()).Error("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			resetSeconds := int(math.Ceil(res.Reset.Seconds()))
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.Itoa(resetSeconds))

			if err != nil {
				GetLoggerFromContext(r.Context()).Warn("rate limit exceeded", "path", r.URL.Path)
				h.Set("Retry-After", strconv.Itoa(max(resetSeconds, 1)))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, slow down")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// same envelope as the api package's ErrorBuilder
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
