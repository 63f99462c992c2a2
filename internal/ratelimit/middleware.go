package ratelimit

import (
	"net"
	"net/http"
	"strconv"
)

// DefaultRetryAfterSeconds is the value for the Retry-After header when a
// rate limit is exceeded.
const DefaultRetryAfterSeconds = 1

// ClientFromRequest derives the rate limit key from the request: the remote
// IP without the ephemeral port.
func ClientFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces per-client rate limits. Exceeding the limit yields
// 429 with Retry-After and X-RateLimit-Remaining headers.
func Middleware(limiter *RateLimiter, client func(r *http.Request) string) func(http.Handler) http.Handler {
	if client == nil {
		client = ClientFromRequest
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := client(r)
			if clientID == "" {
				next.ServeHTTP(w, r)
				return
			}

			rateLimiter := limiter.GetLimiter(clientID)
			if !rateLimiter.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(DefaultRetryAfterSeconds))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte("Too Many Requests"))
				return
			}

			remaining := int(rateLimiter.Tokens())
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}
