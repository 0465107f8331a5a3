package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"tradejournal/pkg/ratelimit"
	"tradejournal/pkg/utils"
)

// RateLimit ограничивает частоту запросов на пользователя
//
// Ключ - пользователь из Auth, без него - IP клиента.
// При исчерпании ведра отвечает 429 с Retry-After в секундах.
// nil limiter отключает ограничение.
func RateLimit(limiter *ratelimit.KeyedLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := UserIDFromContext(r.Context())
			if key == "" {
				key = clientIP(r)
			}

			bucket := limiter.Get(key)
			if !bucket.Allow() {
				retryAfter := int(math.Ceil(bucket.RetryAfter().Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				utils.L().Debug("rate limited", utils.UserID(key), utils.Component("ratelimit"))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
