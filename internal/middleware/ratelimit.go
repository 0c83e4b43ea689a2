package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/showpls/showpls-server-go/internal/audit"
	"github.com/showpls/showpls-server-go/internal/config"
	"github.com/showpls/showpls-server-go/internal/service"
)

const rateLimitWindow = 60 * time.Second

// RateLimitMiddleware applies a per-user sliding window limit to
// authenticated requests. Unauthenticated requests pass through; they are
// rejected by the session middleware ahead of this one.
type RateLimitMiddleware struct {
	limiter *service.RateLimiter
	limit   int
}

func NewRateLimitMiddleware(limiter *service.RateLimiter, limit int) *RateLimitMiddleware {
	if limit <= 0 {
		limit = config.DefaultRateLimitPerMin
	}
	return &RateLimitMiddleware{limiter: limiter, limit: limit}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetSessionClaims(r.Context())
		if claims == nil {
			next.ServeHTTP(w, r)
			return
		}

		userID := claims.Subject
		allowed, remaining, resetAt := m.limiter.Check(r.Context(), "user:"+userID, m.limit, rateLimitWindow)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			log.Warn().Str("userId", userID).Msg("rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventRateLimitExceed, UserID: userID})
			w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
