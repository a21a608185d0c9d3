package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/julienbutty/prometrage-sub001/internal/http/response"
	"github.com/julienbutty/prometrage-sub001/internal/metrics"
	"github.com/julienbutty/prometrage-sub001/internal/ratelimit"
)

const forgiveKey = "ratelimit.forgive"

// Forgive asks RateLimit to clear the caller's counter for the current route once
// the handler returns. Login calls it on success so earlier failures stop counting.
func Forgive(c *gin.Context) {
	c.Set(forgiveKey, true)
}

// RateLimit counts requests per client IP and route. A failing store lets the
// request through.
func RateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		key := c.ClientIP() + "|" + route

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("rate limit store unavailable")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			if m != nil {
				m.RecordRateLimitHit(route)
			}
			response.Fail(c, http.StatusTooManyRequests, response.CodeRateLimited,
				"too many requests, retry later",
				gin.H{"retryAfter": seconds})
			return
		}
		c.Next()

		if c.GetBool(forgiveKey) {
			if err := limiter.Reset(context.WithoutCancel(c.Request.Context()), key); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("rate limit reset failed")
			}
		}
	}
}
