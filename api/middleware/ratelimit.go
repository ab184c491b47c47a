package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	api_errors "github.com/customeros/dmarcstack/api/errors"
)

// NewPerMinuteLimiter allows perMinute events per minute with a burst of one
// minute's worth. Zero or less disables limiting.
func NewPerMinuteLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
}

// RateLimitMiddleware rejects requests over the limiter's budget with 429.
// The limiter is shared by every caller of the route.
func RateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, api_errors.NewErrorResponse("Rate limit exceeded, try again later"))
			return
		}
		c.Next()
	}
}
