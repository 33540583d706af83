package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleRateLimitStatus reports the limits that apply to the caller along
// with limiter and block counters
//
//	@Summary	Rate limit status
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/ratelimit/status [get]
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"ip_per_minute":     rl.config.IPLimitPerMin,
				"rating_per_minute": rl.config.RateLimitPerMin,
			},
			"limiter":   rl.GetStats(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if rl.metrics != nil {
			status["metrics"] = rl.metrics.GetRateLimitStats()
		}
		c.JSON(http.StatusOK, status)
	}
}
