package httpserver

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// rateLimitMiddleware enforces a fixed per-minute request budget per client
// IP, counted in redis so multiple instances share one budget. With no
// redis client configured, or on redis errors, requests pass through.
func rateLimitMiddleware(client *redis.Client, perMinute int, logger *log.Logger) gin.HandlerFunc {
	if client == nil || perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		window := time.Now().Unix() / 60
		key := fmt.Sprintf("ratelimit:%s:%d", c.ClientIP(), window)

		count, err := client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			logger.Printf("rate limit: redis error=%v, failing open", err)
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(c.Request.Context(), key, time.Minute)
		}
		if count > int64(perMinute) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": 60 - time.Now().Unix()%60,
			})
			return
		}
		c.Next()
	}
}
