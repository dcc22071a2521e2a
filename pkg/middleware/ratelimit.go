package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RateLimitMiddleware - лимитер с фиксированным окном на Redis. Счётчики
// общие для всех экземпляров сервера, ключ - IP клиента.
type RateLimitMiddleware struct {
	client      *redis.Client
	maxRequests int
	window      time.Duration
	logger      *zap.Logger
}

func NewRateLimitMiddleware(client *redis.Client, maxRequests int, window time.Duration, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		client:      client,
		maxRequests: maxRequests,
		window:      window,
		logger:      logger,
	}
}

func (m *RateLimitMiddleware) Limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		windowStart := time.Now().Unix() / int64(m.window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%d", c.RealIP(), windowStart)

		count, err := m.client.Incr(ctx, key).Result()
		if err != nil {
			// Redis недоступен - пропускаем запрос, лимитер не должен
			// превращаться в точку отказа.
			m.logger.Warn("RateLimit: Redis недоступен", zap.Error(err))
			return next(c)
		}
		if count == 1 {
			m.client.Expire(ctx, key, m.window)
		}

		remaining := int64(m.maxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		resetAt := (windowStart + 1) * int64(m.window.Seconds())
		c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(m.maxRequests))
		c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Response().Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if count > int64(m.maxRequests) {
			retryAfter := resetAt - time.Now().Unix()
			return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
				"status":     false,
				"message":    "Слишком много запросов, попробуйте позже",
				"retryAfter": retryAfter,
			})
		}

		return next(c)
	}
}
