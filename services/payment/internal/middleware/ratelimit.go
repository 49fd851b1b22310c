package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"example.com/course-payments/pkg/logger"
)

// rateLimitScript атомарно увеличивает счётчик окна и ставит TTL первому запросу.
var rateLimitScript = redis.NewScript(`
	local current = redis.call("INCR", KEYS[1])
	if current == 1 then
		redis.call("EXPIRE", KEYS[1], ARGV[1])
	end
	return current
`)

// RateLimitConfig — конфигурация rate limiter.
type RateLimitConfig struct {
	Redis  *redis.Client
	Limit  int           // по умолчанию 100
	Window time.Duration // по умолчанию 1 минута
	Prefix string        // префикс ключей, по умолчанию "rate:payments:"
}

// RateLimitMiddleware ограничивает запросы с одного IP (fixed window в Redis).
// При недоступности Redis запросы пропускаются.
type RateLimitMiddleware struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRateLimitMiddleware создаёт rate limiter.
func NewRateLimitMiddleware(cfg RateLimitConfig) *RateLimitMiddleware {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rate:payments:"
	}

	return &RateLimitMiddleware{
		redis:  cfg.Redis,
		limit:  cfg.Limit,
		window: cfg.Window,
		prefix: cfg.Prefix,
	}
}

// Handle возвращает gin handler.
func (m *RateLimitMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		clientIP := c.ClientIP()

		count, err := m.increment(ctx, m.prefix+clientIP)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("Ошибка проверки rate limit")
			c.Next()
			return
		}

		remaining := m.limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(m.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > m.limit {
			retryAfter := int(m.window.Seconds())
			logger.Ctx(ctx).Warn().
				Str("client_ip", clientIP).
				Int("limit", m.limit).
				Msg("Rate limit превышен")

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Превышен лимит запросов. Попробуйте через " + strconv.Itoa(retryAfter) + " секунд",
			})
			return
		}

		c.Next()
	}
}

func (m *RateLimitMiddleware) increment(ctx context.Context, key string) (int, error) {
	return rateLimitScript.Run(ctx, m.redis, []string{key}, int(m.window.Seconds())).Int()
}
