package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// NewLimiter builds a limiter from a formatted rate such as "30-M". Counters
// live in redis when redisURL is set so every instance shares them, in memory
// otherwise.
func NewLimiter(rate, redisURL string) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}

	if redisURL == "" {
		return limiter.New(memory.NewStore(), r), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	store, err := sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix: "apollo_limiter",
	})
	if err != nil {
		return nil, fmt.Errorf("redis limiter store: %w", err)
	}
	return limiter.New(store, r), nil
}

// RateLimitMiddleware limits requests per client IP
func RateLimitMiddleware(l *limiter.Limiter, log *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			lctx, err := l.Get(c.Request().Context(), ip)
			if err != nil {
				log.Errorw("rate limiter unavailable", "ip", ip, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "rate limit error")
			}

			if lctx.Reached {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			return next(c)
		}
	}
}
