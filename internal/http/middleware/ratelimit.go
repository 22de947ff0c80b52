package middleware

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Limiter enforces a fixed-window requests-per-second cap per business,
// counted in Redis so the cap holds across gateway replicas. A business's
// api_keys.rate_limit_rps overrides the default; Redis trouble fails open.
type Limiter struct {
	rdb        *redis.Client
	defaultRPS int
	window     time.Duration
	keyPrefix  string
}

type LimiterOpts struct {
	Redis      *redis.Client
	DefaultRPS int
	Window     time.Duration // zero means one second
	KeyPrefix  string        // zero means "rl:biz:"
}

func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Window <= 0 {
		opts.Window = time.Second
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "rl:biz:"
	}
	return &Limiter{
		rdb:        opts.Redis,
		defaultRPS: opts.DefaultRPS,
		window:     opts.Window,
		keyPrefix:  opts.KeyPrefix,
	}
}

// Allow counts one request against the business's window. rps <= 0 falls back
// to the limiter default; a zero effective limit, a nil client, or a Redis
// error all admit the request. The returned duration is the time until the
// current window rolls over.
func (l *Limiter) Allow(c echo.Context, businessID int64, rps int) (bool, time.Duration) {
	if rps <= 0 {
		rps = l.defaultRPS
	}
	if rps <= 0 || l.rdb == nil {
		return true, 0
	}

	now := time.Now()
	bucket := now.Truncate(l.window)
	reset := l.window - now.Sub(bucket)
	key := l.keyPrefix + strconv.FormatInt(businessID, 10) + ":" + strconv.FormatInt(bucket.Unix(), 10)

	ctx := c.Request().Context()
	pipe := l.rdb.Pipeline()
	cnt := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0
	}
	return cnt.Val() <= int64(rps), reset
}

// Middleware limits authenticated requests; anything without a business
// identity passes through untouched and is handled by auth instead.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bizID, ok := BusinessIDFromCtx(c)
			if !ok || bizID <= 0 {
				return next(c)
			}

			allowed, reset := l.Allow(c, bizID, RateLimitFromCtx(c))
			if !allowed {
				if secs := int(reset.Round(time.Second) / time.Second); secs > 0 {
					c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				}
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			}
			return next(c)
		}
	}
}
