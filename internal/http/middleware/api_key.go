package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/repository"
)

// BusinessIDFromCtx extracts the authenticated business id set by APIKeyMiddleware.
func BusinessIDFromCtx(c echo.Context) (int64, bool) {
	v := c.Get("business_id")
	id, ok := v.(int64)
	return id, ok
}

// EnvironmentFromCtx extracts the key's environment (production|sandbox).
func EnvironmentFromCtx(c echo.Context) (model.Environment, bool) {
	v := c.Get("api_environment")
	env, ok := v.(model.Environment)
	return env, ok
}

// RateLimitFromCtx extracts the key's per-business RPS override, 0 if unset.
func RateLimitFromCtx(c echo.Context) int {
	if v, ok := c.Get("business_rps").(int); ok {
		return v
	}
	return 0
}

// APIKeyMiddleware authenticates requests using the X-API-Key header. On
// success it stores the business identity in context and stamps the key's
// last_used_at off the request path; a failure to stamp never fails the
// request.
func APIKeyMiddleware(keys repository.APIKeysRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			k, err := keys.GetByKey(c.Request().Context(), key)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if k == nil || !k.IsActive || k.BusinessStatus != "active" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}

			c.Set("business_id", k.BusinessID)
			c.Set("api_environment", k.Environment)
			if k.RateLimitRPS != nil {
				c.Set("business_rps", *k.RateLimitRPS)
			}

			go func(id int64) {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = keys.TouchLastUsed(ctx, id)
			}(k.ID)

			return next(c)
		}
	}
}
