package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ticketing/internal/cache"
	apperrors "ticketing/internal/errors"
)

// Limit describes one token bucket: Capacity requests per Window for each key.
type Limit struct {
	Name     string
	Capacity int
	Window   time.Duration
	Message  string
	// Key identifies the caller the bucket belongs to.
	Key func(c echo.Context) string
}

// ByIP keys a bucket on the client address.
func ByIP(c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		return "unknown"
	}
	return ip
}

// ByUser keys a bucket on the authenticated user, falling back to the client address.
func ByUser(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok {
		return "user:" + p.User.ID.String()
	}
	return "ip:" + ByIP(c)
}

// RateLimit enforces limit with a Redis token bucket. Requests pass when Redis is unavailable.
func RateLimit(client *cache.Client, log *zap.Logger, limit Limit) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	message := limit.Message
	if message == "" {
		message = "Too many requests. Please try again later."
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ratelimit:" + limit.Name + ":" + limit.Key(c)
			bucket, err := client.TakeToken(c.Request().Context(), key, limit.Capacity, limit.Window)
			if err != nil {
				log.Warn("rate limiter unavailable", zap.String("limit", limit.Name), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(bucket.Remaining))
			if !bucket.Allowed {
				secs := int(math.Ceil(bucket.RetryAfter.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				return apperrors.NewHTTPError(http.StatusTooManyRequests, message, apperrors.KindRateLimited)
			}
			return next(c)
		}
	}
}
