package middleware

import (
	"strconv"

	"mdmc/internal/access"
	"mdmc/internal/errs"

	"github.com/labstack/echo/v4"
)

// RateLimit counts requests per authenticated account. Unauthenticated
// requests pass through untouched. A limiter failure lets the request through.
func RateLimit(l access.RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := GetUserID(c)
			if id == "" {
				return next(c)
			}
			d, err := l.Allow(c.Request().Context(), id)
			if err != nil {
				log.Warn("Rate limiter unavailable for %s: %v", id, err)
				return next(c)
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				rateLimited.Inc()
				return errs.TooManyRequests("Too many requests, please try again later.", d.RetryAfter)
			}
			return next(c)
		}
	}
}
