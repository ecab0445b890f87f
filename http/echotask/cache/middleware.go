// Package cache provides response caching middleware for read-heavy routes
// such as pipeline status queries.
package cache

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type cacher interface {
	Get(key string) ([]byte, bool)
	Set(key string, content []byte)
}

// ResponseCacheMiddleware serves repeated GET requests from the cache, keyed
// by the full request URL. Only successful responses are cached.
func ResponseCacheMiddleware(cacher cacher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}

			key := c.Request().URL.String()

			if cachedContent, found := cacher.Get(key); found {
				c.Response().Header().Set(echo.HeaderContentType, "application/json")
				_, err := c.Response().Write(cachedContent)
				return err
			}

			res := c.Response()
			buf := newResponseBuffer(res.Writer)
			res.Writer = buf

			if err := next(c); err != nil {
				return err
			}

			if buf.status >= http.StatusOK && buf.status < http.StatusMultipleChoices {
				cacher.Set(key, buf.body.Bytes())
			}
			return nil
		}
	}
}
