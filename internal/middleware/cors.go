package middleware

import (
	"github.com/labstack/echo/v4"
)

// AllowAnyOrigin returns an Echo middleware that marks every response as
// readable from any origin. The header is applied just before the status is
// written, so it also overrides whatever a proxied upstream sent.
func AllowAnyOrigin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := c.Response()
			res.Before(func() {
				res.Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
			})
			return next(c)
		}
	}
}
