package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets response headers for the portal. The login pages are
// server-rendered HTML with a same-origin stylesheet and form posts. hsts is
// off in development where the server runs over plain HTTP.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			h.Set("Content-Security-Policy",
				"default-src 'none'; style-src 'self'; img-src 'self'; form-action 'self'; frame-ancestors 'none'; base-uri 'none'")
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			// The login form carries the error in the query; keep it off
			// other origins.
			h.Set("Referrer-Policy", "same-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			// Patient data and session-bearing pages must not be cached.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
