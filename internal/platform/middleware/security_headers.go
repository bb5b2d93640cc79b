package middleware

import (
	"github.com/labstack/echo/v4"
)

// DefaultSecurityHeaders are set on every response. Responses carry patient
// data and signatures, so nothing may be cached or framed.
var DefaultSecurityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "0",
	"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Referrer-Policy":           "no-referrer",
	"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
	"Cache-Control":             "no-store",
}

// SecurityHeaders sets DefaultSecurityHeaders plus any overrides.
func SecurityHeaders(overrides ...map[string]string) echo.MiddlewareFunc {
	headers := make(map[string]string, len(DefaultSecurityHeaders))
	for k, v := range DefaultSecurityHeaders {
		headers[k] = v
	}
	for _, o := range overrides {
		for k, v := range o {
			headers[k] = v
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range headers {
				h.Set(k, v)
			}
			return next(c)
		}
	}
}
