package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths that bypass authentication: health checks and
// the login endpoints that hand out tokens.
var publicPaths = map[string]bool{
	"/health":                      true,
	"/health/db":                   true,
	"/api/login":                   true,
	"/api/admin/login":             true,
	"/api/surgeons/login":          true,
	"/api/anesthesiologists/login": true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route path bypasses auth.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
