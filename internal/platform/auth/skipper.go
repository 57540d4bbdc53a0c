package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication and organization resolution.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

// AuthSkipper returns true for requests whose path should skip
// authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Request().URL.Path)
}

// IsPublicPath reports whether path is an infrastructure endpoint or a
// static asset.
func IsPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, "/static/")
}
