package auth

import (
	"strings"
)

// Route layout shared by the guard, the form handlers and the callback.
const (
	DashboardPrefix  = "/dashboard"
	AdminPrefix      = "/admin"
	LoginChooserPath = "/ingreso"
	LoginPath        = "/login"
	SignupPath       = "/registro"
	LogoutPath       = "/logout"
	CallbackPath     = "/auth/callback"
	DefaultLoginPath = LoginPath + "/" + DefaultPortal
)

// publicPaths bypass session resolution entirely: infrastructure endpoints and
// the verification callback, which establishes its own session.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
	CallbackPath: true,
}

const staticPrefix = "/static"

// IsPublicPath reports whether the path skips the route guard.
func IsPublicPath(path string) bool {
	return publicPaths[path] || underPrefix(path, staticPrefix)
}

// underPrefix matches the prefix itself or any path below it, so
// "/administrar" is not under "/admin".
func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// IsLoginPage reports whether the path renders a sign-in screen.
func IsLoginPage(path string) bool {
	return path == LoginChooserPath || underPrefix(path, LoginPath)
}
