package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are infrastructure endpoints that must answer without
// credentials (load balancer probes, Prometheus scrapes).
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// AuthSkipper matches on the registered route, so /health?x=1 is still public
// but /health/anything-else is not.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}
