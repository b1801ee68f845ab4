package middleware

import (
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	allowMethods = "GET,POST,DELETE,OPTIONS"
	allowHeaders = "Content-Type,Authorization"
)

// AllowedOrigin picks the Access-Control-Allow-Origin value for a request.
// A wildcard allow-list or a request without Origin gets "*", an allow-listed
// origin is echoed back, anything else gets the first allow-listed origin.
func AllowedOrigin(allowed []string, origin string) string {
	if origin == "" || slices.Contains(allowed, "*") {
		return "*"
	}
	if slices.Contains(allowed, origin) {
		return origin
	}
	if len(allowed) > 0 {
		return allowed[0]
	}
	return "*"
}

// CORS emits the allow-list headers on every response, errors included.
// Preflight requests are answered by the route handlers.
func CORS(allowedOrigins []string) echo.MiddlewareFunc {
	allowed := slices.Clone(allowedOrigins)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			header := c.Response().Header()

			allowOrigin := AllowedOrigin(allowed, origin)
			header.Set(echo.HeaderAccessControlAllowOrigin, allowOrigin)
			header.Set(echo.HeaderAccessControlAllowMethods, allowMethods)
			header.Set(echo.HeaderAccessControlAllowHeaders, allowHeaders)
			if allowOrigin != "*" {
				header.Add(echo.HeaderVary, echo.HeaderOrigin)
			}

			return next(c)
		}
	}
}

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Response().Header()
			header.Set("X-Content-Type-Options", "nosniff")
			header.Set("X-Frame-Options", "DENY")
			header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			// JSON only, nothing to execute or frame
			header.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			// HSTS - only for HTTPS requests (direct or behind a proxy)
			proto := c.Request().Header.Get(echo.HeaderXForwardedProto)
			if proto == "https" || c.Request().TLS != nil || strings.HasPrefix(c.Request().URL.String(), "https://") {
				header.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			return next(c)
		}
	}
}
