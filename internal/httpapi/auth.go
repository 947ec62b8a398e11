package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/polyglot/internal/db"
)

const apiKeyHeader = "X-API-Key"

// authPrincipal is the resolved caller identity for one request.
type authPrincipal struct {
	Key   string
	Admin bool
}

// requireKey authenticates every request from the X-API-Key header. The
// admin secret grants admin privileges; otherwise the key must match an
// active stored key.
func (s *Server) requireKey() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get(apiKeyHeader))
			if key == "" {
				return fail(c, http.StatusUnauthorized, "API key is missing")
			}

			if key == s.opts.AdminAccessKey {
				c.Set("auth.principal", authPrincipal{Key: key, Admin: true})
				return next(c)
			}

			if _, err := s.keys.GetActiveAPIKey(c.Request().Context(), key); err != nil {
				if errors.Is(err, db.ErrKeyNotFound) {
					return fail(c, http.StatusUnauthorized, "Invalid or inactive API key")
				}
				s.logger.Error().Err(err).Msg("api key lookup failed")
				return internalError(c, "Failed to authorize request")
			}

			c.Set("auth.principal", authPrincipal{Key: key, Admin: false})
			return next(c)
		}
	}
}

// requireAdmin gates admin-only routes; it assumes requireKey already ran.
func (s *Server) requireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := principalFromContext(c)
			if !ok {
				return fail(c, http.StatusUnauthorized, "API key is missing")
			}
			if !principal.Admin {
				return fail(c, http.StatusForbidden, "Admin access required")
			}
			return next(c)
		}
	}
}

func principalFromContext(c echo.Context) (authPrincipal, bool) {
	if c == nil {
		return authPrincipal{}, false
	}
	principal, ok := c.Get("auth.principal").(authPrincipal)
	return principal, ok
}
