package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/gildora/gildora/internal/apperror"
)

// Context keys for storing the authenticated identity in the Echo context.
const (
	contextKeyIdentity = "auth_identity"
)

// bearerPrefix is the expected Authorization scheme.
const bearerPrefix = "Bearer "

// RequireAuth returns middleware that authenticates the request from the
// Authorization header (falling back to the token cookie for browser
// clients) and injects the caller's identity into the context. Absent or
// invalid credentials yield a generic 401.
//
// The identity comes from token claims alone; handlers that need the live
// account re-fetch it themselves, and admin routes go through RequireAdmin.
func RequireAuth(service Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			identity, err := service.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(contextKeyIdentity, identity)
			return next(c)
		}
	}
}

// RequireAdmin returns middleware that gates privileged routes. It must run
// after RequireAuth. The admin flag is checked on the live store record, not
// the token claims, so revoking admin takes effect immediately.
func RequireAdmin(service Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := GetIdentity(c)
			if identity == nil {
				return apperror.NewUnauthorized("authentication required")
			}

			if _, err := service.RequireAdmin(c.Request().Context(), identity.AccountID); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// GetIdentity retrieves the authenticated identity from the Echo context.
// Returns nil if RequireAuth was not applied.
func GetIdentity(c echo.Context) *Identity {
	identity, ok := c.Get(contextKeyIdentity).(*Identity)
	if !ok {
		return nil
	}
	return identity
}

// bearerToken extracts the credential from the Authorization header, or from
// the token cookie when no header is present.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, bearerPrefix) {
		return header[len(bearerPrefix):]
	}
	if cookie, err := c.Cookie(tokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
