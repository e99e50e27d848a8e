package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gildora/gildora/internal/auth"
)

// RegisterRoutes builds the auth feature from the app's dependencies and
// mounts all routes on the Echo instance.
func (a *App) RegisterRoutes() {
	issuer := auth.NewTokenIssuer(a.Config.Auth.SecretKey, a.Config.Auth.SessionTTL)

	service := auth.NewService(
		a.Store,
		issuer,
		auth.LockoutPolicy{
			Threshold: a.Config.Auth.LockoutThreshold,
			Duration:  a.Config.Auth.LockoutDuration,
		},
		auth.PasswordPolicy{MinLength: a.Config.Auth.PasswordMinLength},
		a.Config.Auth.RememberTTL,
	)

	google := auth.NewGoogleOAuth(auth.GoogleOAuthConfig{
		ClientID:     a.Config.OAuth.GoogleClientID,
		ClientSecret: a.Config.OAuth.GoogleClientSecret,
		RedirectURL:  a.Config.OAuth.RedirectURL,
	})

	handler := auth.NewHandler(service, google, a.Config.FrontendURL, a.Config.Auth.SessionTTL)

	loginLimiter, registerLimiter := a.authLimiters()
	auth.RegisterRoutes(a.Echo, handler, service, loginLimiter, registerLimiter)

	// Health check -- reports store reachability for load balancers.
	a.Echo.GET("/healthz", func(c echo.Context) error {
		if err := service.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
		})
	})
}
