package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all auth and account routes on the given Echo
// instance. The credential-submitting endpoints take a rate limiter to slow
// brute-force and credential stuffing; the app decides whether that limiter
// is Redis-backed or in-memory.
//
// Google routes are only mounted when the provider is configured.
func RegisterRoutes(e *echo.Echo, h *Handler, service Service, loginLimiter, registerLimiter echo.MiddlewareFunc) {
	api := e.Group("/api/v1")

	// Public routes -- no token required.
	api.POST("/auth/register", h.Register, registerLimiter)
	api.POST("/auth/login", h.Login, loginLimiter)
	api.POST("/auth/logout", h.Logout)
	api.POST("/auth/remember", h.Remember, loginLimiter)

	if h.google != nil {
		api.GET("/auth/google", h.GoogleStart)
		api.GET("/auth/google/callback", h.GoogleCallback)
	}

	// Authenticated routes.
	authed := api.Group("", RequireAuth(service))
	authed.GET("/profile", h.GetProfile)
	authed.PUT("/profile", h.UpdateProfile)

	// Admin routes -- live is_admin check on every request.
	admin := authed.Group("/admin", RequireAdmin(service))
	admin.GET("/accounts", h.ListAccounts)
}
