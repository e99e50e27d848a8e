package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gildora/gildora/internal/apperror"
)

// Cookie names. The session cookie mirrors the bearer token for browser
// clients; API clients use the Authorization header and can ignore it.
const (
	tokenCookieName = "gildora_token"
	stateCookieName = "gildora_oauth_state"
)

// stateCookieMaxAge bounds how long an OAuth round trip may take.
const stateCookieMaxAge = 10 * 60 // seconds

// Handler handles HTTP requests for authentication and account management.
// Handlers are thin: they bind the request, call the service, and render the
// response. No business logic lives here.
type Handler struct {
	service     Service
	google      *GoogleOAuth
	frontendURL string

	// sessionTTL bounds the token cookie's lifetime to the token's own.
	sessionTTL time.Duration
}

// NewHandler creates a new auth handler. google may be nil when the provider
// is not configured; the OAuth routes are simply not registered then.
func NewHandler(service Service, google *GoogleOAuth, frontendURL string, sessionTTL time.Duration) *Handler {
	return &Handler{
		service:     service,
		google:      google,
		frontendURL: frontendURL,
		sessionTTL:  sessionTTL,
	}
}

// accountResponse is the JSON shape returned by register, login, and profile
// endpoints. Credential material beyond the issued tokens never appears.
type accountResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	IsAdmin       bool   `json:"is_admin"`
	Token         string `json:"token,omitempty"`
	RememberToken string `json:"remember_token,omitempty"`
}

func newAccountResponse(a *Account, token, rememberToken string) accountResponse {
	return accountResponse{
		ID:            a.ID,
		Name:          a.Name,
		Email:         a.Email,
		Phone:         a.Phone,
		IsAdmin:       a.IsAdmin,
		Token:         token,
		RememberToken: rememberToken,
	}
}

// Register creates an account (POST /api/v1/auth/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	account, token, err := h.service.Register(c.Request().Context(), RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		return err
	}

	h.setTokenCookie(c, token)
	return c.JSON(http.StatusCreated, newAccountResponse(account, token, ""))
}

// Login authenticates with email and password (POST /api/v1/auth/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.service.Login(c.Request().Context(), LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		return err
	}

	h.setTokenCookie(c, result.Token)
	return c.JSON(http.StatusOK, newAccountResponse(result.Account, result.Token, result.RememberToken))
}

// Logout clears the token cookie (POST /api/v1/auth/logout). Tokens are
// self-contained, so there is no server-side session to destroy: the token
// stays valid until its natural expiry. Deliberate simplification.
func (h *Handler) Logout(c echo.Context) error {
	clearTokenCookie(c)
	return c.JSON(http.StatusOK, map[string]string{"status": "logged out"})
}

// Remember exchanges a remember-me token for a fresh session token
// (POST /api/v1/auth/remember).
func (h *Handler) Remember(c echo.Context) error {
	var req RememberRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.service.RedeemRememberToken(c.Request().Context(), req.Token)
	if err != nil {
		return err
	}

	h.setTokenCookie(c, result.Token)
	return c.JSON(http.StatusOK, newAccountResponse(result.Account, result.Token, ""))
}

// --- Google OAuth ---

// GoogleStart redirects to the Google consent page (GET /api/v1/auth/google).
// The anti-forgery state is bound to the browser with a short-lived cookie.
func (h *Handler) GoogleStart(c echo.Context) error {
	state, err := NewOAuthState()
	if err != nil {
		return apperror.NewInternal(err)
	}

	c.SetCookie(&http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   stateCookieMaxAge,
	})

	return c.Redirect(http.StatusFound, h.google.AuthCodeURL(state))
}

// GoogleCallback completes the flow (GET /api/v1/auth/google/callback).
// Every failure path redirects to the frontend with an error parameter --
// the browser must never see a raw error page here.
func (h *Handler) GoogleCallback(c echo.Context) error {
	// The state is single-use: consume the cookie up front so it cannot be
	// replayed for the rest of its window, whatever happens below.
	cookie, cookieErr := c.Cookie(stateCookieName)
	if cookieErr == nil {
		clearStateCookie(c)
	}

	if errParam := c.QueryParam("error"); errParam != "" {
		slog.Warn("google oauth denied", slog.String("error", errParam))
		return h.redirectWithError(c)
	}

	state := c.QueryParam("state")
	if cookieErr != nil || state == "" || cookie.Value != state {
		slog.Warn("google oauth state mismatch")
		return h.redirectWithError(c)
	}

	code := c.QueryParam("code")
	if code == "" {
		return h.redirectWithError(c)
	}

	profile, err := h.google.Exchange(c.Request().Context(), code)
	if err != nil {
		slog.Warn("google oauth exchange failed", slog.Any("error", err))
		return h.redirectWithError(c)
	}

	account, token, err := h.service.LinkOAuthProfile(c.Request().Context(), *profile)
	if err != nil {
		slog.Warn("google oauth linking failed", slog.Any("error", err))
		return h.redirectWithError(c)
	}

	slog.Info("google login completed", slog.String("account_id", account.ID))

	h.setTokenCookie(c, token)
	return c.Redirect(http.StatusFound,
		fmt.Sprintf("%s?token=%s", h.frontendURL, url.QueryEscape(token)))
}

func (h *Handler) redirectWithError(c echo.Context) error {
	return c.Redirect(http.StatusFound,
		fmt.Sprintf("%s?error=%s", h.frontendURL, url.QueryEscape("authentication failed")))
}

// --- Profile ---

// GetProfile returns the caller's account (GET /api/v1/profile).
func (h *Handler) GetProfile(c echo.Context) error {
	identity := GetIdentity(c)
	if identity == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	account, err := h.service.GetProfile(c.Request().Context(), identity.AccountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAccountResponse(account, "", ""))
}

// UpdateProfile updates name, email, phone (PUT /api/v1/profile).
func (h *Handler) UpdateProfile(c echo.Context) error {
	identity := GetIdentity(c)
	if identity == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	account, err := h.service.UpdateProfile(c.Request().Context(), identity.AccountID, UpdateProfileInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAccountResponse(account, "", ""))
}

// --- Admin ---

// adminAccountsPageSize caps the admin listing page size.
const adminAccountsPageSize = 50

// ListAccounts returns a page of accounts (GET /api/v1/admin/accounts).
// Reached only through RequireAdmin, which checked the live record.
func (h *Handler) ListAccounts(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	accounts, total, err := h.service.ListAccounts(c.Request().Context(),
		(page-1)*adminAccountsPageSize, adminAccountsPageSize)
	if err != nil {
		return err
	}

	items := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		items = append(items, newAccountResponse(&accounts[i], "", ""))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"accounts": items,
		"total":    total,
		"page":     page,
	})
}

// --- Cookie helpers ---

// setTokenCookie mirrors the bearer token into an HttpOnly cookie for
// browser clients. Secure when behind TLS, SameSite=Lax. The cookie expires
// with the token itself so a shortened session TTL never leaves a stale
// cookie behind.
func (h *Handler) setTokenCookie(c echo.Context, token string) {
	req := c.Request()
	c.SetCookie(&http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL.Seconds()),
	})
}

// clearStateCookie removes the OAuth state cookie once consumed.
func clearStateCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// clearTokenCookie removes the token cookie by setting MaxAge to -1.
func clearTokenCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
