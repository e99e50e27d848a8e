package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// googleUserInfoURL is where the user profile is fetched after the code
// exchange.
const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// HTTPClient is the subset of *http.Client the OAuth flow needs. Tests
// substitute a stub so no network is involved.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// GoogleOAuth drives the Google sign-in web flow: building the consent URL,
// exchanging the callback code, and fetching the user profile. The resulting
// OAuthProfile is handed to Service.LinkOAuthProfile.
type GoogleOAuth struct {
	config     *oauth2.Config
	httpClient HTTPClient
}

// GoogleOAuthConfig holds the provider credentials and callback URL.
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewGoogleOAuth creates the Google OAuth client. Returns nil if the
// provider is not configured; the routes check for that and stay off.
func NewGoogleOAuth(cfg GoogleOAuthConfig) *GoogleOAuth {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil
	}
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"profile", "email"},
		},
		httpClient: http.DefaultClient,
	}
}

// AuthCodeURL returns the Google consent page URL carrying the given
// anti-forgery state.
func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// Exchange trades the callback code for a token and fetches the user's
// Google profile. Provider-side failures surface as errors for the handler
// to translate into a redirect-with-error, never a raw 500.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*OAuthProfile, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building userinfo request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching google user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned status %d", resp.StatusCode)
	}

	var data struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding google user: %w", err)
	}

	return &OAuthProfile{
		ProviderID: data.ID,
		Email:      data.Email,
		Name:       data.Name,
	}, nil
}

// NewOAuthState generates the random anti-forgery state bound to the
// browser via a short-lived cookie and echoed back on the callback.
func NewOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
