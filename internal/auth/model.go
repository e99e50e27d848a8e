// Package auth implements the credential core of the Gildora storefront:
// account storage, argon2id password hashing, failed-login lockout, JWT
// session tokens, remember-me tokens, and Google account linking.
//
// Every other part of the backend (catalog, cart, orders) authenticates
// through this package and never touches credential data directly.
package auth

import (
	"time"
)

// Account is the persisted identity and credential record. It is owned
// exclusively by the AccountStore; callers receive copies or IDs, never a
// shared mutable reference.
type Account struct {
	ID           string `json:"id" bson:"_id"`
	Name         string `json:"name" bson:"name"`
	Email        string `json:"email" bson:"email"`
	PasswordHash string `json:"-" bson:"password_hash,omitempty"` // Never expose in JSON responses.
	Phone        string `json:"phone,omitempty" bson:"phone,omitempty"`
	IsAdmin      bool   `json:"is_admin" bson:"is_admin"`

	// Lockout counters. Mutated on every login attempt.
	FailedLoginCount int        `json:"-" bson:"failed_login_count"`
	LockedUntil      *time.Time `json:"-" bson:"locked_until,omitempty"`

	// OAuthID is the external provider identity (Google subject ID).
	// Sparse unique: most accounts have none.
	OAuthID string `json:"-" bson:"oauth_id,omitempty"`

	// Remember-me credential. Only the SHA-256 hash of the opaque token is
	// stored -- the plaintext goes to the client once and is never kept.
	RememberTokenHash   string     `json:"-" bson:"remember_token_hash,omitempty"`
	RememberTokenExpiry *time.Time `json:"-" bson:"remember_token_expiry,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// HasPassword reports whether the account can authenticate with a password.
// Accounts created purely via Google sign-in have no hash until the owner
// sets one.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest holds the data submitted to POST /api/v1/auth/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

// LoginRequest holds the data submitted to POST /api/v1/auth/login.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// RememberRequest holds the data submitted to POST /api/v1/auth/remember.
type RememberRequest struct {
	Token string `json:"token" validate:"required"`
}

// UpdateProfileRequest holds the data submitted to PUT /api/v1/profile.
type UpdateProfileRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"required,email,max=255"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

// --- Service Input DTOs (passed from handler to service) ---

// RegisterInput is the validated input for creating a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// LoginInput is the validated input for a password login attempt.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
}

// UpdateProfileInput is the validated input for a profile update.
type UpdateProfileInput struct {
	Name  string
	Email string
	Phone string
}

// LoginResult is what a successful login returns: the account, a session
// token, and -- when remember-me was requested -- the plaintext remember
// token for the client to store.
type LoginResult struct {
	Account       *Account
	Token         string
	RememberToken string
}

// Identity is the minimal authenticated caller resolved from a bearer token.
// Non-privileged routes work from these claims alone; admin routes re-fetch
// the live account (see RequireAdmin).
type Identity struct {
	AccountID string
	Name      string
	Email     string
}

// OAuthProfile is the external-provider identity handed to the linker after
// a successful Google code exchange.
type OAuthProfile struct {
	ProviderID string
	Email      string
	Name       string
}
