package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gildora/gildora/internal/apperror"
)

// Login failure messages. Unknown email and wrong password deliberately
// share one message so the API cannot be used to enumerate accounts. The
// locked message never reveals the unlock time.
const (
	msgInvalidCredentials = "invalid email or password"
	msgAccountLocked      = "account is temporarily locked due to repeated failed logins"
)

// Service is the business logic contract for authentication and account
// management. Handlers call these methods -- they never touch the store
// directly.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*Account, string, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	RedeemRememberToken(ctx context.Context, token string) (*LoginResult, error)

	// Authenticate resolves a bearer token to the caller's identity using
	// the token claims alone -- no store round trip on the hot path.
	Authenticate(ctx context.Context, token string) (*Identity, error)

	// RequireAdmin re-fetches the live account and checks the admin flag.
	// Privileged routes must not trust a stale claim: admin status can be
	// revoked after a token was issued.
	RequireAdmin(ctx context.Context, accountID string) (*Account, error)

	// LinkOAuthProfile reconciles a Google identity against the store and
	// returns the linked account with a fresh session token.
	LinkOAuthProfile(ctx context.Context, profile OAuthProfile) (*Account, string, error)

	GetProfile(ctx context.Context, accountID string) (*Account, error)
	UpdateProfile(ctx context.Context, accountID string, input UpdateProfileInput) (*Account, error)

	ListAccounts(ctx context.Context, offset, limit int) ([]Account, int, error)
	Ping(ctx context.Context) error
}

// service implements Service against the storage-agnostic AccountStore.
type service struct {
	store       AccountStore
	issuer      *TokenIssuer
	lockout     LockoutPolicy
	policy      PasswordPolicy
	rememberTTL time.Duration

	// now is swapped in lockout tests to simulate an elapsed lock window.
	now func() time.Time
}

// NewService creates the auth service with the given dependencies.
func NewService(store AccountStore, issuer *TokenIssuer, lockout LockoutPolicy, policy PasswordPolicy, rememberTTL time.Duration) Service {
	return &service{
		store:       store,
		issuer:      issuer,
		lockout:     lockout,
		policy:      policy,
		rememberTTL: rememberTTL,
		now:         time.Now,
	}
}

// Register creates a new account. It checks the password policy and email
// uniqueness before doing the expensive hash, then issues a session token:
// registering implies logging in.
func (s *service) Register(ctx context.Context, input RegisterInput) (*Account, string, error) {
	email := normalizeEmail(input.Email)

	if msg := s.policy.Check(input.Password); msg != "" {
		return nil, "", apperror.NewValidation(msg)
	}

	exists, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, "", apperror.NewConflict("an account with this email already exists")
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	now := s.now().UTC()
	account := &Account{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(input.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, account); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, "", err
		}
		return nil, "", apperror.NewInternal(fmt.Errorf("creating account: %w", err))
	}

	token, err := s.issuer.Issue(account)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("issuing token: %w", err))
	}

	slog.Info("account registered",
		slog.String("account_id", account.ID),
		slog.String("email", account.Email),
	)

	return account, token, nil
}

// Login runs the password login state machine: look up, check lock, verify,
// update lockout counters, issue token. A failed verify and an unknown email
// are indistinguishable to the caller.
func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	account, err := s.store.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NewUnauthorized(msgInvalidCredentials)
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding account: %w", err))
	}

	now := s.now()

	if s.lockout.IsLocked(account, now) {
		slog.Warn("login rejected: account locked",
			slog.String("account_id", account.ID),
		)
		return nil, apperror.NewUnauthorized(msgAccountLocked)
	}

	// An OAuth-only account has no hash; VerifyPassword rejects it like any
	// wrong password, so the attempt still counts toward lockout.
	if !VerifyPassword(input.Password, account.PasswordHash) {
		s.lockout.OnFailure(account, now)
		s.persistCounters(ctx, account)

		slog.Info("login failed",
			slog.String("account_id", account.ID),
			slog.Int("failed_count", account.FailedLoginCount),
		)
		return nil, apperror.NewUnauthorized(msgInvalidCredentials)
	}

	s.lockout.OnSuccess(account)

	result := &LoginResult{Account: account}

	if input.RememberMe {
		// The remember credential is only usable if its hash reaches the
		// store. Unlike the lockout counters, this write is not best-effort:
		// returning a token that can never be redeemed would be worse than
		// failing the login.
		plaintext, hash, err := NewRememberToken()
		if err != nil {
			return nil, apperror.NewInternal(err)
		}
		expiry := now.Add(s.rememberTTL)
		account.RememberTokenHash = hash
		account.RememberTokenExpiry = &expiry
		account.UpdatedAt = s.now().UTC()
		if err := s.store.Update(ctx, account); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("persisting remember token: %w", err))
		}
		result.RememberToken = plaintext
	} else {
		s.persistCounters(ctx, account)
	}

	token, err := s.issuer.Issue(account)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("issuing token: %w", err))
	}
	result.Token = token

	slog.Info("login succeeded",
		slog.String("account_id", account.ID),
		slog.Bool("remember_me", input.RememberMe),
	)

	return result, nil
}

// RedeemRememberToken exchanges a stored remember-me credential for a fresh
// session token. The token is an opaque secret looked up by hash, not a JWT:
// expiry lives on the account record.
func (s *service) RedeemRememberToken(ctx context.Context, token string) (*LoginResult, error) {
	if token == "" {
		return nil, apperror.NewUnauthorized(msgInvalidCredentials)
	}

	account, err := s.store.FindByRememberToken(ctx, HashToken(token))
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NewUnauthorized(msgInvalidCredentials)
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding remember token: %w", err))
	}

	now := s.now()
	if account.RememberTokenExpiry == nil || !account.RememberTokenExpiry.After(now) {
		return nil, apperror.NewUnauthorized(msgInvalidCredentials)
	}
	if s.lockout.IsLocked(account, now) {
		return nil, apperror.NewUnauthorized(msgAccountLocked)
	}

	sessionToken, err := s.issuer.Issue(account)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("issuing token: %w", err))
	}

	slog.Info("remember token redeemed", slog.String("account_id", account.ID))

	return &LoginResult{Account: account, Token: sessionToken}, nil
}

// Authenticate verifies a bearer token and returns the embedded identity.
// All verification failures collapse into one generic 401.
func (s *service) Authenticate(_ context.Context, token string) (*Identity, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	return &Identity{
		AccountID: claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
	}, nil
}

// RequireAdmin fetches the live account and rejects non-admins.
func (s *service) RequireAdmin(ctx context.Context, accountID string) (*Account, error) {
	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NewUnauthorized("authentication required")
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding account: %w", err))
	}
	if !account.IsAdmin {
		return nil, apperror.NewForbidden("admin access required")
	}
	return account, nil
}

// LinkOAuthProfile reconciles an external Google identity:
//
//  1. Match by provider ID -- already linked, return as-is.
//  2. Match by email -- an existing password account silently gains Google
//     login. Safe only because Google verifies email ownership before we
//     ever see the profile.
//  3. No match -- create a password-less account.
//
// A profile with no email is rejected outright: the unique email index must
// never see an empty value.
func (s *service) LinkOAuthProfile(ctx context.Context, profile OAuthProfile) (*Account, string, error) {
	if profile.ProviderID == "" || profile.Email == "" {
		return nil, "", apperror.NewUnauthorized("authentication failed")
	}

	account, err := s.store.FindByOAuthID(ctx, profile.ProviderID)
	if err != nil && !isNotFound(err) {
		return nil, "", apperror.NewInternal(fmt.Errorf("finding account by oauth id: %w", err))
	}

	if account == nil {
		account, err = s.linkOrCreateByEmail(ctx, profile)
		if err != nil {
			return nil, "", err
		}
	}

	token, err := s.issuer.Issue(account)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("issuing token: %w", err))
	}

	return account, token, nil
}

// linkOrCreateByEmail handles the slow paths of LinkOAuthProfile: merge into
// an existing account matched by email, or create a fresh one.
func (s *service) linkOrCreateByEmail(ctx context.Context, profile OAuthProfile) (*Account, error) {
	email := normalizeEmail(profile.Email)

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil && !isNotFound(err) {
		return nil, apperror.NewInternal(fmt.Errorf("finding account by email: %w", err))
	}

	now := s.now().UTC()

	if account != nil {
		account.OAuthID = profile.ProviderID
		if account.Name == "" {
			account.Name = profile.Name
		}
		account.UpdatedAt = now
		if err := s.store.Update(ctx, account); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("linking oauth identity: %w", err))
		}
		slog.Info("oauth identity linked to existing account",
			slog.String("account_id", account.ID),
		)
		return account, nil
	}

	account = &Account{
		ID:        uuid.NewString(),
		Name:      profile.Name,
		Email:     email,
		OAuthID:   profile.ProviderID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating oauth account: %w", err))
	}

	slog.Info("account created via oauth", slog.String("account_id", account.ID))
	return account, nil
}

// GetProfile returns the account for the authenticated caller.
func (s *service) GetProfile(ctx context.Context, accountID string) (*Account, error) {
	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NewNotFound("account not found")
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding account: %w", err))
	}
	return account, nil
}

// UpdateProfile updates name, email, and phone. An email change re-checks
// uniqueness. Password hashes and lockout counters are untouchable here.
func (s *service) UpdateProfile(ctx context.Context, accountID string, input UpdateProfileInput) (*Account, error) {
	account, err := s.GetProfile(ctx, accountID)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(input.Email)
	if email != account.Email {
		exists, err := s.store.EmailExists(ctx, email)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
		}
		if exists {
			return nil, apperror.NewConflict("an account with this email already exists")
		}
	}

	account.Name = strings.TrimSpace(input.Name)
	account.Email = email
	account.Phone = strings.TrimSpace(input.Phone)
	account.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, account); err != nil {
		// The store reports the EmailExists/Update race on the unique email
		// index as a conflict; pass it through.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == 409 {
			return nil, err
		}
		return nil, apperror.NewInternal(fmt.Errorf("updating account: %w", err))
	}

	return account, nil
}

// ListAccounts returns a page of accounts for the admin panel.
func (s *service) ListAccounts(ctx context.Context, offset, limit int) ([]Account, int, error) {
	accounts, total, err := s.store.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("listing accounts: %w", err))
	}
	return accounts, total, nil
}

// Ping reports whether the backing store is reachable.
func (s *service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// persistCounters writes lockout counter state back to the store.
// Counter persistence is best-effort: under concurrent attempts the last
// writer wins, and a write failure must not flip the login outcome.
func (s *service) persistCounters(ctx context.Context, account *Account) {
	account.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, account); err != nil {
		slog.Warn("failed to persist login counters",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}
}

// normalizeEmail lowercases and trims an email for lookup and storage.
// The unique index is on this normalized form.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isNotFound checks for the store's not-found error.
func isNotFound(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == 404
}
