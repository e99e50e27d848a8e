package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gildora/gildora/internal/apperror"
)

// --- Mock Store ---

// mockStore implements AccountStore for testing.
type mockStore struct {
	createFn              func(ctx context.Context, account *Account) error
	updateFn              func(ctx context.Context, account *Account) error
	findByIDFn            func(ctx context.Context, id string) (*Account, error)
	findByEmailFn         func(ctx context.Context, email string) (*Account, error)
	findByOAuthIDFn       func(ctx context.Context, oauthID string) (*Account, error)
	findByRememberTokenFn func(ctx context.Context, tokenHash string) (*Account, error)
	emailExistsFn         func(ctx context.Context, email string) (bool, error)
	listFn                func(ctx context.Context, offset, limit int) ([]Account, int, error)
	pingFn                func(ctx context.Context) error
}

func (m *mockStore) Create(ctx context.Context, account *Account) error {
	if m.createFn != nil {
		return m.createFn(ctx, account)
	}
	return nil
}

func (m *mockStore) Update(ctx context.Context, account *Account) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, account)
	}
	return nil
}

func (m *mockStore) FindByID(ctx context.Context, id string) (*Account, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("account not found")
}

func (m *mockStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("account not found")
}

func (m *mockStore) FindByOAuthID(ctx context.Context, oauthID string) (*Account, error) {
	if m.findByOAuthIDFn != nil {
		return m.findByOAuthIDFn(ctx, oauthID)
	}
	return nil, apperror.NewNotFound("account not found")
}

func (m *mockStore) FindByRememberToken(ctx context.Context, tokenHash string) (*Account, error) {
	if m.findByRememberTokenFn != nil {
		return m.findByRememberTokenFn(ctx, tokenHash)
	}
	return nil, apperror.NewNotFound("account not found")
}

func (m *mockStore) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFn != nil {
		return m.emailExistsFn(ctx, email)
	}
	return false, nil
}

func (m *mockStore) List(ctx context.Context, offset, limit int) ([]Account, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, offset, limit)
	}
	return nil, 0, nil
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

// --- Test Helpers ---

// newTestService creates a service with the given store and production-like
// policy settings.
func newTestService(store AccountStore) *service {
	return &service{
		store:       store,
		issuer:      NewTokenIssuer(testSecret, time.Hour),
		lockout:     LockoutPolicy{Threshold: 5, Duration: 2 * time.Hour},
		policy:      PasswordPolicy{MinLength: 8},
		rememberTTL: 90 * 24 * time.Hour,
		now:         time.Now,
	}
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// testPassword and cachedHash avoid re-running argon2id in every login test.
const testPassword = "Correct-Horse-7!"

var (
	hashOnce   sync.Once
	cachedHash string
)

func testPasswordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := HashPassword(testPassword)
		if err != nil {
			t.Fatalf("HashPassword failed: %v", err)
		}
		cachedHash = h
	})
	return cachedHash
}

// seedAccount creates an account with the test password in a fresh MemoryStore.
func seedAccount(t *testing.T, store *MemoryStore, email string) *Account {
	t.Helper()
	account := &Account{
		ID:           "acc-" + email,
		Name:         "Test User",
		Email:        email,
		PasswordHash: testPasswordHash(t),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := store.Create(context.Background(), account); err != nil {
		t.Fatalf("seeding account: %v", err)
	}
	return account
}

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	var created *Account
	store := &mockStore{
		createFn: func(ctx context.Context, account *Account) error {
			created = account
			return nil
		},
	}

	svc := newTestService(store)
	account, token, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "  Alice@EXAMPLE.com  ",
		Password: testPassword,
		Phone:    "+45 12 34 56 78",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.ID == "" {
		t.Error("expected account ID to be generated")
	}
	if account.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %s", account.Email)
	}
	if account.PasswordHash == "" || account.PasswordHash == testPassword {
		t.Error("expected password to be hashed")
	}
	if !VerifyPassword(testPassword, account.PasswordHash) {
		t.Error("expected stored hash to verify the original password")
	}
	if token == "" {
		t.Error("expected session token to be issued")
	}
	if created == nil {
		t.Fatal("expected account to be persisted")
	}

	// The fresh token must authenticate as the new account.
	claims, err := svc.issuer.Verify(token)
	if err != nil {
		t.Fatalf("issued token failed verification: %v", err)
	}
	if claims.Subject != account.ID {
		t.Errorf("expected token subject %s, got %s", account.ID, claims.Subject)
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	var createCalled bool
	store := &mockStore{
		createFn: func(ctx context.Context, account *Account) error {
			createCalled = true
			return nil
		},
	}

	svc := newTestService(store)
	_, _, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "weak",
	})
	assertAppError(t, err, 400)
	if createCalled {
		t.Error("expected no account created for a weak password")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := &mockStore{
		emailExistsFn: func(ctx context.Context, email string) (bool, error) {
			return true, nil
		},
	}

	svc := newTestService(store)
	_, _, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "taken@example.com",
		Password: testPassword,
	})
	assertAppError(t, err, 409)
}

func TestRegister_DuplicateEmailRace(t *testing.T) {
	// EmailExists said free, but Create hit the unique index. The store's
	// conflict error must pass through unchanged.
	store := &mockStore{
		createFn: func(ctx context.Context, account *Account) error {
			return apperror.NewConflict("an account with this email already exists")
		},
	}

	svc := newTestService(store)
	_, _, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "raced@example.com",
		Password: testPassword,
	})
	assertAppError(t, err, 409)
}

func TestRegister_EmailCheckError(t *testing.T) {
	store := &mockStore{
		emailExistsFn: func(ctx context.Context, email string) (bool, error) {
			return false, errors.New("db connection lost")
		},
	}

	svc := newTestService(store)
	_, _, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: testPassword,
	})
	assertAppError(t, err, 500)
}

// --- Login Tests ---

func TestLogin_Success(t *testing.T) {
	store := NewMemoryStore()
	seedAccount(t, store, "alice@example.com")

	svc := newTestService(store)
	result, err := svc.Login(context.Background(), LoginInput{
		Email:    "Alice@Example.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Token == "" {
		t.Error("expected session token")
	}
	if result.RememberToken != "" {
		t.Error("expected no remember token without remember_me")
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc := newTestService(&mockStore{})
	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: testPassword,
	})
	assertAppError(t, err, 401)

	var appErr *apperror.AppError
	errors.As(err, &appErr)
	if appErr.Message != msgInvalidCredentials {
		t.Errorf("expected generic message %q, got %q", msgInvalidCredentials, appErr.Message)
	}
}

func TestLogin_WrongPasswordSharesUnknownEmailMessage(t *testing.T) {
	// Unknown email and wrong password must be indistinguishable so the
	// endpoint cannot be used to probe which emails have accounts.
	store := NewMemoryStore()
	seedAccount(t, store, "alice@example.com")

	svc := newTestService(store)
	_, wrongPw := svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "Wrong-Horse-7!",
	})
	_, unknown := svc.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: testPassword,
	})

	var e1, e2 *apperror.AppError
	if !errors.As(wrongPw, &e1) || !errors.As(unknown, &e2) {
		t.Fatalf("expected AppErrors, got %v / %v", wrongPw, unknown)
	}
	if e1.Code != e2.Code || e1.Message != e2.Message {
		t.Errorf("expected identical errors, got (%d %q) vs (%d %q)",
			e1.Code, e1.Message, e2.Code, e2.Message)
	}
}

func TestLogin_WrongPasswordIncrementsCounter(t *testing.T) {
	store := NewMemoryStore()
	seeded := seedAccount(t, store, "alice@example.com")

	svc := newTestService(store)
	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "Wrong-Horse-7!",
	})
	assertAppError(t, err, 401)

	stored, err := store.FindByID(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if stored.FailedLoginCount != 1 {
		t.Errorf("expected failed count 1, got %d", stored.FailedLoginCount)
	}
	if stored.LockedUntil != nil {
		t.Error("expected no lock after a single failure")
	}
}

func TestLogin_LocksAfterFiveFailures(t *testing.T) {
	store := NewMemoryStore()
	seeded := seedAccount(t, store, "alice@example.com")

	svc := newTestService(store)
	for i := 0; i < 5; i++ {
		_, err := svc.Login(context.Background(), LoginInput{
			Email:    "alice@example.com",
			Password: "Wrong-Horse-7!",
		})
		assertAppError(t, err, 401)
	}

	stored, _ := store.FindByID(context.Background(), seeded.ID)
	if stored.FailedLoginCount != 5 {
		t.Errorf("expected failed count 5, got %d", stored.FailedLoginCount)
	}
	if stored.LockedUntil == nil {
		t.Fatal("expected account locked after 5 failures")
	}

	// The correct password is rejected while the lock holds, and the
	// message must not reveal the unlock time.
	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: testPassword,
	})
	assertAppError(t, err, 401)

	var appErr *apperror.AppError
	errors.As(err, &appErr)
	if appErr.Message != msgAccountLocked {
		t.Errorf("expected locked message, got %q", appErr.Message)
	}
	if strings.Contains(appErr.Message, "hour") || strings.Contains(appErr.Message, "until") {
		t.Errorf("locked message must not hint at the unlock time: %q", appErr.Message)
	}
}

func TestLogin_ExpiredLockFailureRestartsAtOne(t *testing.T) {
	store := NewMemoryStore()
	seeded := seedAccount(t, store, "alice@example.com")

	past := time.Now().Add(-time.Minute)
	seeded.FailedLoginCount = 5
	seeded.LockedUntil = &past
	if err := store.Update(context.Background(), seeded); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	svc := newTestService(store)
	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "Wrong-Horse-7!",
	})
	assertAppError(t, err, 401)

	stored, _ := store.FindByID(context.Background(), seeded.ID)
	if stored.FailedLoginCount != 1 {
		t.Errorf("expected counter restart at 1 after expired lock, got %d", stored.FailedLoginCount)
	}
	if stored.LockedUntil != nil {
		t.Error("expected expired lock cleared")
	}
}

func TestLogin_SucceedsAfterLockExpires(t *testing.T) {
	store := NewMemoryStore()
	seeded := seedAccount(t, store, "alice@example.com")

	lockTime := time.Now()
	until := lockTime.Add(2 * time.Hour)
	seeded.FailedLoginCount = 5
	seeded.LockedUntil = &until
	if err := store.Update(context.Background(), seeded); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	svc := newTestService(store)
	// Advance the clock past the lock window.
	svc.now = func() time.Time { return lockTime.Add(2*time.Hour + time.Second) }

	result, err := svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("expected login to succeed after lock expiry: %v", err)
	}
	if result.Token == "" {
		t.Error("expected session token")
	}

	stored, _ := store.FindByID(context.Background(), seeded.ID)
	if stored.FailedLoginCount != 0 {
		t.Errorf("expected counters cleared on success, got %d", stored.FailedLoginCount)
	}
	if stored.LockedUntil != nil {
		t.Error("expected lock cleared on success")
	}
}

func TestLogin_OAuthOnlyAccountRejectedAndCounted(t *testing.T) {
	store := NewMemoryStore()
	account := &Account{
		ID:        "acc-oauth",
		Name:      "Bob",
		Email:     "bob@example.com",
		OAuthID:   "google-sub-1",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := store.Create(context.Background(), account); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	svc := newTestService(store)
	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "bob@example.com",
		Password: "Whatever-7!",
	})
	assertAppError(t, err, 401)

	var appErr *apperror.AppError
	errors.As(err, &appErr)
	if appErr.Message != msgInvalidCredentials {
		t.Errorf("expected generic message, got %q", appErr.Message)
	}

	// The attempt counts toward lockout like any wrong password.
	stored, _ := store.FindByID(context.Background(), "acc-oauth")
	if stored.FailedLoginCount != 1 {
		t.Errorf("expected failed count 1, got %d", stored.FailedLoginCount)
	}
}

func TestLogin_RememberMe(t *testing.T) {
	store := NewMemoryStore()
	seeded := seedAccount(t, store, "alice@example.com")

	svc := newTestService(store)
	result, err := svc.Login(context.Background(), LoginInput{
		Email:      "alice@example.com",
		Password:   testPassword,
		RememberMe: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RememberToken == "" {
		t.Fatal("expected remember token")
	}

	// Only the hash is persisted.
	stored, _ := store.FindByID(context.Background(), seeded.ID)
	if stored.RememberTokenHash != HashToken(result.RememberToken) {
		t.Error("expected stored hash to match the issued token")
	}
	if stored.RememberTokenExpiry == nil {
		t.Fatal("expected remember token expiry set")
	}
	untilExpiry := time.Until(*stored.RememberTokenExpiry)
	if untilExpiry < 89*24*time.Hour || untilExpiry > 91*24*time.Hour {
		t.Errorf("expected expiry ~90 days out, got %v", untilExpiry)
	}
}

func TestLogin_CounterWriteFailureDoesNotFlipOutcome(t *testing.T) {
	hash := testPasswordHash(t)
	account := &Account{ID: "acc-1", Email: "alice@example.com", PasswordHash: hash}

	store := &mockStore{
		findByEmailFn: func(ctx context.Context, email string) (*Account, error) {
			cp := *account
			return &cp, nil
		},
		updateFn: func(ctx context.Context, a *Account) error {
			return errors.New("db write error")
		},
	}

	svc := newTestService(store)

	// Wrong password stays a 401 even though the counter write failed.
	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "Wrong-Horse-7!",
	})
	assertAppError(t, err, 401)

	// Correct password stays a success.
	result, err := svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("expected success despite counter write failure: %v", err)
	}
	if result.Token == "" {
		t.Error("expected session token")
	}
}

func TestLogin_RememberPersistFailureSurfaces(t *testing.T) {
	// A remember token the store never saw can never be redeemed. If the
	// write fails the client must get an error, not a dead credential.
	hash := testPasswordHash(t)
	store := &mockStore{
		findByEmailFn: func(ctx context.Context, email string) (*Account, error) {
			return &Account{ID: "acc-1", Email: email, PasswordHash: hash}, nil
		},
		updateFn: func(ctx context.Context, a *Account) error {
			return errors.New("db write error")
		},
	}

	svc := newTestService(store)
	result, err := svc.Login(context.Background(), LoginInput{
		Email:      "alice@example.com",
		Password:   testPassword,
		RememberMe: true,
	})
	assertAppError(t, err, 500)
	if result != nil {
		t.Error("expected no login result when the remember token was not persisted")
	}
}

// --- Remember Token Tests ---

func TestRedeemRememberToken_Success(t *testing.T) {
	store := NewMemoryStore()
	seeded := seedAccount(t, store, "alice@example.com")

	svc := newTestService(store)
	login, err := svc.Login(context.Background(), LoginInput{
		Email:      "alice@example.com",
		Password:   testPassword,
		RememberMe: true,
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	result, err := svc.RedeemRememberToken(context.Background(), login.RememberToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Token == "" {
		t.Error("expected fresh session token")
	}
	if result.Account.ID != seeded.ID {
		t.Errorf("expected account %s, got %s", seeded.ID, result.Account.ID)
	}
}

func TestRedeemRememberToken_Unknown(t *testing.T) {
	svc := newTestService(&mockStore{})
	_, err := svc.RedeemRememberToken(context.Background(), "no-such-token")
	assertAppError(t, err, 401)
}

func TestRedeemRememberToken_Empty(t *testing.T) {
	svc := newTestService(&mockStore{})
	_, err := svc.RedeemRememberToken(context.Background(), "")
	assertAppError(t, err, 401)
}

func TestRedeemRememberToken_Expired(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	store := &mockStore{
		findByRememberTokenFn: func(ctx context.Context, tokenHash string) (*Account, error) {
			return &Account{
				ID:                  "acc-1",
				RememberTokenHash:   tokenHash,
				RememberTokenExpiry: &expired,
			}, nil
		},
	}

	svc := newTestService(store)
	_, err := svc.RedeemRememberToken(context.Background(), "some-token")
	assertAppError(t, err, 401)
}

func TestRedeemRememberToken_LockedAccount(t *testing.T) {
	future := time.Now().Add(time.Hour)
	lockedUntil := time.Now().Add(time.Hour)
	store := &mockStore{
		findByRememberTokenFn: func(ctx context.Context, tokenHash string) (*Account, error) {
			return &Account{
				ID:                  "acc-1",
				RememberTokenHash:   tokenHash,
				RememberTokenExpiry: &future,
				FailedLoginCount:    5,
				LockedUntil:         &lockedUntil,
			}, nil
		},
	}

	svc := newTestService(store)
	_, err := svc.RedeemRememberToken(context.Background(), "some-token")
	assertAppError(t, err, 401)
}

// --- Authenticate / RequireAdmin Tests ---

func TestAuthenticate(t *testing.T) {
	svc := newTestService(&mockStore{})
	account := &Account{ID: "acc-1", Name: "Alice", Email: "alice@example.com"}

	token, err := svc.issuer.Issue(account)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	identity, err := svc.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.AccountID != "acc-1" {
		t.Errorf("expected account acc-1, got %s", identity.AccountID)
	}

	if _, err := svc.Authenticate(context.Background(), "garbage"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestRequireAdmin_Admin(t *testing.T) {
	store := &mockStore{
		findByIDFn: func(ctx context.Context, id string) (*Account, error) {
			return &Account{ID: id, IsAdmin: true}, nil
		},
	}

	svc := newTestService(store)
	account, err := svc.RequireAdmin(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !account.IsAdmin {
		t.Error("expected admin account")
	}
}

func TestRequireAdmin_NonAdmin(t *testing.T) {
	store := &mockStore{
		findByIDFn: func(ctx context.Context, id string) (*Account, error) {
			return &Account{ID: id, IsAdmin: false}, nil
		},
	}

	svc := newTestService(store)
	_, err := svc.RequireAdmin(context.Background(), "acc-1")
	assertAppError(t, err, 403)
}

func TestRequireAdmin_RevokedAfterTokenIssued(t *testing.T) {
	// The live record says non-admin regardless of what an old token claims.
	admin := true
	store := &mockStore{
		findByIDFn: func(ctx context.Context, id string) (*Account, error) {
			return &Account{ID: id, IsAdmin: admin}, nil
		},
	}

	svc := newTestService(store)
	if _, err := svc.RequireAdmin(context.Background(), "acc-1"); err != nil {
		t.Fatalf("unexpected error while admin: %v", err)
	}

	admin = false
	_, err := svc.RequireAdmin(context.Background(), "acc-1")
	assertAppError(t, err, 403)
}

func TestRequireAdmin_DeletedAccount(t *testing.T) {
	svc := newTestService(&mockStore{})
	_, err := svc.RequireAdmin(context.Background(), "gone")
	assertAppError(t, err, 401)
}

// --- OAuth Linking Tests ---

func TestLinkOAuthProfile_AlreadyLinked(t *testing.T) {
	var createCalled, updateCalled bool
	store := &mockStore{
		findByOAuthIDFn: func(ctx context.Context, oauthID string) (*Account, error) {
			return &Account{ID: "acc-1", Email: "alice@example.com", OAuthID: oauthID}, nil
		},
		createFn: func(ctx context.Context, account *Account) error {
			createCalled = true
			return nil
		},
		updateFn: func(ctx context.Context, account *Account) error {
			updateCalled = true
			return nil
		},
	}

	svc := newTestService(store)
	account, token, err := svc.LinkOAuthProfile(context.Background(), OAuthProfile{
		ProviderID: "google-sub-1",
		Email:      "alice@example.com",
		Name:       "Alice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.ID != "acc-1" {
		t.Errorf("expected existing account, got %s", account.ID)
	}
	if token == "" {
		t.Error("expected session token")
	}
	if createCalled || updateCalled {
		t.Error("expected no writes when the identity is already linked")
	}
}

func TestLinkOAuthProfile_MergesByEmailPreservingPassword(t *testing.T) {
	store := NewMemoryStore()
	seeded := seedAccount(t, store, "alice@example.com")
	originalHash := seeded.PasswordHash

	svc := newTestService(store)
	account, _, err := svc.LinkOAuthProfile(context.Background(), OAuthProfile{
		ProviderID: "google-sub-1",
		Email:      "Alice@Example.com",
		Name:       "Alice G",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.ID != seeded.ID {
		t.Errorf("expected merge into existing account %s, got %s", seeded.ID, account.ID)
	}
	if account.OAuthID != "google-sub-1" {
		t.Errorf("expected oauth id linked, got %q", account.OAuthID)
	}

	// Password login must keep working after the merge.
	stored, _ := store.FindByID(context.Background(), seeded.ID)
	if stored.PasswordHash != originalHash {
		t.Error("expected password hash preserved through oauth merge")
	}
}

func TestLinkOAuthProfile_CreatesPasswordlessAccount(t *testing.T) {
	store := NewMemoryStore()

	svc := newTestService(store)
	account, token, err := svc.LinkOAuthProfile(context.Background(), OAuthProfile{
		ProviderID: "google-sub-2",
		Email:      "carol@example.com",
		Name:       "Carol",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Error("expected session token")
	}
	if account.HasPassword() {
		t.Error("expected oauth-created account to have no password")
	}
	if account.Email != "carol@example.com" {
		t.Errorf("expected email carol@example.com, got %s", account.Email)
	}

	// Idempotent: a second sign-in resolves to the same account.
	again, _, err := svc.LinkOAuthProfile(context.Background(), OAuthProfile{
		ProviderID: "google-sub-2",
		Email:      "carol@example.com",
		Name:       "Carol",
	})
	if err != nil {
		t.Fatalf("unexpected error on second sign-in: %v", err)
	}
	if again.ID != account.ID {
		t.Errorf("expected same account on repeat sign-in, got %s vs %s", again.ID, account.ID)
	}
}

func TestLinkOAuthProfile_MissingEmailRejected(t *testing.T) {
	svc := newTestService(&mockStore{})
	_, _, err := svc.LinkOAuthProfile(context.Background(), OAuthProfile{
		ProviderID: "google-sub-3",
		Name:       "No Email",
	})
	assertAppError(t, err, 401)
}

// --- Profile Tests ---

func TestUpdateProfile_EmailConflict(t *testing.T) {
	store := NewMemoryStore()
	seedAccount(t, store, "alice@example.com")
	bob := seedAccount(t, store, "bob@example.com")

	svc := newTestService(store)
	_, err := svc.UpdateProfile(context.Background(), bob.ID, UpdateProfileInput{
		Name:  "Bob",
		Email: "alice@example.com",
	})
	assertAppError(t, err, 409)
}

func TestUpdateProfile_ConflictFromStorePassesThrough(t *testing.T) {
	// EmailExists said free, but the store's unique email index disagreed at
	// write time. The conflict must surface as a 409, not a 500.
	store := &mockStore{
		findByIDFn: func(ctx context.Context, id string) (*Account, error) {
			return &Account{ID: id, Email: "bob@example.com"}, nil
		},
		updateFn: func(ctx context.Context, a *Account) error {
			return apperror.NewConflict("an account with this email already exists")
		},
	}

	svc := newTestService(store)
	_, err := svc.UpdateProfile(context.Background(), "acc-1", UpdateProfileInput{
		Name:  "Bob",
		Email: "raced@example.com",
	})
	assertAppError(t, err, 409)
}

func TestUpdateProfile_Success(t *testing.T) {
	store := NewMemoryStore()
	seeded := seedAccount(t, store, "alice@example.com")

	svc := newTestService(store)
	account, err := svc.UpdateProfile(context.Background(), seeded.ID, UpdateProfileInput{
		Name:  "Alice Goldsmith",
		Email: "alice.g@example.com",
		Phone: "+45 11 22 33 44",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.Name != "Alice Goldsmith" {
		t.Errorf("expected updated name, got %s", account.Name)
	}
	if account.Email != "alice.g@example.com" {
		t.Errorf("expected updated email, got %s", account.Email)
	}

	// Credentials survive a profile update.
	stored, _ := store.FindByID(context.Background(), seeded.ID)
	if !VerifyPassword(testPassword, stored.PasswordHash) {
		t.Error("expected password hash untouched by profile update")
	}
}
