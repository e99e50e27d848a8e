package auth

import (
	"context"
	"sort"
	"sync"

	"github.com/gildora/gildora/internal/apperror"
)

// MemoryStore is an in-process AccountStore used in tests and for running
// the backend without Mongo (STORE_BACKEND=memory). It is constructed and
// injected like any other store -- never a package-level singleton.
//
// All methods copy accounts in and out so callers never hold an alias into
// the map. A single mutex keeps operations read-modify-write safe.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account // keyed by ID
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*Account)}
}

// Create inserts a new account. Fails with a conflict if the email is taken.
func (m *MemoryStore) Create(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a.Email == account.Email {
			return apperror.NewConflict("an account with this email already exists")
		}
	}

	cp := *account
	m.accounts[account.ID] = &cp
	return nil
}

// Update replaces the stored account wholesale (last writer wins).
func (m *MemoryStore) Update(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[account.ID]; !ok {
		return apperror.NewNotFound("account not found")
	}

	cp := *account
	m.accounts[account.ID] = &cp
	return nil
}

// FindByID retrieves an account by ID.
func (m *MemoryStore) FindByID(_ context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, apperror.NewNotFound("account not found")
	}
	cp := *a
	return &cp, nil
}

// FindByEmail retrieves an account by normalized email.
func (m *MemoryStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	return m.findBy(func(a *Account) bool { return a.Email == email })
}

// FindByOAuthID retrieves an account by external provider identity.
func (m *MemoryStore) FindByOAuthID(_ context.Context, oauthID string) (*Account, error) {
	return m.findBy(func(a *Account) bool { return a.OAuthID != "" && a.OAuthID == oauthID })
}

// FindByRememberToken retrieves an account by remember-token hash.
func (m *MemoryStore) FindByRememberToken(_ context.Context, tokenHash string) (*Account, error) {
	return m.findBy(func(a *Account) bool {
		return a.RememberTokenHash != "" && a.RememberTokenHash == tokenHash
	})
}

// EmailExists reports whether any account uses the given email.
func (m *MemoryStore) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.accounts {
		if a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// List returns a page of accounts ordered by creation time (oldest first)
// and the total count.
func (m *MemoryStore) List(_ context.Context, offset, limit int) ([]Account, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		all = append(all, *a)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// Ping always succeeds: the store lives in-process.
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryStore) findBy(match func(*Account) bool) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.accounts {
		if match(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("account not found")
}
