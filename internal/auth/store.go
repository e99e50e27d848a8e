package auth

import (
	"context"
)

// AccountStore is the storage-agnostic data access contract for accounts.
// The service and lockout logic are written once against this interface;
// the Mongo adapter (mongo.go) and the in-memory adapter (memory.go) both
// implement it. The backend is selected once at startup, never per request.
//
// Finders return apperror.NewNotFound when no account matches.
type AccountStore interface {
	Create(ctx context.Context, account *Account) error
	Update(ctx context.Context, account *Account) error

	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByOAuthID(ctx context.Context, oauthID string) (*Account, error)
	FindByRememberToken(ctx context.Context, tokenHash string) (*Account, error)

	EmailExists(ctx context.Context, email string) (bool, error)

	// List returns a page of accounts ordered by creation time plus the
	// total count. Used by the admin panel.
	List(ctx context.Context, offset, limit int) ([]Account, int, error)

	// Ping verifies the backing store is reachable. Used by /healthz.
	Ping(ctx context.Context) error
}
