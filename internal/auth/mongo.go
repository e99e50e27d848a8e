package auth

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gildora/gildora/internal/apperror"
)

// accountsCollection is the Mongo collection holding account documents.
const accountsCollection = "accounts"

// MongoStore implements AccountStore against a MongoDB collection. Email
// uniqueness and the sparse oauth_id / remember_token_hash indexes are
// ensured at startup by database.EnsureAccountIndexes.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates an account store backed by the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(accountsCollection)}
}

// Create inserts a new account document. A duplicate-key violation on the
// unique email index surfaces as a conflict, covering the race between an
// EmailExists check and the insert.
func (s *MongoStore) Create(ctx context.Context, account *Account) error {
	_, err := s.coll.InsertOne(ctx, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.NewConflict("an account with this email already exists")
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

// Update replaces the account document wholesale. Lockout counters accept
// last-writer-wins semantics, so a full replace is sufficient. An email
// change racing another account onto the unique index surfaces as a
// conflict, mirroring Create.
func (s *MongoStore) Update(ctx context.Context, account *Account) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": account.ID}, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.NewConflict("an account with this email already exists")
		}
		return fmt.Errorf("updating account: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperror.NewNotFound("account not found")
	}
	return nil
}

// FindByID retrieves an account by ID.
func (s *MongoStore) FindByID(ctx context.Context, id string) (*Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail retrieves an account by normalized email.
func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// FindByOAuthID retrieves an account by external provider identity.
func (s *MongoStore) FindByOAuthID(ctx context.Context, oauthID string) (*Account, error) {
	return s.findOne(ctx, bson.M{"oauth_id": oauthID})
}

// FindByRememberToken retrieves an account by remember-token hash.
func (s *MongoStore) FindByRememberToken(ctx context.Context, tokenHash string) (*Account, error) {
	return s.findOne(ctx, bson.M{"remember_token_hash": tokenHash})
}

// EmailExists reports whether any account document uses the given email.
func (s *MongoStore) EmailExists(ctx context.Context, email string) (bool, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return count > 0, nil
}

// List returns a page of accounts ordered by creation time plus the total
// count.
func (s *MongoStore) List(ctx context.Context, offset, limit int) ([]Account, int, error) {
	total, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("counting accounts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("listing accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []Account
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, 0, fmt.Errorf("decoding accounts: %w", err)
	}

	return accounts, int(total), nil
}

// Ping verifies the Mongo deployment is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*Account, error) {
	var account Account
	err := s.coll.FindOne(ctx, filter).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NewNotFound("account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &account, nil
}
