// Package database provides connection setup for MongoDB and Redis.
// Connections are created once at startup and shared across the application
// via dependency injection. This package owns the connection lifecycle
// (open, ping, ensure indexes, close).
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gildora/gildora/internal/config"
)

// NewMongo connects to MongoDB and verifies connectivity before returning.
//
// Connection attempts retry with exponential backoff -- Mongo may still be
// starting up when the app container launches, and retrying here avoids
// crash-loop restarts during Docker Compose cold-starts.
func NewMongo(cfg config.MongoConfig) (*mongo.Client, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("opening mongo connection: %w", err)
	}

	const maxRetries = 10
	backoff := 1 * time.Second
	var pingErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
		pingErr = client.Ping(ctx, nil)
		cancel()

		if pingErr == nil {
			return client, nil
		}

		if attempt == maxRetries {
			break
		}

		slog.Warn("mongo not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.Duration("backoff", backoff),
			slog.Any("error", pingErr),
		)
		time.Sleep(backoff)
		backoff = min(backoff*2, 30*time.Second)
	}

	_ = client.Disconnect(context.Background())
	return nil, fmt.Errorf("pinging mongo after %d attempts: %w", maxRetries, pingErr)
}

// EnsureAccountIndexes creates the indexes the account collection depends
// on: a unique email index, and sparse unique indexes on oauth_id and
// remember_token_hash (most documents carry neither field). Idempotent --
// safe to run on every startup.
func EnsureAccountIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("accounts")

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "oauth_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "remember_token_hash", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("creating account indexes: %w", err)
	}
	return nil
}
