// Package store provides storage backends for AICoach.
//
// It persists user profiles and the append-only conversation message log,
// with SQLite and PostgreSQL backends plus an in-memory store for tests.
package store

import (
	"context"
	"log/slog"

	"github.com/bouajo/aicoach/internal/models"
	"github.com/google/uuid"
)

// Store is the persistence capability used by the webhook server and the
// conversation flow.
type Store interface {
	// GetUser retrieves a user by id. Returns (nil, nil) when not found.
	GetUser(ctx context.Context, id string) (*models.User, error)

	// GetUserByPhone retrieves a user by phone number. Returns (nil, nil)
	// when not found.
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)

	// SaveUser inserts or updates a user record and refreshes updated_at.
	SaveUser(ctx context.Context, u *models.User) error

	// AddMessage appends one conversation message. Messages are never
	// mutated or deleted.
	AddMessage(ctx context.Context, m models.ChatMessage) error

	// RecentMessages returns up to limit most recent messages for a user
	// in chronological order.
	RecentMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error)

	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	SQLiteDSN   string
	PostgresDSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.SQLiteDSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.PostgresDSN = dsn
	}
}

// NewStore creates a store backend based on the provided options:
// PostgreSQL when a Postgres DSN is set, SQLite when a file DSN is set,
// and an in-memory store when neither is configured.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.PostgresDSN != "":
		slog.Debug("store.NewStore: using PostgreSQL backend")
		return NewPostgresStore(WithPostgresDSN(cfg.PostgresDSN))
	case cfg.SQLiteDSN != "":
		slog.Debug("store.NewStore: using SQLite backend", "path", cfg.SQLiteDSN)
		return NewSQLiteStore(WithSQLiteDSN(cfg.SQLiteDSN))
	default:
		slog.Debug("store.NewStore: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
}

// UserIDFromPhone derives a deterministic UUIDv5 user id from a phone
// number, so the same sender always maps to the same user row.
func UserIDFromPhone(phone string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(phone)).String()
}
