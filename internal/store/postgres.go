// Package store provides storage backends for AICoach.
//
// This file implements the PostgreSQL-backed store for users and messages.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/bouajo/aicoach/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN and
// runs the embedded migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.PostgresDSN != "")

	dsn := cfg.PostgresDSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// GetUser retrieves a user by id. Returns (nil, nil) when not found.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetUser not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUser failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByPhone retrieves a user by phone number. Returns (nil, nil) when
// not found.
func (s *PostgresStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE phone_number = $1", phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetUserByPhone not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to get user by phone: %w", err)
	}
	return u, nil
}

// SaveUser inserts or updates a user record and refreshes updated_at.
func (s *PostgresStore) SaveUser(ctx context.Context, u *models.User) error {
	if err := u.Validate(); err != nil {
		slog.Error("PostgresStore SaveUser validation failed", "error", err)
		return err
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			phone_number = EXCLUDED.phone_number,
			state = EXCLUDED.state,
			language = EXCLUDED.language,
			name = EXCLUDED.name,
			age = EXCLUDED.age,
			height_cm = EXCLUDED.height_cm,
			current_weight = EXCLUDED.current_weight,
			target_weight = EXCLUDED.target_weight,
			target_date = EXCLUDED.target_date,
			focus_areas = EXCLUDED.focus_areas,
			plan = EXCLUDED.plan,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.PhoneNumber, string(u.State), u.Language,
		nilIfEmpty(u.Name), nilIfZeroInt(u.Age), nilIfZeroInt(u.HeightCM),
		nilIfZeroFloat(u.CurrentWeight), nilIfZeroFloat(u.TargetWeight),
		nilIfEmpty(u.TargetDate), nilIfEmpty(u.FocusAreas), nilIfEmpty(u.Plan),
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveUser failed", "error", err, "id", u.ID)
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	slog.Debug("PostgresStore SaveUser succeeded", "id", u.ID, "state", u.State)
	return nil
}

// AddMessage appends one conversation message.
func (s *PostgresStore) AddMessage(ctx context.Context, m models.ChatMessage) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (user_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
		m.UserID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "userID", m.UserID, "role", m.Role)
		return fmt.Errorf("failed to insert message for %s: %w", m.UserID, err)
	}
	slog.Debug("PostgresStore AddMessage succeeded", "userID", m.UserID, "role", m.Role)
	return nil
}

// RecentMessages returns up to limit most recent messages for a user in
// chronological order.
func (s *PostgresStore) RecentMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, role, content, created_at FROM messages
		 WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		slog.Error("PostgresStore RecentMessages query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query messages for %s: %w", userID, err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			slog.Error("PostgresStore RecentMessages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore RecentMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	slog.Debug("PostgresStore RecentMessages succeeded", "userID", userID, "count", len(messages))
	return messages, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
