// Package store provides storage backends for AICoach.
//
// This file implements the SQLite-backed store for users and messages.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/bouajo/aicoach/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.SQLiteDSN != "")

	dsn := cfg.SQLiteDSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetUser retrieves a user by id. Returns (nil, nil) when not found.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUser not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUser failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByPhone retrieves a user by phone number. Returns (nil, nil) when
// not found.
func (s *SQLiteStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE phone_number = ?", phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUserByPhone not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to get user by phone: %w", err)
	}
	return u, nil
}

// SaveUser inserts or updates a user record and refreshes updated_at.
func (s *SQLiteStore) SaveUser(ctx context.Context, u *models.User) error {
	if err := u.Validate(); err != nil {
		slog.Error("SQLiteStore SaveUser validation failed", "error", err)
		return err
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phone_number = excluded.phone_number,
			state = excluded.state,
			language = excluded.language,
			name = excluded.name,
			age = excluded.age,
			height_cm = excluded.height_cm,
			current_weight = excluded.current_weight,
			target_weight = excluded.target_weight,
			target_date = excluded.target_date,
			focus_areas = excluded.focus_areas,
			plan = excluded.plan,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.PhoneNumber, string(u.State), u.Language,
		nilIfEmpty(u.Name), nilIfZeroInt(u.Age), nilIfZeroInt(u.HeightCM),
		nilIfZeroFloat(u.CurrentWeight), nilIfZeroFloat(u.TargetWeight),
		nilIfEmpty(u.TargetDate), nilIfEmpty(u.FocusAreas), nilIfEmpty(u.Plan),
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveUser failed", "error", err, "id", u.ID)
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	slog.Debug("SQLiteStore SaveUser succeeded", "id", u.ID, "state", u.State)
	return nil
}

// AddMessage appends one conversation message.
func (s *SQLiteStore) AddMessage(ctx context.Context, m models.ChatMessage) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		m.UserID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "userID", m.UserID, "role", m.Role)
		return fmt.Errorf("failed to insert message for %s: %w", m.UserID, err)
	}
	slog.Debug("SQLiteStore AddMessage succeeded", "userID", m.UserID, "role", m.Role)
	return nil
}

// RecentMessages returns up to limit most recent messages for a user in
// chronological order.
func (s *SQLiteStore) RecentMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, role, content, created_at FROM messages
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		slog.Error("SQLiteStore RecentMessages query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query messages for %s: %w", userID, err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			slog.Error("SQLiteStore RecentMessages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore RecentMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}

	// Rows arrive newest-first; reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	slog.Debug("SQLiteStore RecentMessages succeeded", "userID", userID, "count", len(messages))
	return messages, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
