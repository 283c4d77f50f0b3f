// Package store provides storage backends for AICoach.
//
// This file implements an in-memory store used for tests and for running
// without a database DSN.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bouajo/aicoach/internal/models"
)

// InMemoryStore keeps users and messages in maps guarded by a mutex. Data is
// lost on restart.
type InMemoryStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	messages map[string][]models.ChatMessage
}

// NewInMemoryStore creates a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("NewInMemoryStore invoked")
	return &InMemoryStore{
		users:    make(map[string]models.User),
		messages: make(map[string][]models.ChatMessage),
	}
}

// GetUser retrieves a user by id. Returns (nil, nil) when not found.
func (s *InMemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

// GetUserByPhone retrieves a user by phone number. Returns (nil, nil) when
// not found.
func (s *InMemoryStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.PhoneNumber == phone {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

// SaveUser inserts or updates a user record and refreshes updated_at.
func (s *InMemoryStore) SaveUser(ctx context.Context, u *models.User) error {
	if err := u.Validate(); err != nil {
		slog.Error("InMemoryStore SaveUser validation failed", "error", err)
		return err
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	slog.Debug("InMemoryStore SaveUser succeeded", "id", u.ID, "state", u.State)
	return nil
}

// AddMessage appends one conversation message.
func (s *InMemoryStore) AddMessage(ctx context.Context, m models.ChatMessage) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.UserID] = append(s.messages[m.UserID], m)
	return nil
}

// RecentMessages returns up to limit most recent messages for a user in
// chronological order.
func (s *InMemoryStore) RecentMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.messages[userID]
	if limit < len(all) {
		all = all[len(all)-limit:]
	}
	out := make([]models.ChatMessage, len(all))
	copy(out, all)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	slog.Debug("Closing InMemoryStore")
	return nil
}
