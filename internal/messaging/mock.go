package messaging

import (
	"context"
	"sync"
)

// SentMessage records one SendMessage call on the mock service.
type SentMessage struct {
	To   string
	Body string
}

// MockService implements Service for tests, recording sent messages.
type MockService struct {
	mu      sync.Mutex
	Sent    []SentMessage
	SendErr error
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }
func (m *MockService) Stop() error                     { return nil }

// Messages returns a copy of the recorded sends.
func (m *MockService) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.Sent))
	copy(out, m.Sent)
	return out
}
