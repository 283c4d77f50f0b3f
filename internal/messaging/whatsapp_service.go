package messaging

import (
	"context"
	"log/slog"

	"github.com/bouajo/aicoach/internal/whatsapp"
)

// WhatsAppService adapts a whatsmeow-backed client to the Service
// interface. Used for deployments paired with a personal WhatsApp account.
type WhatsAppService struct {
	sender whatsapp.Sender
}

// NewWhatsAppService creates a messaging service on top of a whatsmeow
// client.
func NewWhatsAppService(sender whatsapp.Sender) *WhatsAppService {
	return &WhatsAppService{sender: sender}
}

// ValidateAndCanonicalizeRecipient reduces a recipient to digits; the
// whatsmeow client builds the JID from the bare number.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// SendMessage sends a text message through the whatsmeow client.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	return s.sender.SendMessage(ctx, to, body)
}

// Start is a no-op: the whatsmeow client connects at construction.
func (s *WhatsAppService) Start(ctx context.Context) error {
	return nil
}

// Stop disconnects the underlying client when it is a real one.
func (s *WhatsAppService) Stop() error {
	if c, ok := s.sender.(*whatsapp.Client); ok {
		c.Disconnect()
	}
	slog.Debug("WhatsAppService stopped")
	return nil
}
