package messaging

import (
	"context"

	"github.com/bouajo/aicoach/internal/twiliowhatsapp"
)

// TwilioService adapts a Twilio-backed client to the Service interface.
type TwilioService struct {
	sender twiliowhatsapp.Sender
}

// NewTwilioService creates a messaging service on top of a Twilio client.
func NewTwilioService(sender twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{sender: sender}
}

// ValidateAndCanonicalizeRecipient reduces a recipient to digits; the
// Twilio client adds the whatsapp: prefix itself.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// SendMessage sends a text message through the Twilio API.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	return s.sender.SendMessage(ctx, to, body)
}

// Start is a no-op: the Twilio API is stateless per request.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop is a no-op.
func (s *TwilioService) Stop() error {
	return nil
}
