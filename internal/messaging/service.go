// Package messaging provides pluggable outbound message delivery for
// AICoach. The primary backend talks to the WhatsApp Cloud API; whatsmeow
// and Twilio backends are available for deployments without a Cloud API
// business account.
package messaging

import (
	"context"
	"fmt"

	"github.com/bouajo/aicoach/internal/models"
)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier. Each backend implements its own rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., session login).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error
}

// canonicalizePhone validates a phone-number-shaped recipient and reduces
// it to digits. Shared by backends that address recipients by number.
func canonicalizePhone(recipient string) (string, error) {
	digits := models.NormalizePhone(recipient)
	if len(digits) < 10 || len(digits) > 15 {
		return "", fmt.Errorf("invalid recipient %q: expected 10-15 digits, got %d", recipient, len(digits))
	}
	return digits, nil
}
