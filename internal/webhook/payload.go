// Package webhook implements the WhatsApp Cloud API webhook endpoint:
// payload validation, the verification handshake, and dispatch of incoming
// messages to the conversation flow.
package webhook

import (
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// ExpectedObject is the top-level discriminator of a Cloud API webhook
// payload.
const ExpectedObject = "whatsapp_business_account"

// Validation bounds for incoming messages.
const (
	// MinSenderLength is the minimum length of a phone-number-shaped
	// sender id.
	MinSenderLength = 10
	// MaxTextLength is the upper bound on accepted message bodies,
	// counted in runes.
	MaxTextLength = 4096
)

// Payload is the outer shape of a Cloud API webhook delivery.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one account-level entry in a webhook delivery.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one change notification inside an entry.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the actual messages or status callbacks. Messages are kept
// raw so one malformed message does not fail its siblings.
type Value struct {
	MessagingProduct string            `json:"messaging_product"`
	Messages         []json.RawMessage `json:"messages"`
	Statuses         []json.RawMessage `json:"statuses"`
}

// Message is a single inbound message once decoded.
type Message struct {
	From      string    `json:"from"`
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *TextBody `json:"text"`
}

// TextBody is the body of a text-type message.
type TextBody struct {
	Body string `json:"body"`
}

// IncomingMessage is a validated (sender, text) pair extracted from a
// payload.
type IncomingMessage struct {
	Sender string
	Text   string
}

// ExtractMessages walks every entry/change of a payload and returns all
// well-formed text messages. Validation rules are applied per message, in
// order, first failure wins and is logged; a failing message is dropped
// while its siblings continue. Status-only deliveries yield an empty slice,
// which is not an error.
func ExtractMessages(p *Payload) []IncomingMessage {
	var out []IncomingMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, raw := range change.Value.Messages {
				var m Message
				if err := json.Unmarshal(raw, &m); err != nil {
					slog.Warn("webhook.ExtractMessages: rejected undecodable message", "error", err)
					continue
				}
				if len(m.From) < MinSenderLength {
					slog.Warn("webhook.ExtractMessages: rejected message with bad sender id", "senderLength", len(m.From))
					continue
				}
				if m.Type != "text" {
					slog.Debug("webhook.ExtractMessages: skipped non-text message", "type", m.Type, "sender", m.From)
					continue
				}
				if m.Text == nil {
					slog.Warn("webhook.ExtractMessages: skipped text message without body", "sender", m.From)
					continue
				}
				body := strings.TrimSpace(m.Text.Body)
				if body == "" {
					slog.Debug("webhook.ExtractMessages: skipped empty message", "sender", m.From)
					continue
				}
				if utf8.RuneCountInString(body) > MaxTextLength {
					slog.Warn("webhook.ExtractMessages: rejected oversized message", "sender", m.From, "runes", utf8.RuneCountInString(body))
					continue
				}
				out = append(out, IncomingMessage{Sender: m.From, Text: body})
			}
		}
	}
	return out
}
