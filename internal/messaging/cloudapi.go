package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultGraphBaseURL is the Meta Graph API base used for sending messages.
const DefaultGraphBaseURL = "https://graph.facebook.com/v17.0"

// maxBodyLength is the Cloud API limit on outbound text bodies. Longer
// texts are truncated with a trailing ellipsis.
const maxBodyLength = 4096

// CloudAPIOpts holds configuration options for the Cloud API service.
type CloudAPIOpts struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	HTTPClient    *http.Client
}

// CloudAPIOption defines a configuration option for the Cloud API service.
type CloudAPIOption func(*CloudAPIOpts)

// WithAccessToken sets the Graph API bearer token.
func WithAccessToken(token string) CloudAPIOption {
	return func(o *CloudAPIOpts) {
		o.AccessToken = token
	}
}

// WithPhoneNumberID sets the business phone number id messages are sent from.
func WithPhoneNumberID(id string) CloudAPIOption {
	return func(o *CloudAPIOpts) {
		o.PhoneNumberID = id
	}
}

// WithBaseURL overrides the Graph API base URL. Used in tests.
func WithBaseURL(url string) CloudAPIOption {
	return func(o *CloudAPIOpts) {
		o.BaseURL = url
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) CloudAPIOption {
	return func(o *CloudAPIOpts) {
		o.HTTPClient = c
	}
}

// CloudAPIService sends messages through the WhatsApp Cloud API.
type CloudAPIService struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
}

// NewCloudAPIService creates a Cloud API messaging service.
func NewCloudAPIService(opts ...CloudAPIOption) (*CloudAPIService, error) {
	var cfg CloudAPIOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token not set")
	}
	if cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("phone number id not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGraphBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	slog.Debug("NewCloudAPIService created", "baseURL", cfg.BaseURL, "phoneNumberID", cfg.PhoneNumberID)
	return &CloudAPIService{
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       cfg.BaseURL,
		httpClient:    cfg.HTTPClient,
	}, nil
}

// ValidateAndCanonicalizeRecipient reduces a recipient to digits and checks
// it is phone-number-shaped.
func (s *CloudAPIService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// sendMessageRequest is the Cloud API request body for a text message.
type sendMessageRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// SendMessage posts a text message to the Graph API. Bodies over the API
// limit are truncated on a rune boundary so multi-byte text stays valid
// UTF-8.
func (s *CloudAPIService) SendMessage(ctx context.Context, to string, body string) error {
	if runes := []rune(body); len(runes) > maxBodyLength {
		slog.Warn("CloudAPIService.SendMessage: truncating oversized body", "to", to, "runes", len(runes))
		body = string(runes[:maxBodyLength-3]) + "..."
	}

	reqBody := sendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("CloudAPIService.SendMessage: request failed", "error", err, "to", to)
		return fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		slog.Error("CloudAPIService.SendMessage: API error", "status", resp.StatusCode, "to", to, "body", string(respBody))
		return fmt.Errorf("send failed with status %d", resp.StatusCode)
	}

	slog.Info("CloudAPIService.SendMessage: message sent", "to", to, "length", len(body))
	return nil
}

// Start is a no-op: the Cloud API is stateless per request.
func (s *CloudAPIService) Start(ctx context.Context) error {
	return nil
}

// Stop is a no-op.
func (s *CloudAPIService) Stop() error {
	return nil
}
