// Package genai wraps the OpenAI chat completion API for coaching replies.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultTimeout bounds a single chat completion call.
const DefaultTimeout = 30 * time.Second

// ClientInterface defines the generative operations used by the
// conversation flow. It allows mocking in tests.
type ClientInterface interface {
	// GeneratePrompt generates a response from a system prompt and a user
	// prompt.
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// GenerateWithMessages generates a response from a full message list,
	// including conversation history.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the chat completion model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewClient initializes a new GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not set via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		slog.Error("GenAI NewClient: API key not set")
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	slog.Debug("GenAI client initialized", "model", cfg.Model, "timeout", cfg.Timeout)
	return &Client{
		client:  openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// GeneratePrompt generates a response based on the provided system and user
// prompts.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	}
	return c.GenerateWithMessages(ctx, messages)
}

// GenerateWithMessages generates a response from a full message list.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("GenAI GenerateWithMessages failed", "error", err, "messageCount", len(messages))
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI GenerateWithMessages returned no choices")
		return "", fmt.Errorf("no choices returned")
	}

	result := resp.Choices[0].Message.Content
	slog.Debug("GenAI GenerateWithMessages succeeded",
		"messageCount", len(messages), "responseLength", len(result), "duration", time.Since(start))
	return result, nil
}
