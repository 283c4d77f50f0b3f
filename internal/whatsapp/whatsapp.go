// Package whatsapp wraps the whatsmeow client for deployments that pair
// AICoach with a personal WhatsApp account instead of the Cloud API.
//
// It handles session storage, the QR login flow, and message sending.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bouajo/aicoach/internal/store"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
)

const (
	// DefaultSessionDBPath is the default SQLite path for the whatsmeow
	// session database.
	DefaultSessionDBPath = "/var/lib/aicoach/whatsmeow.db"
	// JIDSuffix is the WhatsApp JID suffix for regular users.
	JIDSuffix = "s.whatsapp.net"
)

// Sender sends WhatsApp messages. Implemented by Client and MockClient.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the whatsmeow client.
type Opts struct {
	SessionDSN  string // whatsmeow session database connection string
	QRPath      string // path to write the login QR code to
	NumericCode bool   // print a numeric pairing code instead of a QR code
}

// Option defines a configuration option for the whatsmeow client.
type Option func(*Opts)

// WithSessionDSN sets the whatsmeow session database connection string.
func WithSessionDSN(dsn string) Option {
	return func(o *Opts) {
		o.SessionDSN = dsn
	}
}

// WithQRCodeOutput writes the login QR code to the given path instead of
// stdout.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) {
		o.QRPath = path
	}
}

// WithNumericCode prints a numeric pairing code instead of a QR code.
func WithNumericCode() Option {
	return func(o *Opts) {
		o.NumericCode = true
	}
}

// Client wraps a connected whatsmeow client.
type Client struct {
	waClient *whatsmeow.Client
}

// NewClient initializes the session store, logs in (QR flow on first run),
// and connects.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := cfg.SessionDSN
	if dsn == "" {
		dsn = DefaultSessionDBPath
		slog.Debug("whatsapp.NewClient: no session DSN provided, using default", "path", dsn)
	}

	driver := "sqlite3"
	if store.DetectDSNType(dsn) == "postgres" {
		driver = "postgres"
	} else if !strings.Contains(dsn, "foreign_keys") {
		// whatsmeow recommends foreign keys on its SQLite session store.
		slog.Warn("whatsapp.NewClient: session SQLite DSN has no foreign_keys flag",
			"dsn_example", "file:"+dsn+"?_foreign_keys=on")
	}

	ctx := context.Background()
	container, err := sqlstore.New(ctx, driver, dsn, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		slog.Error("whatsapp.NewClient: failed to initialize session store", "error", err)
		return nil, fmt.Errorf("failed to initialize whatsmeow session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		slog.Error("whatsapp.NewClient: failed to get device", "error", err)
		return nil, fmt.Errorf("failed to get device from session store: %w", err)
	}

	waClient := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))
	if waClient.Store.ID == nil {
		if err := login(waClient, cfg); err != nil {
			return nil, err
		}
	} else {
		slog.Debug("whatsapp.NewClient: already logged in, connecting")
		if err := waClient.Connect(); err != nil {
			slog.Error("whatsapp.NewClient: failed to connect", "error", err)
			return nil, fmt.Errorf("failed to connect to WhatsApp: %w", err)
		}
	}

	slog.Info("whatsapp.NewClient: connected")
	return &Client{waClient: waClient}, nil
}

// login runs the first-time pairing flow, writing a QR code or numeric code
// to the configured output.
func login(waClient *whatsmeow.Client, cfg Opts) error {
	slog.Info("whatsapp.login: login required, starting pairing flow")
	qrChan, _ := waClient.GetQRChannel(context.Background())
	if err := waClient.Connect(); err != nil {
		slog.Error("whatsapp.login: failed to connect during login", "error", err)
		return fmt.Errorf("failed to connect during login: %w", err)
	}

	writer := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			slog.Error("whatsapp.login: failed to create QR file", "error", err)
			return fmt.Errorf("failed to create QR file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	for evt := range qrChan {
		if evt.Event == "code" {
			if cfg.NumericCode {
				fmt.Fprintln(writer, evt.Code)
			} else {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
			}
		} else {
			slog.Debug("whatsapp.login: login event", "event", evt.Event)
		}
	}
	return nil
}

// SendMessage sends a text message to the given phone number.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if c.waClient == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}
	if to == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if body == "" {
		return fmt.Errorf("message body cannot be empty")
	}

	jid := types.NewJID(to, JIDSuffix)
	msg := &waE2E.Message{Conversation: &body}
	if _, err := c.waClient.SendMessage(ctx, jid, msg); err != nil {
		slog.Error("whatsapp.SendMessage: failed", "error", err, "to", to)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("whatsapp.SendMessage: sent", "to", to, "bodyLength", len(body))
	return nil
}

// Disconnect closes the connection to WhatsApp.
func (c *Client) Disconnect() {
	if c.waClient != nil {
		c.waClient.Disconnect()
	}
}

// MockClient is a no-op Sender for tests.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	return nil
}
