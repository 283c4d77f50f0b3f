package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bouajo/aicoach/internal/flow"
	"github.com/bouajo/aicoach/internal/messaging"
	"github.com/bouajo/aicoach/internal/store"
)

// DefaultAddr is the default listen address for the webhook server.
const DefaultAddr = ":8080"

// Opts holds configuration options for the webhook server.
type Opts struct {
	Addr        string
	VerifyToken string
}

// Option defines a configuration option for the webhook server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithVerifyToken sets the shared secret for the verification handshake.
func WithVerifyToken(token string) Option {
	return func(o *Opts) {
		o.VerifyToken = token
	}
}

// Server handles the WhatsApp webhook endpoints. Messages within one
// delivery are processed sequentially; deliveries for different users may
// run concurrently, serialized per sender.
type Server struct {
	addr        string
	verifyToken string
	store       store.Store
	flow        *flow.CoachFlow
	msgService  messaging.Service

	mu      sync.Mutex
	senders map[string]*sync.Mutex
}

// NewServer creates a webhook server wired to a store, a conversation flow,
// and an outbound messaging service.
func NewServer(st store.Store, coachFlow *flow.CoachFlow, msgService messaging.Service, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewServer created", "addr", cfg.Addr, "verifyTokenSet", cfg.VerifyToken != "")
	return &Server{
		addr:        cfg.Addr,
		verifyToken: cfg.VerifyToken,
		store:       st,
		flow:        coachFlow,
		msgService:  msgService,
		senders:     make(map[string]*sync.Mutex),
	}
}

// Handler returns the HTTP handler with all routes registered. Split from
// Run so tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is canceled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: webhook server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// senderLock returns the mutex serializing transitions for one sender.
func (s *Server) senderLock(sender string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.senders[sender]
	if !ok {
		m = &sync.Mutex{}
		s.senders[sender] = m
	}
	return m
}
