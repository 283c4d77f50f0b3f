package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bouajo/aicoach/internal/models"
	"github.com/bouajo/aicoach/internal/store"
)

// webhookHandler routes the verification handshake (GET) and message
// deliveries (POST).
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		s.verifyHandler(w, r)
	case http.MethodPost:
		s.receiveHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyHandler implements the Cloud API subscription handshake: echo the
// challenge only when the mode is "subscribe" and the token matches.
func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")
	slog.Debug("Server.verifyHandler: handshake attempt", "mode", mode)

	if challenge == "" {
		slog.Warn("Server.verifyHandler: missing challenge")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing hub.challenge"))
		return
	}
	if mode != "subscribe" || token != s.verifyToken {
		slog.Warn("Server.verifyHandler: verification failed", "mode", mode)
		writeJSONResponse(w, http.StatusForbidden, models.Error("Verification failed"))
		return
	}

	// The platform expects the raw challenge text back, not JSON.
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(challenge)); err != nil {
		slog.Error("Server.verifyHandler: failed to write challenge", "error", err)
	}
	slog.Info("Server.verifyHandler: webhook verified")
}

// receiveHandler processes a message delivery. Only a structurally invalid
// payload is surfaced as a client error; every per-message failure is
// swallowed and logged so the platform never retries a storm of messages it
// already delivered.
func (s *Server) receiveHandler(w http.ResponseWriter, r *http.Request) {
	var payload Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.receiveHandler: failed to decode payload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON payload"))
		return
	}
	if payload.Object != ExpectedObject {
		slog.Warn("Server.receiveHandler: unexpected payload object", "object", payload.Object)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unexpected payload object"))
		return
	}

	msgs := ExtractMessages(&payload)
	slog.Debug("Server.receiveHandler: payload decoded", "entries", len(payload.Entry), "messages", len(msgs))
	for _, m := range msgs {
		s.processMessage(r.Context(), m)
	}

	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Processed", map[string]int{"messages": len(msgs)}))
}

// processMessage runs one validated message through the conversation flow
// and sends the reply. Failures are logged, never surfaced: the state
// transition is not rolled back on send failure.
func (s *Server) processMessage(ctx context.Context, m IncomingMessage) {
	lock := s.senderLock(m.Sender)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.store.GetUserByPhone(ctx, m.Sender)
	if err != nil {
		slog.Error("Server.processMessage: failed to look up user", "error", err, "sender", m.Sender)
		return
	}
	if user == nil {
		user = &models.User{
			ID:          store.UserIDFromPhone(m.Sender),
			PhoneNumber: m.Sender,
			State:       models.StateNew,
			Language:    models.LanguageUndetermined,
		}
		// The user row must exist before the flow appends messages:
		// the messages table references users(id).
		if err := s.store.SaveUser(ctx, user); err != nil {
			slog.Error("Server.processMessage: failed to create user", "error", err, "sender", m.Sender)
			return
		}
		slog.Info("Server.processMessage: new user created", "sender", m.Sender, "userID", user.ID)
	}

	reply := s.flow.Transition(ctx, user, m.Text)
	if reply == "" {
		slog.Debug("Server.processMessage: no reply to send", "sender", m.Sender)
		return
	}

	to, err := s.msgService.ValidateAndCanonicalizeRecipient(m.Sender)
	if err != nil {
		slog.Error("Server.processMessage: invalid reply recipient", "error", err, "sender", m.Sender)
		return
	}
	if err := s.msgService.SendMessage(ctx, to, reply); err != nil {
		slog.Error("Server.processMessage: failed to send reply", "error", err, "sender", m.Sender)
	}
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}))
}
