package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bouajo/aicoach/internal/flow"
	"github.com/bouajo/aicoach/internal/genai"
	"github.com/bouajo/aicoach/internal/messaging"
	"github.com/bouajo/aicoach/internal/models"
	"github.com/bouajo/aicoach/internal/store"
	"github.com/bouajo/aicoach/internal/testutil"
)

const testVerifyToken = "shared-secret"

// newTestServer wires a server with in-memory dependencies and a mock
// generation client.
func newTestServer(responses ...string) (*Server, store.Store, *messaging.MockService) {
	st := store.NewInMemoryStore()
	mock := &genai.MockClient{Responses: responses}
	coachFlow := flow.NewCoachFlow(st, mock)
	msgService := &messaging.MockService{}
	srv := NewServer(st, coachFlow, msgService, WithVerifyToken(testVerifyToken))
	return srv, st, msgService
}

func TestVerifyHandshakeSuccess(t *testing.T) {
	srv, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=challenge-42", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "verification handshake")
	if rr.Body.String() != "challenge-42" {
		t.Errorf("body = %q, want the raw challenge", rr.Body.String())
	}
}

func TestVerifyHandshakeWrongToken(t *testing.T) {
	srv, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=challenge-42", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusForbidden, rr.Code, "handshake with wrong token")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestVerifyHandshakeWrongMode(t *testing.T) {
	srv, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=unsubscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=c", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusForbidden, rr.Code, "handshake with wrong mode")
}

func TestVerifyHandshakeMissingChallenge(t *testing.T) {
	srv, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token="+testVerifyToken, nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "handshake without challenge")
}

func postWebhook(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func TestReceiveMissingDiscriminator(t *testing.T) {
	srv, st, _ := newTestServer()
	rr := postWebhook(t, srv, `{"entry": []}`)

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "payload without discriminator")
	testutil.AssertJSONResponse(t, rr, "error")

	// Nothing was persisted.
	u, err := st.GetUserByPhone(context.Background(), "33612345678")
	if err != nil || u != nil {
		t.Errorf("user created from rejected payload: %v, %v", u, err)
	}
}

func TestReceiveWrongDiscriminator(t *testing.T) {
	srv, _, _ := newTestServer()
	rr := postWebhook(t, srv, `{"object": "instagram", "entry": []}`)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "payload with wrong discriminator")
}

func TestReceiveInvalidJSON(t *testing.T) {
	srv, _, _ := newTestServer()
	rr := postWebhook(t, srv, `{not json`)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "undecodable payload")
}

func TestReceiveStatusesOnly(t *testing.T) {
	srv, st, msgService := newTestServer()
	rr := postWebhook(t, srv, `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"statuses": [{"id": "wamid.1", "status": "read"}]
		}}]}]
	}`)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "status-only payload")
	testutil.AssertJSONResponse(t, rr, "ok")
	if len(msgService.Messages()) != 0 {
		t.Error("status-only payload triggered an outbound send")
	}
	if u, _ := st.GetUserByPhone(context.Background(), "33612345678"); u != nil {
		t.Error("status-only payload created a user")
	}
}

func TestReceiveNewUserOnboards(t *testing.T) {
	srv, st, msgService := newTestServer("en")
	rr := postWebhook(t, srv, textPayload("33612345678", "Hello, I need a coach"))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "first message")
	testutil.AssertJSONResponse(t, rr, "ok")

	user, err := st.GetUserByPhone(context.Background(), "33612345678")
	if err != nil || user == nil {
		t.Fatalf("user not created: %v, %v", user, err)
	}
	if user.State != models.StateAwaitingProfile {
		t.Errorf("state = %s, want %s", user.State, models.StateAwaitingProfile)
	}
	if user.ID != store.UserIDFromPhone("33612345678") {
		t.Errorf("user id = %q, want the deterministic id", user.ID)
	}

	msgs, err := st.RecentMessages(context.Background(), user.ID, 10)
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("persisted %d messages, want 2 (user + assistant)", len(msgs))
	}

	sent := msgService.Messages()
	if len(sent) != 1 {
		t.Fatalf("sent %d outbound messages, want 1", len(sent))
	}
	if sent[0].To != "33612345678" {
		t.Errorf("outbound recipient = %q", sent[0].To)
	}
}

func TestReceiveFirstContactWithEnforcedForeignKeys(t *testing.T) {
	// SQLite opened with foreign keys on checks the messages -> users
	// reference the same way Postgres always does, so the user row must
	// be persisted before the flow appends the first message.
	dsn := filepath.Join(t.TempDir(), "aicoach.db") + "?_foreign_keys=on"
	st, err := store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer st.Close()

	coachFlow := flow.NewCoachFlow(st, &genai.MockClient{Responses: []string{"en"}})
	msgService := &messaging.MockService{}
	srv := NewServer(st, coachFlow, msgService, WithVerifyToken(testVerifyToken))

	body := testutil.MustMarshalJSON(t, inboundTextPayload("33612345678", "Hello, I need a coach"))
	rr := postWebhook(t, srv, string(body))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "first contact")

	user, err := st.GetUserByPhone(context.Background(), "33612345678")
	if err != nil {
		t.Fatalf("GetUserByPhone failed: %v", err)
	}
	if user == nil {
		t.Fatal("first contact did not create a user")
	}
	if user.State != models.StateAwaitingProfile {
		t.Errorf("state = %s, want %s", user.State, models.StateAwaitingProfile)
	}

	msgs, err := st.RecentMessages(context.Background(), user.ID, 10)
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("persisted %d messages, want 2 (user + assistant)", len(msgs))
	}
	if len(msgService.Messages()) != 1 {
		t.Errorf("sent %d outbound messages, want 1", len(msgService.Messages()))
	}
}

func TestReceiveReplySentToCanonicalRecipient(t *testing.T) {
	srv, _, msgService := newTestServer("en")
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/webhook",
		inboundTextPayload("+33 6 12 34 56 78", "Hello coach"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "formatted sender")
	sent := msgService.Messages()
	if len(sent) != 1 {
		t.Fatalf("sent %d outbound messages, want 1", len(sent))
	}
	if sent[0].To != "33612345678" {
		t.Errorf("outbound recipient = %q, want digits-only canonical form", sent[0].To)
	}
}

func TestReceiveUncanonicalizableSenderNoSend(t *testing.T) {
	srv, _, msgService := newTestServer("en")
	rr := postWebhook(t, srv, textPayload("not-a-number", "hello"))

	// Still acknowledged; the reply is dropped when the sender cannot be
	// canonicalized into a phone number.
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "sender without digits")
	if len(msgService.Messages()) != 0 {
		t.Error("outbound send for a recipient that cannot be canonicalized")
	}
}

func TestReceiveShortSenderNoUser(t *testing.T) {
	srv, st, msgService := newTestServer("en")
	rr := postWebhook(t, srv, textPayload("12345", "hello"))

	// Still acknowledged; the bad message is just dropped.
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "short sender")
	if u, _ := st.GetUserByPhone(context.Background(), "12345"); u != nil {
		t.Error("user created for rejected sender")
	}
	if len(msgService.Messages()) != 0 {
		t.Error("outbound send for rejected sender")
	}
}

func TestReceiveRedeliveryNotDeduplicated(t *testing.T) {
	// Same payload delivered twice: no dedup layer, so two transitions and
	// four persisted messages.
	srv, st, msgService := newTestServer("coach reply")
	payload := textPayload("33612345678", "I want to get fit")

	user := &models.User{
		ID:          store.UserIDFromPhone("33612345678"),
		PhoneNumber: "33612345678",
		State:       models.StateActive,
		Language:    "en",
	}
	if err := st.SaveUser(context.Background(), user); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}

	postWebhook(t, srv, payload)
	postWebhook(t, srv, payload)

	msgs, err := st.RecentMessages(context.Background(), user.ID, 10)
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(msgs) != 4 {
		t.Errorf("persisted %d messages after redelivery, want 4", len(msgs))
	}
	if len(msgService.Messages()) != 2 {
		t.Errorf("sent %d outbound messages after redelivery, want 2", len(msgService.Messages()))
	}
}

func TestReceiveSendFailureStillAcknowledged(t *testing.T) {
	srv, st, msgService := newTestServer("en")
	msgService.SendErr = context.DeadlineExceeded

	rr := postWebhook(t, srv, textPayload("33612345678", "hello"))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "send failure")

	// The state transition is not rolled back.
	user, _ := st.GetUserByPhone(context.Background(), "33612345678")
	if user == nil || user.State != models.StateAwaitingProfile {
		t.Errorf("state transition rolled back on send failure: %+v", user)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health check")
	testutil.AssertJSONResponse(t, rr, "ok")
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodDelete, "/webhook", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "unsupported method")
}
