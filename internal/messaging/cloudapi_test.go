package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewCloudAPIServiceRequiresCredentials(t *testing.T) {
	if _, err := NewCloudAPIService(WithPhoneNumberID("123")); err == nil {
		t.Error("NewCloudAPIService without access token should fail")
	}
	if _, err := NewCloudAPIService(WithAccessToken("tok")); err == nil {
		t.Error("NewCloudAPIService without phone number id should fail")
	}
}

func TestCloudAPISendMessage(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody sendMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"messages":[{"id":"wamid.test"}]}`))
	}))
	defer srv.Close()

	svc, err := NewCloudAPIService(
		WithAccessToken("test-token"),
		WithPhoneNumberID("1055512345"),
		WithBaseURL(srv.URL),
	)
	if err != nil {
		t.Fatalf("NewCloudAPIService failed: %v", err)
	}

	if err := svc.SendMessage(context.Background(), "33612345678", "hello there"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if gotPath != "/1055512345/messages" {
		t.Errorf("request path = %q, want /1055512345/messages", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody.MessagingProduct != "whatsapp" || gotBody.RecipientType != "individual" {
		t.Errorf("request envelope wrong: %+v", gotBody)
	}
	if gotBody.To != "33612345678" || gotBody.Type != "text" || gotBody.Text.Body != "hello there" {
		t.Errorf("message content wrong: %+v", gotBody)
	}
}

func TestCloudAPISendMessageTruncatesLongBody(t *testing.T) {
	var gotBody sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, err := NewCloudAPIService(
		WithAccessToken("tok"),
		WithPhoneNumberID("1"),
		WithBaseURL(srv.URL),
	)
	if err != nil {
		t.Fatalf("NewCloudAPIService failed: %v", err)
	}

	long := strings.Repeat("x", maxBodyLength+500)
	if err := svc.SendMessage(context.Background(), "33612345678", long); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(gotBody.Text.Body) != maxBodyLength {
		t.Errorf("sent body length = %d, want %d", len(gotBody.Text.Body), maxBodyLength)
	}
	if !strings.HasSuffix(gotBody.Text.Body, "...") {
		t.Error("truncated body should end with an ellipsis")
	}
}

func TestCloudAPISendMessageTruncatesOnRuneBoundary(t *testing.T) {
	var gotBody sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, err := NewCloudAPIService(
		WithAccessToken("tok"),
		WithPhoneNumberID("1"),
		WithBaseURL(srv.URL),
	)
	if err != nil {
		t.Fatalf("NewCloudAPIService failed: %v", err)
	}

	// Two bytes per rune: a byte-based cut would land mid-rune.
	long := strings.Repeat("é", maxBodyLength+10)
	if err := svc.SendMessage(context.Background(), "33612345678", long); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	got := gotBody.Text.Body
	if !utf8.ValidString(got) {
		t.Error("truncated body is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != maxBodyLength {
		t.Errorf("sent body rune count = %d, want %d", n, maxBodyLength)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated body should end with an ellipsis")
	}
}

func TestCloudAPISendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad token"}}`))
	}))
	defer srv.Close()

	svc, err := NewCloudAPIService(
		WithAccessToken("bad"),
		WithPhoneNumberID("1"),
		WithBaseURL(srv.URL),
	)
	if err != nil {
		t.Fatalf("NewCloudAPIService failed: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "33612345678", "hi"); err == nil {
		t.Error("SendMessage should surface a non-2xx response as an error")
	}
}

func TestValidateAndCanonicalizeRecipient(t *testing.T) {
	svc := &CloudAPIService{}
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+33 6 12 34 56 78", "33612345678", true},
		{"33612345678", "33612345678", true},
		{"12345", "", false},
		{"abcdefghij", "", false},
		{"1234567890123456", "", false},
	}
	for _, tc := range cases {
		got, err := svc.ValidateAndCanonicalizeRecipient(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) should fail", tc.in)
		}
	}
}
