package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testMailer(baseURL string) *SendGridMailer {
	return &SendGridMailer{
		APIKey:  "test-key",
		From:    "alerts@example.com",
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func TestSend(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mail/send" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := testMailer(srv.URL)
	err := m.Send(context.Background(), "parent@example.com", "Daily summary", "plain body", "<p>html body</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	from := gotBody["from"].(map[string]any)
	if from["email"] != "alerts@example.com" {
		t.Errorf("unexpected from %v", from)
	}
	personalizations := gotBody["personalizations"].([]any)
	p := personalizations[0].(map[string]any)
	if p["subject"] != "Daily summary" {
		t.Errorf("unexpected subject %v", p["subject"])
	}
	content := gotBody["content"].([]any)
	if len(content) != 2 {
		t.Fatalf("expected plain and html parts, got %d", len(content))
	}
	if content[0].(map[string]any)["type"] != "text/plain" {
		t.Errorf("expected plain part first, got %v", content[0])
	}
}

func TestSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	m := testMailer(srv.URL)
	if err := m.Send(context.Background(), "parent@example.com", "s", "p", "h"); err == nil {
		t.Error("expected error for 401 response")
	}
}

func TestSendUnconfigured(t *testing.T) {
	m := &SendGridMailer{client: &http.Client{}}
	if m.IsConfigured() {
		t.Error("expected unconfigured")
	}
	if err := m.Send(context.Background(), "parent@example.com", "s", "p", "h"); err == nil {
		t.Error("expected error when unconfigured")
	}
}

func TestSendMissingRecipient(t *testing.T) {
	m := testMailer("http://unused")
	if err := m.Send(context.Background(), "", "s", "p", "h"); err == nil {
		t.Error("expected error for empty recipient")
	}
}
