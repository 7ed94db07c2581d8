// Package notify delivers email to caregivers. Delivery is best-effort:
// a failed send degrades to a flag on the response, it never fails the
// classification that triggered it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Mailer sends one message. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, to, subject, plainText, html string) error
	IsConfigured() bool
}

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	APIKey  string
	From    string
	BaseURL string
	client  *http.Client
}

// NewSendGridMailer creates a mailer reading its key from the environment.
func NewSendGridMailer(apiKeyEnv, from string) *SendGridMailer {
	return &SendGridMailer{
		APIKey:  os.Getenv(apiKeyEnv),
		From:    from,
		BaseURL: "https://api.sendgrid.com/v3",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured checks that both the API key and sender address are set.
func (m *SendGridMailer) IsConfigured() bool {
	return m.APIKey != "" && m.From != ""
}

// Send delivers one message with plain-text and HTML bodies.
func (m *SendGridMailer) Send(ctx context.Context, to, subject, plainText, html string) error {
	if !m.IsConfigured() {
		return fmt.Errorf("sendgrid not configured")
	}
	if to == "" {
		return fmt.Errorf("no recipient address")
	}

	payload := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": to}}, "subject": subject},
		},
		"from": map[string]string{"email": m.From},
		"content": []map[string]string{
			{"type": "text/plain", "value": plainText},
			{"type": "text/html", "value": html},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.BaseURL+"/mail/send", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
