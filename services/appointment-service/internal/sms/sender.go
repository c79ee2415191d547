package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Receipt identifies an accepted outbound message at the provider.
type Receipt struct {
	Provider  string
	MessageID string
}

type Sender interface {
	Send(ctx context.Context, to string, body string) (Receipt, error)
	ProviderID() string
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// WebhookSender relays messages to an HTTP endpoint that owns the real
// carrier integration.
type WebhookSender struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookSender(url string, token string) *WebhookSender {
	return &WebhookSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http:  newHTTPClient(),
	}
}

func (s *WebhookSender) ProviderID() string {
	return "sms-webhook"
}

func (s *WebhookSender) Send(ctx context.Context, to string, body string) (Receipt, error) {
	if s.url == "" {
		return Receipt{}, fmt.Errorf("sms webhook url not configured")
	}
	raw, err := json.Marshal(map[string]string{
		"to":   to,
		"body": body,
	})
	if err != nil {
		return Receipt{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return Receipt{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Receipt{}, fmt.Errorf("sms webhook returned %d", resp.StatusCode)
	}

	var out struct {
		ID string `json:"id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return Receipt{Provider: s.ProviderID(), MessageID: out.ID}, nil
}

// NoopSender is used when no SMS provider is configured.
type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "sms-noop"
}

func (s *NoopSender) Send(_ context.Context, _ string, _ string) (Receipt, error) {
	return Receipt{Provider: s.ProviderID()}, nil
}
