package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultVonageBaseURL = "https://rest.nexmo.com"

type VonageConfig struct {
	APIKey    string
	APISecret string
	From      string
	BaseURL   string
}

// VonageSender uses the Vonage SMS REST API.
type VonageSender struct {
	cfg  VonageConfig
	http *http.Client
}

func NewVonageSender(cfg VonageConfig) *VonageSender {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultVonageBaseURL
	}
	return &VonageSender{cfg: cfg, http: newHTTPClient()}
}

func (s *VonageSender) ProviderID() string {
	return "vonage"
}

type vonageResponse struct {
	MessageCount string `json:"message-count"`
	Messages     []struct {
		To        string `json:"to"`
		MessageID string `json:"message-id"`
		Status    string `json:"status"`
		ErrorText string `json:"error-text"`
	} `json:"messages"`
}

func (s *VonageSender) Send(ctx context.Context, to string, body string) (Receipt, error) {
	form := url.Values{}
	form.Set("api_key", s.cfg.APIKey)
	form.Set("api_secret", s.cfg.APISecret)
	form.Set("from", strings.TrimPrefix(s.cfg.From, "+"))
	// Vonage expects the number without the leading plus.
	form.Set("to", strings.TrimPrefix(to, "+"))
	form.Set("text", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/sms/json", strings.NewReader(form.Encode()))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return Receipt{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Receipt{}, fmt.Errorf("vonage returned %d", resp.StatusCode)
	}

	var out vonageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Receipt{}, fmt.Errorf("decode vonage response: %w", err)
	}
	if len(out.Messages) == 0 {
		return Receipt{}, fmt.Errorf("vonage returned no messages")
	}
	msg := out.Messages[0]
	if msg.Status != "0" {
		return Receipt{}, fmt.Errorf("vonage rejected message: status=%s %s", msg.Status, msg.ErrorText)
	}
	return Receipt{Provider: s.ProviderID(), MessageID: msg.MessageID}, nil
}
