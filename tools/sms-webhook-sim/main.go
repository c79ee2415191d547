package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/homelube/libs/auth"
	"github.com/md-rashed-zaman/homelube/libs/config"
)

type options struct {
	baseURL    string
	kind       string
	from       string
	text       string
	messageID  string
	trackingID string
	status     string
	secret     string
}

func main() {
	var opts options
	flag.StringVar(&opts.baseURL, "base-url", config.String("BASE_URL", "http://localhost:5000"), "appointment service base url")
	flag.StringVar(&opts.kind, "kind", "sms", "webhook to simulate: sms or calendar")
	flag.StringVar(&opts.from, "from", config.String("SIM_FROM", ""), "sender phone number (sms)")
	flag.StringVar(&opts.text, "text", "Y", "reply text (sms)")
	flag.StringVar(&opts.messageID, "message-id", "", "provider message id (sms); generated when empty")
	flag.StringVar(&opts.trackingID, "tracking-id", "", "appointment tracking id (calendar)")
	flag.StringVar(&opts.status, "status", "accepted", "accepted, declined or tentative (calendar)")
	flag.StringVar(&opts.secret, "secret", config.String("WEBHOOK_SECRET", ""), "webhook signing secret")
	flag.Parse()

	req, err := buildRequest(opts, time.Now().UTC())
	if err != nil {
		fatal(err.Error())
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	fmt.Printf("status=%d body=%s\n", resp.StatusCode, strings.TrimSpace(string(body)))
}

func buildRequest(opts options, now time.Time) (*http.Request, error) {
	base := strings.TrimRight(opts.baseURL, "/")

	var (
		target      string
		payload     []byte
		contentType string
	)
	switch opts.kind {
	case "sms":
		if strings.TrimSpace(opts.from) == "" {
			return nil, fmt.Errorf("-from is required")
		}
		id := opts.messageID
		if id == "" {
			id = fmt.Sprintf("sim-%d", now.UnixNano())
		}
		form := url.Values{
			"msisdn":    {opts.from},
			"text":      {opts.text},
			"messageId": {id},
		}
		target = base + "/api/sms/webhook"
		payload = []byte(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case "calendar":
		if strings.TrimSpace(opts.trackingID) == "" {
			return nil, fmt.Errorf("-tracking-id is required")
		}
		raw, err := json.Marshal(map[string]string{"status": opts.status})
		if err != nil {
			return nil, err
		}
		target = base + "/api/oil-changes/calendar-response/" + url.PathEscape(opts.trackingID)
		payload = raw
		contentType = "application/json"
	default:
		return nil, fmt.Errorf("unsupported kind: %s", opts.kind)
	}

	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if opts.secret != "" {
		req.Header.Set(auth.SignatureHeader, auth.SignPayload(payload, opts.secret))
	}
	return req, nil
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
