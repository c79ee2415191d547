package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
)

var ErrDisabled = errors.New("email delivery not configured")

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

type Result struct {
	MessageID  string
	PreviewURL string
}

type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
	Verify(ctx context.Context) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLS is one of mandatory, opportunistic or none.
	TLS string
	// PreviewURL is an optional template; {messageId} is replaced with the
	// escaped Message-ID of the sent mail (e.g. a Mailpit search link).
	PreviewURL string
}

// SMTPSender delivers HTML mail with attachments over SMTP.
type SMTPSender struct {
	cfg  SMTPConfig
	opts []mail.Option
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.From = strings.TrimSpace(cfg.From)
	if cfg.From == "" {
		cfg.From = "HomeLube Assist <noreply@homelube.local>"
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLS)),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	return &SMTPSender{cfg: cfg, opts: opts}
}

func tlsPolicy(raw string) mail.TLSPolicy {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mandatory":
		return mail.TLSMandatory
	case "none", "off", "false":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) (Result, error) {
	m, messageID, err := s.build(msg)
	if err != nil {
		return Result{}, err
	}
	client, err := mail.NewClient(s.cfg.Host, s.opts...)
	if err != nil {
		return Result{}, fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return Result{}, fmt.Errorf("smtp send: %w", err)
	}
	return Result{MessageID: messageID, PreviewURL: s.previewURL(messageID)}, nil
}

// Verify dials and authenticates without sending anything.
func (s *SMTPSender) Verify(ctx context.Context) error {
	client, err := mail.NewClient(s.cfg.Host, s.opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	return client.Close()
}

func (s *SMTPSender) build(msg Message) (*mail.Msg, string, error) {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, "", fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, "", fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	for _, a := range msg.Attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Content), opts...); err != nil {
			return nil, "", fmt.Errorf("attach %s: %w", a.Filename, err)
		}
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), senderDomain(s.cfg.From))
	m.SetGenHeader(mail.HeaderMessageID, messageID)
	return m, messageID, nil
}

func (s *SMTPSender) previewURL(messageID string) string {
	if s.cfg.PreviewURL == "" {
		return ""
	}
	return strings.ReplaceAll(s.cfg.PreviewURL, "{messageId}", url.QueryEscape(messageID))
}

func senderDomain(from string) string {
	from = strings.TrimSuffix(strings.TrimSpace(from), ">")
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		return from[i+1:]
	}
	return "localhost"
}

// DisabledSender stands in when SMTP is not configured. Every send fails
// with ErrDisabled so callers record the email as not sent.
type DisabledSender struct{}

func NewDisabledSender() *DisabledSender {
	return &DisabledSender{}
}

func (DisabledSender) Send(context.Context, Message) (Result, error) {
	return Result{}, ErrDisabled
}

func (DisabledSender) Verify(context.Context) error {
	return ErrDisabled
}
