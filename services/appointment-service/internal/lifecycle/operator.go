package lifecycle

import (
	"context"
	"strings"

	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/phone"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/sms"
)

// ResendConfirmationRequest repeats the "reply Y or N" text. Unlike the
// booking flow the send is the whole operation, so its failure is returned.
func (s *Service) ResendConfirmationRequest(ctx context.Context, trackingID string) error {
	appt, err := s.load(ctx, trackingID)
	if err != nil {
		return err
	}
	if !s.sendSMS(ctx, appt, "confirmation_request", s.templates.ConfirmationRequestSMS(appt)) {
		return gateway("resend confirmation request", errSmsNotDelivered)
	}
	return nil
}

func (s *Service) VerifyEmailConfig(ctx context.Context) error {
	if err := s.email.Verify(ctx); err != nil {
		return gateway("verify email config", err)
	}
	return nil
}

func (s *Service) SendTestSms(ctx context.Context, to, text string) (sms.Receipt, error) {
	to = strings.TrimSpace(to)
	text = strings.TrimSpace(text)
	if to == "" || text == "" {
		return sms.Receipt{}, invalid("Phone number and message are required")
	}
	if !phone.Valid(to) {
		return sms.Receipt{}, invalid("Invalid phone number format. Please provide a valid phone number.")
	}
	normalized, err := phone.Normalize(to)
	if err != nil {
		return sms.Receipt{}, invalid("Invalid phone number format. Please provide a valid phone number.")
	}

	receipt, err := s.sms.Send(ctx, normalized, text)
	s.metrics.RecordNotification("sms", "test", err)
	if err != nil {
		s.logger.ErrorContext(ctx, "test sms failed", "provider", s.sms.ProviderID(), "err", err)
		return sms.Receipt{}, gateway("send test sms", err)
	}
	s.logger.InfoContext(ctx, "test sms sent", "provider", receipt.Provider, "message_id", receipt.MessageID)
	return receipt, nil
}
