// Package lifecycle owns appointment state. It reconciles three independent
// inputs (the booking, inbound SMS replies and calendar RSVPs) against the
// stored record and issues best-effort notifications after each write.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/email"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/outbox"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/sms"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/templates"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/tracking"
)

const tracerName = "homelube/lifecycle"

type Store interface {
	Insert(ctx context.Context, appt model.Appointment, events ...outbox.Event) (model.Appointment, error)
	FindByTrackingID(ctx context.Context, trackingID string) (model.Appointment, error)
	FindLatestUnacknowledgedByPhone(ctx context.Context, phone string) (model.Appointment, error)
	Update(ctx context.Context, appt model.Appointment, events ...outbox.Event) (model.Appointment, error)
	ListDueReminders(ctx context.Context, from, to time.Time, limit int) ([]model.Appointment, error)
	// The narrow writes below touch only their own fields, so they never
	// roll back a customer response that landed while a send was in flight.
	RecordEmailDelivery(ctx context.Context, id, messageID, previewURL string, at time.Time) error
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
}

type Inbox interface {
	Record(ctx context.Context, messageID string, source string) (bool, error)
	Release(ctx context.Context, messageID string) error
}

type InviteBuilder interface {
	Build(appt model.Appointment) ([]byte, error)
}

type Recorder interface {
	RecordNotification(channel, kind string, err error)
	RecordTransition(name string)
	RecordInboundSms(outcome string)
	RecordReminderSent()
}

type Deps struct {
	Store     Store
	Inbox     Inbox
	Email     email.Sender
	SMS       sms.Sender
	Invites   InviteBuilder
	Templates *templates.Renderer
	Metrics   Recorder
	Logger    *slog.Logger

	Now           func() time.Time
	NewTrackingID func() (string, error)
	NewID         func() string
}

type Service struct {
	store     Store
	inbox     Inbox
	email     email.Sender
	sms       sms.Sender
	invites   InviteBuilder
	templates *templates.Renderer
	metrics   Recorder
	logger    *slog.Logger

	now           func() time.Time
	newTrackingID func() (string, error)
	newID         func() string
}

func New(d Deps) *Service {
	s := &Service{
		store:         d.Store,
		inbox:         d.Inbox,
		email:         d.Email,
		sms:           d.SMS,
		invites:       d.Invites,
		templates:     d.Templates,
		metrics:       d.Metrics,
		logger:        d.Logger,
		now:           d.Now,
		newTrackingID: d.NewTrackingID,
		newID:         d.NewID,
	}
	if s.email == nil {
		s.email = email.NewDisabledSender()
	}
	if s.sms == nil {
		s.sms = sms.NewNoopSender()
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newTrackingID == nil {
		s.newTrackingID = tracking.New
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) load(ctx context.Context, trackingID string) (model.Appointment, error) {
	if trackingID == "" {
		return model.Appointment{}, ErrNotFound
	}
	appt, err := s.store.FindByTrackingID(ctx, trackingID)
	if err != nil {
		return model.Appointment{}, storeError("find appointment", err)
	}
	return appt, nil
}

// sendSMS never fails the caller. The result feeds delivery flags only.
func (s *Service) sendSMS(ctx context.Context, appt model.Appointment, kind, body string) bool {
	receipt, err := s.sms.Send(ctx, appt.CustomerPhone, body)
	s.metrics.RecordNotification("sms", kind, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "sms send failed",
			"tracking_id", appt.TrackingID,
			"kind", kind,
			"provider", s.sms.ProviderID(),
			"err", err,
		)
		return false
	}
	s.logger.InfoContext(ctx, "sms sent",
		"tracking_id", appt.TrackingID,
		"kind", kind,
		"provider", receipt.Provider,
		"message_id", receipt.MessageID,
	)
	return true
}

func (s *Service) logEmailFailure(ctx context.Context, appt model.Appointment, err error) {
	if errors.Is(err, email.ErrDisabled) {
		s.logger.WarnContext(ctx, "email skipped", "tracking_id", appt.TrackingID, "err", err)
		return
	}
	s.logger.ErrorContext(ctx, "email send failed", "tracking_id", appt.TrackingID, "err", err)
}

type nopRecorder struct{}

func (nopRecorder) RecordNotification(string, string, error) {}
func (nopRecorder) RecordTransition(string)                  {}
func (nopRecorder) RecordInboundSms(string)                  {}
func (nopRecorder) RecordReminderSent()                      {}
