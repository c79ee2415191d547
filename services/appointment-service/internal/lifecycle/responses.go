package lifecycle

import (
	"context"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/homelube/libs/otel"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/outbox"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/phone"
)

// Acknowledgment sources. They only appear on outbox events; the appointment
// itself keeps a single flag.
const (
	sourceCalendar = "calendar"
	sourceLink     = "link"
	sourceSms      = "sms"
)

type Outcome string

const (
	OutcomeConfirmed       Outcome = "confirmed"
	OutcomeDeclined        Outcome = "declined"
	OutcomeInvalidResponse Outcome = "invalid_response"
	OutcomeDuplicate       Outcome = "duplicate"
)

type InboundSms struct {
	From      string
	Text      string
	MessageID string
}

// RecordCalendarResponse stores the latest RSVP. Accepting the invite also
// acknowledges the appointment. Replays refresh RespondedAt.
func (s *Service) RecordCalendarResponse(ctx context.Context, trackingID string, status string) (Summary, error) {
	ctx, span := otelx.Tracer(tracerName).Start(ctx, "lifecycle.RecordCalendarResponse")
	defer span.End()

	appt, err := s.load(ctx, trackingID)
	if err != nil {
		return Summary{}, err
	}
	response, ok := model.ParseCalendarResponse(strings.TrimSpace(status))
	if !ok {
		return Summary{}, invalid("Invalid calendar response status")
	}

	now := s.clock()
	appt.SetCalendarStatus(response, now)
	evt, err := outbox.NewEvent(appt.ID, outbox.TypeAppointmentCalendarResponded, calendarPayload{
		TrackingID:  appt.TrackingID,
		Status:      string(response),
		RespondedAt: now,
	})
	if err != nil {
		return Summary{}, err
	}
	events := []outbox.Event{evt}
	if response == model.CalendarAccepted {
		appt.Acknowledge(now)
		ack, err := acknowledgedEvent(appt, sourceCalendar, now)
		if err != nil {
			return Summary{}, err
		}
		events = append(events, ack)
	}
	appt.UpdatedAt = now

	saved, err := s.store.Update(ctx, appt, events...)
	if err != nil {
		return Summary{}, storeError("record calendar response", err)
	}
	s.metrics.RecordTransition("calendar_" + string(response))
	s.logger.InfoContext(ctx, "calendar response recorded", "tracking_id", saved.TrackingID, "status", response)
	return summarize(saved), nil
}

// ConfirmByLink acknowledges regardless of the calendar invite state.
func (s *Service) ConfirmByLink(ctx context.Context, trackingID string) (Summary, error) {
	ctx, span := otelx.Tracer(tracerName).Start(ctx, "lifecycle.ConfirmByLink")
	defer span.End()

	appt, err := s.load(ctx, trackingID)
	if err != nil {
		return Summary{}, err
	}
	now := s.clock()
	appt.Acknowledge(now)
	appt.UpdatedAt = now
	evt, err := acknowledgedEvent(appt, sourceLink, now)
	if err != nil {
		return Summary{}, err
	}

	saved, err := s.store.Update(ctx, appt, evt)
	if err != nil {
		return Summary{}, storeError("confirm appointment", err)
	}
	s.metrics.RecordTransition("acknowledged")
	s.logger.InfoContext(ctx, "appointment confirmed by link", "tracking_id", saved.TrackingID)
	return summarize(saved), nil
}

// ProcessInboundSms applies a Y/N reply to the newest unacknowledged
// appointment for the sender. Replayed provider message ids are ignored.
func (s *Service) ProcessInboundSms(ctx context.Context, msg InboundSms) (Outcome, error) {
	ctx, span := otelx.Tracer(tracerName).Start(ctx, "lifecycle.ProcessInboundSms")
	defer span.End()

	from, err := phone.Normalize(msg.From)
	if err != nil {
		return "", invalid("Sender phone number is required")
	}

	messageID := strings.TrimSpace(msg.MessageID)
	if messageID != "" && s.inbox != nil {
		fresh, err := s.inbox.Record(ctx, messageID, "sms")
		if err != nil {
			return "", persistence("record inbound sms", err)
		}
		if !fresh {
			s.metrics.RecordInboundSms(string(OutcomeDuplicate))
			s.logger.InfoContext(ctx, "duplicate inbound sms ignored", "message_id", messageID)
			return OutcomeDuplicate, nil
		}
	}

	outcome, err := s.applySmsReply(ctx, from, msg.Text)
	if err != nil {
		s.release(ctx, messageID)
		return "", err
	}
	s.metrics.RecordInboundSms(string(outcome))
	return outcome, nil
}

func (s *Service) applySmsReply(ctx context.Context, from, text string) (Outcome, error) {
	appt, err := s.store.FindLatestUnacknowledgedByPhone(ctx, from)
	if err != nil {
		return "", storeError("find pending appointment", err)
	}

	now := s.clock()
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "Y", "YES":
		appt.Acknowledge(now)
		appt.SetCalendarStatus(model.CalendarAccepted, now)
		appt.UpdatedAt = now
		evt, err := acknowledgedEvent(appt, sourceSms, now)
		if err != nil {
			return "", err
		}
		saved, err := s.store.Update(ctx, appt, evt)
		if err != nil {
			return "", storeError("confirm appointment", err)
		}
		s.metrics.RecordTransition("acknowledged")
		s.logger.InfoContext(ctx, "appointment confirmed by sms", "tracking_id", saved.TrackingID)
		s.sendSMS(ctx, saved, "confirmed", s.templates.ConfirmedSMS(saved))
		return OutcomeConfirmed, nil

	case "N", "NO":
		// Only the invite status changes; Status stays as booked.
		appt.SetCalendarStatus(model.CalendarDeclined, now)
		appt.UpdatedAt = now
		evt, err := outbox.NewEvent(appt.ID, outbox.TypeAppointmentSmsDeclined, declinedPayload{
			TrackingID: appt.TrackingID,
			DeclinedAt: now,
		})
		if err != nil {
			return "", err
		}
		saved, err := s.store.Update(ctx, appt, evt)
		if err != nil {
			return "", storeError("decline appointment", err)
		}
		s.metrics.RecordTransition("sms_declined")
		s.logger.InfoContext(ctx, "appointment declined by sms", "tracking_id", saved.TrackingID)
		s.sendSMS(ctx, saved, "cancelled", s.templates.CancelledSMS())
		return OutcomeDeclined, nil

	default:
		s.logger.InfoContext(ctx, "unrecognised sms reply", "tracking_id", appt.TrackingID)
		s.sendSMS(ctx, appt, "invalid_response", s.templates.InvalidResponseSMS())
		return OutcomeInvalidResponse, nil
	}
}

// release lets a provider retry through after a failed attempt.
func (s *Service) release(ctx context.Context, messageID string) {
	if messageID == "" || s.inbox == nil {
		return
	}
	if err := s.inbox.Release(ctx, messageID); err != nil {
		s.logger.WarnContext(ctx, "release inbound sms failed", "message_id", messageID, "err", err)
	}
}

func acknowledgedEvent(appt model.Appointment, source string, at time.Time) (outbox.Event, error) {
	return outbox.NewEvent(appt.ID, outbox.TypeAppointmentAcknowledged, acknowledgedPayload{
		TrackingID:     appt.TrackingID,
		Source:         source,
		AcknowledgedAt: at,
	})
}

type acknowledgedPayload struct {
	TrackingID     string    `json:"trackingId"`
	Source         string    `json:"source"`
	AcknowledgedAt time.Time `json:"acknowledgedAt"`
}

type calendarPayload struct {
	TrackingID  string    `json:"trackingId"`
	Status      string    `json:"status"`
	RespondedAt time.Time `json:"respondedAt"`
}

type declinedPayload struct {
	TrackingID string    `json:"trackingId"`
	DeclinedAt time.Time `json:"declinedAt"`
}
