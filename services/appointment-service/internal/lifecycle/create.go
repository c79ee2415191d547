package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/homelube/libs/otel"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/calendar"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/email"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/outbox"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/phone"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/storage"
)

const maxTrackingAttempts = 3

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type BookingRequest struct {
	VehicleInfo          model.VehicleInfo
	ServiceAddress       model.Address
	PreferredDate        string // YYYY-MM-DD
	PreferredTime        string // HH:MM, UTC
	Urgency              string
	CustomerEmail        string
	CustomerPhone        string
	ServiceProviderEmail string
}

// Delivery reports which best-effort notifications went out.
type Delivery struct {
	Email bool
	SMS   bool
}

type Booking struct {
	Appointment model.Appointment
	Delivery    Delivery
}

// CreateAppointment persists a pending appointment, then requests SMS
// confirmation and emails a calendar invite. Notification failures are
// reported through Delivery and never undo the booking.
func (s *Service) CreateAppointment(ctx context.Context, req BookingRequest) (Booking, error) {
	ctx, span := otelx.Tracer(tracerName).Start(ctx, "lifecycle.CreateAppointment")
	defer span.End()

	appt, err := s.newAppointment(req)
	if err != nil {
		return Booking{}, err
	}
	appt, err = s.insert(ctx, appt)
	if err != nil {
		return Booking{}, err
	}
	s.metrics.RecordTransition("booked")
	s.logger.InfoContext(ctx, "appointment booked",
		"tracking_id", appt.TrackingID,
		"appointment_date", appt.AppointmentDate.Format(time.RFC3339),
		"urgency", appt.Urgency,
	)

	var b Booking
	b.Delivery.SMS = s.sendSMS(ctx, appt, "confirmation_request", s.templates.ConfirmationRequestSMS(appt))
	b.Appointment, b.Delivery.Email = s.sendConfirmationEmail(ctx, appt)
	return b, nil
}

func (s *Service) newAppointment(req BookingRequest) (model.Appointment, error) {
	rawPhone := strings.TrimSpace(req.CustomerPhone)
	if rawPhone == "" {
		return model.Appointment{}, invalid("Phone number is required for appointment notifications")
	}
	if !phone.Valid(rawPhone) {
		return model.Appointment{}, invalid("Invalid phone number format. Please provide a valid phone number.")
	}
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return model.Appointment{}, invalid("Invalid phone number format. Please provide a valid phone number.")
	}

	customerEmail := strings.TrimSpace(req.CustomerEmail)
	if !emailPattern.MatchString(customerEmail) {
		return model.Appointment{}, invalid("A valid customer email address is required")
	}
	providerEmail := strings.TrimSpace(req.ServiceProviderEmail)
	if providerEmail == "" {
		return model.Appointment{}, invalid("Service provider email is required")
	}

	when, err := parseAppointmentDate(req.PreferredDate, req.PreferredTime)
	if err != nil {
		return model.Appointment{}, invalid("preferredDate and preferredTime must be YYYY-MM-DD and HH:MM")
	}

	urgency, ok := model.ParseUrgency(req.Urgency)
	if !ok {
		return model.Appointment{}, invalid("Urgency must be one of routine, urgent or emergency")
	}

	now := s.clock()
	return model.Appointment{
		ID:                   s.newID(),
		VehicleInfo:          trimVehicle(req.VehicleInfo),
		ServiceAddress:       trimAddress(req.ServiceAddress),
		AppointmentDate:      when,
		Urgency:              urgency,
		CustomerEmail:        customerEmail,
		CustomerPhone:        normalized,
		ServiceProviderEmail: providerEmail,
		Status:               model.StatusPending,
		Notifications: model.NotificationState{
			CalendarInvite: model.CalendarInvite{Status: model.CalendarPending},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func parseAppointmentDate(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, date+" "+clock, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable appointment date %q %q", date, clock)
}

func trimVehicle(v model.VehicleInfo) model.VehicleInfo {
	return model.VehicleInfo{
		Make:         strings.TrimSpace(v.Make),
		Model:        strings.TrimSpace(v.Model),
		Year:         strings.TrimSpace(v.Year),
		LicensePlate: strings.TrimSpace(v.LicensePlate),
	}
}

func trimAddress(a model.Address) model.Address {
	return model.Address{
		Street:  strings.TrimSpace(a.Street),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		ZipCode: strings.TrimSpace(a.ZipCode),
	}
}

// insert retries token generation when the store reports a collision.
func (s *Service) insert(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	for attempt := 1; ; attempt++ {
		token, err := s.newTrackingID()
		if err != nil {
			return model.Appointment{}, fmt.Errorf("generate tracking id: %w", err)
		}
		appt.TrackingID = token

		evt, err := outbox.NewEvent(appt.ID, outbox.TypeAppointmentBooked, bookedPayload{
			TrackingID:      appt.TrackingID,
			AppointmentDate: appt.AppointmentDate,
			Urgency:         string(appt.Urgency),
			CustomerEmail:   appt.CustomerEmail,
			CustomerPhone:   appt.CustomerPhone,
			Vehicle:         appt.VehicleInfo,
			ServiceAddress:  appt.ServiceAddress,
		})
		if err != nil {
			return model.Appointment{}, fmt.Errorf("build booked event: %w", err)
		}

		saved, err := s.store.Insert(ctx, appt, evt)
		if err == nil {
			return saved, nil
		}
		if errors.Is(err, storage.ErrDuplicateKey) && attempt < maxTrackingAttempts {
			s.logger.WarnContext(ctx, "tracking id collision, regenerating", "attempt", attempt)
			continue
		}
		return model.Appointment{}, persistence("insert appointment", err)
	}
}

func (s *Service) sendConfirmationEmail(ctx context.Context, appt model.Appointment) (model.Appointment, bool) {
	subject, body, err := s.templates.ConfirmationEmail(appt)
	if err != nil {
		s.metrics.RecordNotification("email", "confirmation", err)
		s.logger.ErrorContext(ctx, "render confirmation email failed", "tracking_id", appt.TrackingID, "err", err)
		return appt, false
	}
	invite, err := s.invites.Build(appt)
	if err != nil {
		s.metrics.RecordNotification("email", "confirmation", err)
		s.logger.ErrorContext(ctx, "build calendar invite failed", "tracking_id", appt.TrackingID, "err", err)
		return appt, false
	}

	res, err := s.email.Send(ctx, email.Message{
		To:      appt.CustomerEmail,
		Subject: subject,
		HTML:    body,
		Attachments: []email.Attachment{{
			Filename:    calendar.Filename,
			ContentType: calendar.ContentType,
			Content:     invite,
		}},
	})
	s.metrics.RecordNotification("email", "confirmation", err)
	if err != nil {
		s.logEmailFailure(ctx, appt, err)
		return appt, false
	}

	at := s.clock()
	if err := s.store.RecordEmailDelivery(ctx, appt.ID, res.MessageID, res.PreviewURL, at); err != nil {
		// The mail went out; only the bookkeeping is lost.
		s.logger.ErrorContext(ctx, "record email delivery failed", "tracking_id", appt.TrackingID, "err", err)
		return appt, true
	}
	s.logger.InfoContext(ctx, "confirmation email sent", "tracking_id", appt.TrackingID, "message_id", res.MessageID)

	fresh, err := s.store.FindByTrackingID(ctx, appt.TrackingID)
	if err != nil {
		appt.Notifications.EmailSent = true
		appt.Notifications.CalendarInvite.Sent = true
		appt.Notifications.MessageID = res.MessageID
		appt.Notifications.PreviewURL = res.PreviewURL
		appt.UpdatedAt = at
		return appt, true
	}
	return fresh, true
}

type bookedPayload struct {
	TrackingID      string            `json:"trackingId"`
	AppointmentDate time.Time         `json:"appointmentDate"`
	Urgency         string            `json:"urgency"`
	CustomerEmail   string            `json:"customerEmail"`
	CustomerPhone   string            `json:"customerPhone"`
	Vehicle         model.VehicleInfo `json:"vehicleInfo"`
	ServiceAddress  model.Address     `json:"serviceAddress"`
}
