package lifecycle

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/model"
)

// Summary is returned to the party that just changed an appointment.
type Summary struct {
	TrackingID     string
	Date           time.Time
	Vehicle        string
	Address        model.Address
	CalendarStatus model.CalendarStatus
	Acknowledged   bool
}

func summarize(a model.Appointment) Summary {
	return Summary{
		TrackingID:     a.TrackingID,
		Date:           a.AppointmentDate,
		Vehicle:        a.VehicleInfo.String(),
		Address:        a.ServiceAddress,
		CalendarStatus: a.Notifications.CalendarInvite.Status,
		Acknowledged:   a.Notifications.Acknowledged,
	}
}

// StatusView is the read-only projection served to customers.
type StatusView struct {
	TrackingID    string
	Status        model.Status
	Notifications model.NotificationState
	Date          time.Time
	Vehicle       string
	Address       model.Address
}

func (s *Service) GetStatus(ctx context.Context, trackingID string) (StatusView, error) {
	appt, err := s.load(ctx, trackingID)
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{
		TrackingID:    appt.TrackingID,
		Status:        appt.Status,
		Notifications: appt.Notifications,
		Date:          appt.AppointmentDate,
		Vehicle:       appt.VehicleInfo.String(),
		Address:       appt.ServiceAddress,
	}, nil
}
