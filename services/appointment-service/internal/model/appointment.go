package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// ParseUrgency defaults an empty value to routine.
func ParseUrgency(raw string) (Urgency, bool) {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(raw))); u {
	case "":
		return UrgencyRoutine, true
	case UrgencyRoutine, UrgencyUrgent, UrgencyEmergency:
		return u, true
	default:
		return "", false
	}
}

type CalendarStatus string

const (
	CalendarPending   CalendarStatus = "pending"
	CalendarAccepted  CalendarStatus = "accepted"
	CalendarDeclined  CalendarStatus = "declined"
	CalendarTentative CalendarStatus = "tentative"
)

// ParseCalendarResponse accepts only the statuses an invitee can reply with.
func ParseCalendarResponse(raw string) (CalendarStatus, bool) {
	switch s := CalendarStatus(raw); s {
	case CalendarAccepted, CalendarDeclined, CalendarTentative:
		return s, true
	default:
		return "", false
	}
}

type VehicleInfo struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         string `json:"year"`
	LicensePlate string `json:"licensePlate,omitempty"`
}

func (v VehicleInfo) String() string {
	return strings.Join(strings.Fields(fmt.Sprintf("%s %s %s", v.Make, v.Model, v.Year)), " ")
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

func (a Address) String() string {
	return fmt.Sprintf("%s, %s, %s %s", a.Street, a.City, a.State, a.ZipCode)
}

type CalendarInvite struct {
	Sent        bool
	Status      CalendarStatus
	RespondedAt *time.Time
}

// NotificationState is the delivery and response bookkeeping for an
// appointment. It moves independently of Appointment.Status.
type NotificationState struct {
	EmailSent      bool
	MessageID      string
	PreviewURL     string
	Acknowledged   bool
	AcknowledgedAt *time.Time
	CalendarInvite CalendarInvite
	ReminderSentAt *time.Time
}

type Appointment struct {
	ID                   string
	TrackingID           string
	VehicleInfo          VehicleInfo
	ServiceAddress       Address
	AppointmentDate      time.Time
	Urgency              Urgency
	CustomerEmail        string
	CustomerPhone        string
	ServiceProviderEmail string
	Status               Status
	Notifications        NotificationState
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Acknowledge is a monotonic OR: it never clears the flag. Repeated calls
// move AcknowledgedAt to the latest confirmation.
func (a *Appointment) Acknowledge(now time.Time) {
	a.Notifications.Acknowledged = true
	a.Notifications.AcknowledgedAt = &now
}

func (a *Appointment) SetCalendarStatus(status CalendarStatus, now time.Time) {
	a.Notifications.CalendarInvite.Status = status
	a.Notifications.CalendarInvite.RespondedAt = &now
}
