// Package templates renders customer-facing email and SMS content.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/model"
)

//go:embed layouts/*.html
var layoutsFS embed.FS

const ConfirmationSubject = "Oil Change Appointment Confirmation"

var strict = bluemonday.StrictPolicy()

// Plain strips any markup from customer supplied text before it is placed in
// an SMS or calendar file. Entities are decoded back to plain characters.
func Plain(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

type Config struct {
	CompanyName   string
	SupportPhone  string
	FrontendURL   string
	PublicBaseURL string
	// Location controls how appointment times are printed. Defaults to UTC.
	Location *time.Location
}

type Renderer struct {
	cfg   Config
	email *template.Template
}

func New(cfg Config) (*Renderer, error) {
	if cfg.CompanyName == "" {
		cfg.CompanyName = "HomeLube"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	tmpl, err := template.ParseFS(layoutsFS, "layouts/confirmation.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Renderer{cfg: cfg, email: tmpl}, nil
}

func (r *Renderer) CompanyName() string {
	return r.cfg.CompanyName
}

// TrackingURL is empty when no frontend is configured.
func (r *Renderer) TrackingURL(trackingID string) string {
	if r.cfg.FrontendURL == "" {
		return ""
	}
	return r.cfg.FrontendURL + "/appointment/" + trackingID
}

func (r *Renderer) ConfirmURL(trackingID string) string {
	if r.cfg.PublicBaseURL == "" {
		return ""
	}
	return r.cfg.PublicBaseURL + "/api/oil-changes/confirm/" + trackingID
}

func (r *Renderer) When(t time.Time) string {
	return t.In(r.cfg.Location).Format("Monday, January 2, 2006 at 3:04 PM MST")
}

type confirmationData struct {
	Company      string
	Vehicle      string
	LicensePlate string
	When         string
	Street       string
	CityLine     string
	Urgency      string
	TrackingID   string
	TrackingURL  string
	ConfirmURL   string
	SupportPhone string
	Year         int
}

func (r *Renderer) ConfirmationEmail(appt model.Appointment) (subject string, body string, err error) {
	addr := appt.ServiceAddress
	data := confirmationData{
		Company:      r.cfg.CompanyName,
		Vehicle:      appt.VehicleInfo.String(),
		LicensePlate: appt.VehicleInfo.LicensePlate,
		When:         r.When(appt.AppointmentDate),
		Street:       addr.Street,
		CityLine:     fmt.Sprintf("%s, %s %s", addr.City, addr.State, addr.ZipCode),
		Urgency:      string(appt.Urgency),
		TrackingID:   appt.TrackingID,
		TrackingURL:  r.TrackingURL(appt.TrackingID),
		ConfirmURL:   r.ConfirmURL(appt.TrackingID),
		SupportPhone: r.cfg.SupportPhone,
		Year:         appt.CreatedAt.Year(),
	}
	var buf bytes.Buffer
	if err := r.email.ExecuteTemplate(&buf, "confirmation.html", data); err != nil {
		return "", "", err
	}
	return ConfirmationSubject, buf.String(), nil
}

func (r *Renderer) ConfirmationRequestSMS(appt model.Appointment) string {
	return fmt.Sprintf("Your oil change appointment is scheduled for %s. Please reply with Y to confirm or N to cancel.",
		r.When(appt.AppointmentDate))
}

func (r *Renderer) ConfirmedSMS(appt model.Appointment) string {
	msg := fmt.Sprintf("Thank you for confirming your appointment! We'll send you a reminder 24 hours before your scheduled time (%s).",
		r.When(appt.AppointmentDate))
	if r.cfg.SupportPhone != "" {
		msg += fmt.Sprintf(" If you need to make any changes, please call us at %s.", r.cfg.SupportPhone)
	}
	return msg
}

func (r *Renderer) CancelledSMS() string {
	return "Your appointment has been cancelled. Please call us to reschedule at your convenience."
}

func (r *Renderer) InvalidResponseSMS() string {
	return "Invalid response. Please reply with Y to confirm or N to cancel."
}

func (r *Renderer) ReminderSMS(appt model.Appointment) string {
	return fmt.Sprintf("Reminder from %s: your oil change for the %s is scheduled for %s at %s.",
		r.cfg.CompanyName,
		Plain(appt.VehicleInfo.String()),
		r.When(appt.AppointmentDate),
		Plain(appt.ServiceAddress.String()),
	)
}
