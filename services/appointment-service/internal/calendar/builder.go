// Package calendar builds the ICS invite attached to confirmation emails.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/templates"
)

const (
	Filename    = "appointment.ics"
	ContentType = "text/calendar; charset=utf-8; method=REQUEST"

	eventDuration = time.Hour
	eventSummary  = "Oil Change Service"
)

type Builder struct {
	companyName string
	links       *templates.Renderer
	now         func() time.Time
}

func NewBuilder(links *templates.Renderer) *Builder {
	return &Builder{
		companyName: links.CompanyName(),
		links:       links,
		now:         time.Now,
	}
}

func (b *Builder) Build(appt model.Appointment) ([]byte, error) {
	if appt.TrackingID == "" {
		return nil, fmt.Errorf("calendar event requires a tracking id")
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodRequest)
	cal.SetProductId(fmt.Sprintf("-//%s//Appointments//EN", b.companyName))
	cal.SetName(b.companyName + " Appointment")

	start := appt.AppointmentDate.UTC()
	stamp := b.now().UTC()

	event := cal.AddEvent(appt.TrackingID + "@" + strings.ToLower(b.companyName))
	event.SetDtStampTime(stamp)
	event.SetCreatedTime(appt.CreatedAt.UTC())
	event.SetStartAt(start)
	event.SetEndAt(start.Add(eventDuration))
	event.SetSummary(eventSummary)
	event.SetDescription(description(appt))
	event.SetLocation(templates.Plain(appt.ServiceAddress.String()))
	if u := b.links.TrackingURL(appt.TrackingID); u != "" {
		event.SetURL(u)
	}
	event.SetOrganizer(appt.ServiceProviderEmail, ics.WithCN(b.companyName))
	event.AddAttendee(appt.CustomerEmail,
		ics.CalendarUserTypeIndividual,
		ics.ParticipationStatusNeedsAction,
		ics.ParticipationRoleReqParticipant,
		ics.WithRSVP(true),
	)
	event.AddAttendee(appt.ServiceProviderEmail,
		ics.CalendarUserTypeIndividual,
		ics.ParticipationStatusNeedsAction,
		ics.ParticipationRoleReqParticipant,
		ics.WithRSVP(true),
	)

	return []byte(cal.Serialize()), nil
}

func description(appt model.Appointment) string {
	lines := []string{"Vehicle: " + templates.Plain(appt.VehicleInfo.String())}
	if plate := templates.Plain(appt.VehicleInfo.LicensePlate); plate != "" {
		lines = append(lines, "License Plate: "+plate)
	}
	lines = append(lines,
		"Service Address: "+templates.Plain(appt.ServiceAddress.String()),
		"Urgency: "+string(appt.Urgency),
		"Tracking ID: "+appt.TrackingID,
	)
	return strings.Join(lines, "\n")
}
