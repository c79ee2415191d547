package outbox

import (
	"encoding/json"

	"github.com/google/uuid"
)

const AggregateAppointment = "appointment"

const (
	TypeAppointmentBooked            = "appointment.booked.v1"
	TypeAppointmentAcknowledged      = "appointment.acknowledged.v1"
	TypeAppointmentCalendarResponded = "appointment.calendar_responded.v1"
	TypeAppointmentSmsDeclined       = "appointment.sms_declined.v1"
)

// Event is the envelope written to the outbox table in the same transaction
// as the state change. The Kafka topic name equals EventType.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

func NewEvent(aggregateID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:       uuid.NewString(),
		AggregateType: AggregateAppointment,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
