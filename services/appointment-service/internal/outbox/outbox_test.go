package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/md-rashed-zaman/homelube/libs/kafkax"
)

func TestNewEvent(t *testing.T) {
	evt, err := NewEvent("appt-1", TypeAppointmentBooked, map[string]string{"trackingId": "abc"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if evt.EventID == "" || evt.AggregateType != AggregateAppointment || evt.AggregateID != "appt-1" {
		t.Fatalf("unexpected envelope %+v", evt)
	}
	var payload map[string]string
	if err := json.Unmarshal(evt.Payload, &payload); err != nil || payload["trackingId"] != "abc" {
		t.Fatalf("unexpected payload %s (%v)", evt.Payload, err)
	}
}

func TestBuildMessageUsesEventTypeAsTopic(t *testing.T) {
	msg := buildMessage(context.Background(), Record{
		EventID:     "evt-1",
		AggregateID: "appt-1",
		EventType:   TypeAppointmentAcknowledged,
		Payload:     []byte(`{}`),
	})
	if msg.Topic != TypeAppointmentAcknowledged || string(msg.Key) != "appt-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != "evt-1" || meta.EventType != TypeAppointmentAcknowledged {
		t.Fatalf("unexpected meta %+v", meta)
	}
}
