package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/outbox"
)

// MemoryStore keeps appointments in process. It backs STORE_DRIVER=memory
// and the tests, and applies the same acknowledgment rule as the SQL store.
type MemoryStore struct {
	mu         sync.Mutex
	byID       map[string]*memoryRow
	byTracking map[string]string
	events     []outbox.Event
	seq        int64
	writes     int
}

type memoryRow struct {
	appt model.Appointment
	seq  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       map[string]*memoryRow{},
		byTracking: map[string]string{},
	}
}

func (s *MemoryStore) Insert(_ context.Context, appt model.Appointment, events ...outbox.Event) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byTracking[appt.TrackingID]; ok {
		return model.Appointment{}, ErrDuplicateKey
	}
	if _, ok := s.byID[appt.ID]; ok {
		return model.Appointment{}, ErrDuplicateKey
	}
	s.seq++
	s.byID[appt.ID] = &memoryRow{appt: appt, seq: s.seq}
	s.byTracking[appt.TrackingID] = appt.ID
	s.events = append(s.events, events...)
	s.writes++
	return appt, nil
}

func (s *MemoryStore) FindByTrackingID(_ context.Context, trackingID string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byTracking[trackingID]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return s.byID[id].appt, nil
}

func (s *MemoryStore) FindLatestUnacknowledgedByPhone(_ context.Context, phone string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *memoryRow
	for _, row := range s.byID {
		if row.appt.CustomerPhone != phone || row.appt.Notifications.Acknowledged {
			continue
		}
		if best == nil || newer(row, best) {
			best = row
		}
	}
	if best == nil {
		return model.Appointment{}, ErrNotFound
	}
	return best.appt, nil
}

func newer(a, b *memoryRow) bool {
	if a.appt.CreatedAt.Equal(b.appt.CreatedAt) {
		return a.seq > b.seq
	}
	return a.appt.CreatedAt.After(b.appt.CreatedAt)
}

func (s *MemoryStore) Update(_ context.Context, appt model.Appointment, events ...outbox.Event) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[appt.ID]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	// Only the mutable fields are written back.
	cur := row.appt
	cur.Status = appt.Status
	n := appt.Notifications
	if !n.Acknowledged && cur.Notifications.Acknowledged {
		n.Acknowledged = true
		n.AcknowledgedAt = cur.Notifications.AcknowledgedAt
	}
	cur.Notifications = n
	cur.UpdatedAt = appt.UpdatedAt
	row.appt = cur
	s.events = append(s.events, events...)
	s.writes++
	return cur, nil
}

// RecordEmailDelivery stamps the confirmation email fields and nothing else.
func (s *MemoryStore) RecordEmailDelivery(_ context.Context, id, messageID, previewURL string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	n := &row.appt.Notifications
	n.EmailSent = true
	n.CalendarInvite.Sent = true
	n.MessageID = messageID
	n.PreviewURL = previewURL
	row.appt.UpdatedAt = at
	s.writes++
	return nil
}

func (s *MemoryStore) MarkReminderSent(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	stamp := at
	row.appt.Notifications.ReminderSentAt = &stamp
	row.appt.UpdatedAt = at
	s.writes++
	return nil
}

func (s *MemoryStore) ListDueReminders(_ context.Context, from, to time.Time, limit int) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Appointment
	for _, row := range s.byID {
		a := row.appt
		if !dueForReminder(a, from, to) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AppointmentDate.Before(out[j].AppointmentDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func dueForReminder(a model.Appointment, from, to time.Time) bool {
	n := a.Notifications
	return n.Acknowledged &&
		n.ReminderSentAt == nil &&
		a.Status != model.StatusCancelled &&
		n.CalendarInvite.Status != model.CalendarDeclined &&
		a.AppointmentDate.After(from) &&
		!a.AppointmentDate.After(to)
}

// Events returns every outbox event written so far.
func (s *MemoryStore) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Event(nil), s.events...)
}

// Writes counts successful inserts and updates, narrow ones included.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
