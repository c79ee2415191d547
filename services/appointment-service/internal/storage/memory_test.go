package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/outbox"
)

func sample(id, tracking, phone string, created time.Time) model.Appointment {
	return model.Appointment{
		ID:              id,
		TrackingID:      tracking,
		CustomerPhone:   phone,
		AppointmentDate: created.Add(48 * time.Hour),
		Status:          model.StatusPending,
		Notifications: model.NotificationState{
			CalendarInvite: model.CalendarInvite{Status: model.CalendarPending},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemoryInsertRejectsDuplicateTracking(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	evt := outbox.Event{EventType: outbox.TypeAppointmentBooked}
	if _, err := s.Insert(ctx, sample("a", "t1", "+15551234567", now), evt); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Insert(ctx, sample("b", "t1", "+15551234567", now)); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if got := len(s.Events()); got != 1 {
		t.Fatalf("expected 1 event, got %d", got)
	}
	if _, err := s.FindByTrackingID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryLatestUnacknowledgedByPhone(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	phone := "+15551234567"

	_, _ = s.Insert(ctx, sample("old", "t-old", phone, base))
	_, _ = s.Insert(ctx, sample("new", "t-new", phone, base.Add(time.Minute)))
	_, _ = s.Insert(ctx, sample("other", "t-other", "+15550000000", base.Add(time.Hour)))

	got, err := s.FindLatestUnacknowledgedByPhone(ctx, phone)
	if err != nil || got.ID != "new" {
		t.Fatalf("expected newest appointment, got %q (%v)", got.ID, err)
	}

	got.Acknowledge(base.Add(2 * time.Minute))
	if _, err := s.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = s.FindLatestUnacknowledgedByPhone(ctx, phone)
	if err != nil || got.ID != "old" {
		t.Fatalf("expected fallback to older appointment, got %q (%v)", got.ID, err)
	}
}

func TestMemoryUpdateNeverClearsAcknowledged(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()
	appt, _ := s.Insert(ctx, sample("a", "t1", "+15551234567", now))

	stale := appt
	appt.Acknowledge(now)
	if _, err := s.Update(ctx, appt); err != nil {
		t.Fatalf("update: %v", err)
	}

	stale.Notifications.CalendarInvite.Status = model.CalendarTentative
	got, err := s.Update(ctx, stale)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.Notifications.Acknowledged || got.Notifications.AcknowledgedAt == nil {
		t.Fatal("stale write cleared acknowledgment")
	}
	if got.Notifications.CalendarInvite.Status != model.CalendarTentative {
		t.Fatalf("expected last writer to win on calendar status, got %q", got.Notifications.CalendarInvite.Status)
	}
}

func TestMemoryListDueReminders(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	due := sample("due", "t-due", "+1", now)
	due.AppointmentDate = now.Add(12 * time.Hour)
	due.Acknowledge(now)

	unacked := sample("unacked", "t-unacked", "+1", now)
	unacked.AppointmentDate = now.Add(12 * time.Hour)

	far := sample("far", "t-far", "+1", now)
	far.AppointmentDate = now.Add(72 * time.Hour)
	far.Acknowledge(now)

	declined := sample("declined", "t-declined", "+1", now)
	declined.AppointmentDate = now.Add(6 * time.Hour)
	declined.Acknowledge(now)
	declined.SetCalendarStatus(model.CalendarDeclined, now)

	for _, a := range []model.Appointment{due, unacked, far, declined} {
		if _, err := s.Insert(ctx, a); err != nil {
			t.Fatalf("insert %s: %v", a.ID, err)
		}
	}

	got, err := s.ListDueReminders(ctx, now, now.Add(24*time.Hour), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "due" {
		t.Fatalf("unexpected due list %+v", got)
	}
}

func TestMemoryNarrowWritesKeepCalendarResponse(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	appt, _ := s.Insert(ctx, sample("a", "t1", "+15551234567", now))
	appt.Acknowledge(now)
	appt.SetCalendarStatus(model.CalendarAccepted, now)
	if _, err := s.Update(ctx, appt); err != nil {
		t.Fatalf("update: %v", err)
	}

	later := now.Add(time.Minute)
	if err := s.RecordEmailDelivery(ctx, "a", "<m1@test>", "http://preview", later); err != nil {
		t.Fatalf("RecordEmailDelivery: %v", err)
	}
	if err := s.MarkReminderSent(ctx, "a", later.Add(time.Minute)); err != nil {
		t.Fatalf("MarkReminderSent: %v", err)
	}

	got, _ := s.FindByTrackingID(ctx, "t1")
	n := got.Notifications
	if !n.EmailSent || !n.CalendarInvite.Sent || n.MessageID != "<m1@test>" || n.PreviewURL != "http://preview" {
		t.Fatalf("email fields not recorded: %+v", n)
	}
	if n.ReminderSentAt == nil || !n.ReminderSentAt.Equal(later.Add(time.Minute)) {
		t.Fatalf("reminder not stamped: %v", n.ReminderSentAt)
	}
	if n.CalendarInvite.Status != model.CalendarAccepted || n.CalendarInvite.RespondedAt == nil || !n.Acknowledged {
		t.Fatalf("narrow write touched response fields: %+v", n)
	}
	if !got.UpdatedAt.Equal(later.Add(time.Minute)) {
		t.Fatalf("updatedAt = %v", got.UpdatedAt)
	}

	if err := s.RecordEmailDelivery(ctx, "missing", "", "", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.MarkReminderSent(ctx, "missing", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@db:5432/homelube":   "pgx5://u:p@db:5432/homelube",
		"postgresql://u:p@db:5432/homelube": "pgx5://u:p@db:5432/homelube",
		"pgx5://u:p@db/homelube":            "pgx5://u:p@db/homelube",
	}
	for in, want := range cases {
		if got := migrateURL(in); got != want {
			t.Fatalf("migrateURL(%q) = %q, want %q", in, got, want)
		}
	}
}
