package lifecycle

import (
	"context"
	"time"
)

const reminderBatch = 100

// SendDueReminders texts every acknowledged appointment starting within lead
// that has not been reminded yet. Each send is a single attempt; failures are
// picked up again on the next run.
func (s *Service) SendDueReminders(ctx context.Context, lead time.Duration) (int, error) {
	now := s.clock()
	due, err := s.store.ListDueReminders(ctx, now, now.Add(lead), reminderBatch)
	if err != nil {
		return 0, persistence("list due reminders", err)
	}

	sent := 0
	for _, appt := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if !s.sendSMS(ctx, appt, "reminder", s.templates.ReminderSMS(appt)) {
			continue
		}
		if err := s.store.MarkReminderSent(ctx, appt.ID, s.clock()); err != nil {
			s.logger.ErrorContext(ctx, "record reminder failed", "tracking_id", appt.TrackingID, "err", err)
			continue
		}
		s.metrics.RecordReminderSent()
		sent++
	}
	return sent, nil
}
