package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/homelube/libs/db"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/outbox"
)

const appointmentColumns = `
	id::text, tracking_id,
	vehicle_make, vehicle_model, vehicle_year, vehicle_license_plate,
	address_street, address_city, address_state, address_zip_code,
	appointment_date, urgency, customer_email, customer_phone, service_provider_email,
	status, email_sent, email_message_id, email_preview_url,
	acknowledged, acknowledged_at,
	calendar_invite_sent, calendar_invite_status, calendar_responded_at,
	reminder_sent_at, created_at, updated_at`

type PostgresStore struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPostgresStore(pool *db.Pool, outboxRepo *outbox.Repository) *PostgresStore {
	return &PostgresStore{pool: pool, outbox: outboxRepo}
}

const insertAppointmentSQL = `
	INSERT INTO appointments (
		id, tracking_id,
		vehicle_make, vehicle_model, vehicle_year, vehicle_license_plate,
		address_street, address_city, address_state, address_zip_code,
		appointment_date, urgency, customer_email, customer_phone, service_provider_email,
		status, email_sent, email_message_id, email_preview_url,
		acknowledged, acknowledged_at,
		calendar_invite_sent, calendar_invite_status, calendar_responded_at,
		reminder_sent_at, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
	)
	RETURNING ` + appointmentColumns

// acknowledged is OR-ed with the stored value so concurrent writers can
// never clear it.
const updateAppointmentSQL = `
	UPDATE appointments
	SET status = $2,
		email_sent = $3,
		email_message_id = $4,
		email_preview_url = $5,
		acknowledged = acknowledged OR $6,
		acknowledged_at = CASE WHEN $6 THEN $7 ELSE acknowledged_at END,
		calendar_invite_sent = $8,
		calendar_invite_status = $9,
		calendar_responded_at = $10,
		reminder_sent_at = $11,
		updated_at = $12
	WHERE id = $1
	RETURNING ` + appointmentColumns

const findLatestUnacknowledgedSQL = `
	SELECT ` + appointmentColumns + `
	FROM appointments
	WHERE customer_phone = $1 AND acknowledged = false
	ORDER BY created_at DESC, updated_at DESC
	LIMIT 1`

const recordEmailDeliverySQL = `
	UPDATE appointments
	SET email_sent = true,
		calendar_invite_sent = true,
		email_message_id = $2,
		email_preview_url = $3,
		updated_at = $4
	WHERE id = $1`

const markReminderSentSQL = `
	UPDATE appointments
	SET reminder_sent_at = $2,
		updated_at = $2
	WHERE id = $1`

func insertArgs(appt model.Appointment) []any {
	n := appt.Notifications
	return []any{
		appt.ID, appt.TrackingID,
		appt.VehicleInfo.Make, appt.VehicleInfo.Model, appt.VehicleInfo.Year, appt.VehicleInfo.LicensePlate,
		appt.ServiceAddress.Street, appt.ServiceAddress.City, appt.ServiceAddress.State, appt.ServiceAddress.ZipCode,
		appt.AppointmentDate, string(appt.Urgency), appt.CustomerEmail, appt.CustomerPhone, appt.ServiceProviderEmail,
		string(appt.Status), n.EmailSent, n.MessageID, n.PreviewURL,
		n.Acknowledged, n.AcknowledgedAt,
		n.CalendarInvite.Sent, string(n.CalendarInvite.Status), n.CalendarInvite.RespondedAt,
		n.ReminderSentAt, appt.CreatedAt, appt.UpdatedAt,
	}
}

func updateArgs(appt model.Appointment) []any {
	n := appt.Notifications
	return []any{
		appt.ID, string(appt.Status), n.EmailSent, n.MessageID, n.PreviewURL,
		n.Acknowledged, n.AcknowledgedAt,
		n.CalendarInvite.Sent, string(n.CalendarInvite.Status), n.CalendarInvite.RespondedAt,
		n.ReminderSentAt, appt.UpdatedAt,
	}
}

func emailDeliveryArgs(id, messageID, previewURL string, at time.Time) []any {
	return []any{id, messageID, previewURL, at}
}

func (s *PostgresStore) Insert(ctx context.Context, appt model.Appointment, events ...outbox.Event) (model.Appointment, error) {
	var out model.Appointment
	err := s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanAppointment(tx.QueryRow(ctx, insertAppointmentSQL, insertArgs(appt)...))
		if err != nil {
			return err
		}
		return s.writeEvents(ctx, tx, events)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return model.Appointment{}, ErrDuplicateKey
		}
		return model.Appointment{}, err
	}
	return out, nil
}

func (s *PostgresStore) FindByTrackingID(ctx context.Context, trackingID string) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE tracking_id = $1`, trackingID)
	appt, err := scanAppointment(row)
	if db.IsNoRows(err) {
		return model.Appointment{}, ErrNotFound
	}
	return appt, err
}

func (s *PostgresStore) FindLatestUnacknowledgedByPhone(ctx context.Context, phone string) (model.Appointment, error) {
	appt, err := scanAppointment(s.pool.QueryRow(ctx, findLatestUnacknowledgedSQL, phone))
	if db.IsNoRows(err) {
		return model.Appointment{}, ErrNotFound
	}
	return appt, err
}

func (s *PostgresStore) Update(ctx context.Context, appt model.Appointment, events ...outbox.Event) (model.Appointment, error) {
	var out model.Appointment
	err := s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanAppointment(tx.QueryRow(ctx, updateAppointmentSQL, updateArgs(appt)...))
		if err != nil {
			return err
		}
		return s.writeEvents(ctx, tx, events)
	})
	if db.IsNoRows(err) {
		return model.Appointment{}, ErrNotFound
	}
	return out, err
}

// RecordEmailDelivery touches only the email columns so a reply that lands
// while SMTP is in flight keeps its calendar status.
func (s *PostgresStore) RecordEmailDelivery(ctx context.Context, id, messageID, previewURL string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, recordEmailDeliverySQL, emailDeliveryArgs(id, messageID, previewURL, at)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, markReminderSentSQL, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListDueReminders(ctx context.Context, from, to time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE acknowledged = true
			AND reminder_sent_at IS NULL
			AND status <> 'cancelled'
			AND calendar_invite_status <> 'declined'
			AND appointment_date > $1
			AND appointment_date <= $2
		ORDER BY appointment_date ASC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (s *PostgresStore) writeEvents(ctx context.Context, tx pgx.Tx, events []outbox.Event) error {
	for _, evt := range events {
		if err := s.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}
	return nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		appt           model.Appointment
		urgency        string
		status         string
		calendarStatus string
	)
	n := &appt.Notifications
	err := row.Scan(
		&appt.ID, &appt.TrackingID,
		&appt.VehicleInfo.Make, &appt.VehicleInfo.Model, &appt.VehicleInfo.Year, &appt.VehicleInfo.LicensePlate,
		&appt.ServiceAddress.Street, &appt.ServiceAddress.City, &appt.ServiceAddress.State, &appt.ServiceAddress.ZipCode,
		&appt.AppointmentDate, &urgency, &appt.CustomerEmail, &appt.CustomerPhone, &appt.ServiceProviderEmail,
		&status, &n.EmailSent, &n.MessageID, &n.PreviewURL,
		&n.Acknowledged, &n.AcknowledgedAt,
		&n.CalendarInvite.Sent, &calendarStatus, &n.CalendarInvite.RespondedAt,
		&n.ReminderSentAt, &appt.CreatedAt, &appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Urgency = model.Urgency(urgency)
	appt.Status = model.Status(status)
	n.CalendarInvite.Status = model.CalendarStatus(calendarStatus)
	return appt, nil
}

func (s *PostgresStore) ReadyCheck() func(context.Context) error {
	return db.ReadyCheck(s.pool)
}
