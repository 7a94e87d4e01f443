package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/trimtrove/libs/db"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/appointment"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/outbox"
)

const appointmentColumns = `a.id::text, a.customer_id, a.location_id::text, a.service_id::text,
	a.appointment_date, a.start_minute, a.end_minute, a.status, a.notes, a.created_at, a.updated_at`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type BookingRepository struct {
	pool *db.Pool
	loc  *time.Location
}

// NewBookingRepository stores appointment dates as calendar days and reads them
// back in loc.
func NewBookingRepository(pool *db.Pool, loc *time.Location) *BookingRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingRepository{pool: pool, loc: loc}
}

func (r *BookingRepository) ListBlockingReservations(ctx context.Context, locationID string, date time.Time) ([]model.Reservation, error) {
	return r.listBlocking(ctx, r.pool, locationID, date)
}

func (r *BookingRepository) listBlocking(ctx context.Context, q querier, locationID string, date time.Time) ([]model.Reservation, error) {
	rows, err := q.Query(ctx, `
		SELECT id::text, location_id::text, appointment_date, start_minute, end_minute, status
		FROM appointments
		WHERE location_id = $1
			AND appointment_date = $2
			AND status IN ('PENDING', 'ACCEPTED')
		ORDER BY start_minute ASC
	`, locationID, date)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		var day time.Time
		if err := rows.Scan(&res.AppointmentID, &res.LocationID, &day, &res.StartMinute, &res.EndMinute, &res.Status); err != nil {
			return nil, err
		}
		res.Date = r.inZone(day)
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, translate(rows.Err())
	}
	return out, nil
}

// BookSlot inserts appt under a transaction-scoped advisory lock on its location
// and date. verify sees the blocking reservations read under that lock; the
// exclusion constraint on appointments backs it up.
func (r *BookingRepository) BookSlot(ctx context.Context, appt model.Appointment, verify func([]model.Reservation) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), $2)`, appt.LocationID, dayKey(appt.Date)); err != nil {
		return fmt.Errorf("lock schedule: %w", err)
	}

	reservations, err := r.listBlocking(ctx, tx, appt.LocationID, appt.Date)
	if err != nil {
		return err
	}
	if err := verify(reservations); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, customer_id, location_id, service_id, appointment_date, start_minute, end_minute, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, appt.ID, appt.CustomerID, appt.LocationID, appt.ServiceID, appt.Date,
		appt.StartMinute, appt.EndMinute, string(appt.Status), appt.Notes, appt.CreatedAt, appt.UpdatedAt)
	if err != nil {
		return translate(err)
	}

	if err := outbox.Append(ctx, tx, appt); err != nil {
		return err
	}
	return translate(tx.Commit(ctx))
}

// UpdateStatus locks the appointment as seen by actor: customers see their own,
// owners see those at their locations.
func (r *BookingRepository) UpdateStatus(ctx context.Context, appointmentID string, actor appointment.Actor, decide func(model.Appointment) (model.Status, error)) (model.Appointment, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		JOIN locations l ON l.id = a.location_id
		WHERE a.id = $1
			AND (($2 = 'customer' AND a.customer_id = $3) OR ($2 = 'owner' AND l.owner_id = $3))
		FOR UPDATE OF a
	`, appointmentID, string(actor.Role), actor.ID)
	if err != nil {
		return model.Appointment{}, false, translate(err)
	}
	appt, err := pgx.CollectExactlyOneRow(rows, r.scanAppointment)
	if err != nil {
		return model.Appointment{}, false, translate(err)
	}

	next, err := decide(appt)
	if err != nil {
		return model.Appointment{}, false, err
	}
	if next == appt.Status {
		return appt, false, translate(tx.Commit(ctx))
	}

	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, appt.ID, string(next)).Scan(&appt.UpdatedAt)
	if err != nil {
		return model.Appointment{}, false, translate(err)
	}
	appt.Status = next

	if err := outbox.Append(ctx, tx, appt); err != nil {
		return model.Appointment{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, false, translate(err)
	}
	return appt, true, nil
}

func (r *BookingRepository) Get(ctx context.Context, appointmentID string) (model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.id = $1
	`, appointmentID)
	if err != nil {
		return model.Appointment{}, translate(err)
	}
	appt, err := pgx.CollectExactlyOneRow(rows, r.scanAppointment)
	return appt, translate(err)
}

func (r *BookingRepository) ListForCustomer(ctx context.Context, customerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.customer_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, r.scanAppointment)
}

func (r *BookingRepository) ListForOwner(ctx context.Context, ownerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		JOIN locations l ON l.id = a.location_id
		WHERE l.owner_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, r.scanAppointment)
}

func (r *BookingRepository) scanAppointment(row pgx.CollectableRow) (model.Appointment, error) {
	var appt model.Appointment
	var day time.Time
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.CustomerID,
		&appt.LocationID,
		&appt.ServiceID,
		&day,
		&appt.StartMinute,
		&appt.EndMinute,
		&status,
		&appt.Notes,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Date = r.inZone(day)
	appt.Status = model.Status(status)
	return appt, nil
}

// inZone reinterprets a date column (scanned as UTC midnight) as midnight in r.loc.
func (r *BookingRepository) inZone(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, r.loc)
}

// dayKey is the second advisory lock key: the date as YYYYMMDD.
func dayKey(date time.Time) int32 {
	return int32(date.Year()*10000 + int(date.Month())*100 + date.Day())
}
