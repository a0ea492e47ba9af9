package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/model"
	"github.com/slotwise/bookingd/internal/platform/db"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

const appointmentColumns = `
	id, business_id, service_id, staff_id, customer_id,
	start_time, end_time, duration_minutes, buffer_minutes, status,
	booked_at, confirmed_at, completed_at, cancelled_at, COALESCE(cancel_reason, ''), created_at`

func scanAppointment(row interface{ Scan(dest ...any) error }) (model.Appointment, error) {
	var a model.Appointment
	var status string
	err := row.Scan(
		&a.ID,
		&a.BusinessID,
		&a.ServiceID,
		&a.StaffID,
		&a.CustomerID,
		&a.StartTime,
		&a.EndTime,
		&a.DurationMinutes,
		&a.BufferMinutes,
		&status,
		&a.BookedAt,
		&a.ConfirmedAt,
		&a.CompletedAt,
		&a.CancelledAt,
		&a.CancelReason,
		&a.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	return a, nil
}

// ListActiveAppointments returns the appointments that still occupy time
// in the scope. A nil staffID selects the business-wide resource
// (staff-agnostic bookings), not all staff: staff-agnostic and per-staff
// occupancy are independent resources.
func (r *BookingRepository) ListActiveAppointments(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, from, to time.Time) ([]model.Appointment, error) {
	return r.listActive(ctx, r.pool, businessID, staffID, from, to)
}

func (r *BookingRepository) listActive(ctx context.Context, q db.Querier, businessID uuid.UUID, staffID *uuid.UUID, from, to time.Time) ([]model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE business_id = $1
			AND staff_id IS NULL
			AND status IN ('pending', 'confirmed', 'completed')
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC`
	args := []any{businessID, from, to}
	if staffID != nil {
		query = `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE business_id = $1
			AND staff_id = $4
			AND status IN ('pending', 'confirmed', 'completed')
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC`
		args = append(args, *staffID)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *BookingRepository) insertAppointment(ctx context.Context, q db.Querier, a *model.Appointment) error {
	return q.QueryRow(ctx, `
		INSERT INTO appointments
			(id, business_id, service_id, staff_id, customer_id,
			 start_time, end_time, duration_minutes, buffer_minutes, status,
			 booked_at, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`, a.ID, a.BusinessID, a.ServiceID, a.StaffID, a.CustomerID,
		a.StartTime, a.EndTime, a.DurationMinutes, a.BufferMinutes, string(a.Status),
		a.BookedAt, a.ConfirmedAt).Scan(&a.CreatedAt)
}

func (r *BookingRepository) getForUpdate(ctx context.Context, q db.Querier, businessID, id uuid.UUID) (model.Appointment, error) {
	row := q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND business_id = $2
		FOR UPDATE
	`, id, businessID)
	return scanAppointment(row)
}

func (r *BookingRepository) updateStatus(ctx context.Context, q db.Querier, a model.Appointment) error {
	_, err := q.Exec(ctx, `
		UPDATE appointments
		SET status = $3,
			confirmed_at = $4,
			completed_at = $5,
			cancelled_at = $6,
			cancel_reason = $7
		WHERE id = $1 AND business_id = $2
	`, a.ID, a.BusinessID, string(a.Status), a.ConfirmedAt, a.CompletedAt, a.CancelledAt, a.CancelReason)
	return err
}

func (r *BookingRepository) GetAppointment(ctx context.Context, businessID, id uuid.UUID) (model.Appointment, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND business_id = $2
	`, id, businessID)
	a, err := scanAppointment(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Appointment{}, false, nil
		}
		return model.Appointment{}, false, err
	}
	return a, true, nil
}

func (r *BookingRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// CountActiveInRange counts occupying appointments whose start falls in
// [startInclusive, endExclusive); used by the daily quota gate.
func (r *BookingRepository) CountActiveInRange(ctx context.Context, businessID uuid.UUID, startInclusive, endExclusive time.Time) (int, error) {
	var cnt int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE business_id = $1
			AND status IN ('pending', 'confirmed', 'completed')
			AND start_time >= $2
			AND start_time < $3
	`, businessID, startInclusive, endExclusive).Scan(&cnt)
	return cnt, err
}

func (r *BookingRepository) lookupIdempotencyKey(ctx context.Context, q db.Querier, businessID uuid.UUID, key string) (uuid.UUID, bool, error) {
	// Insert-or-lock: the row is created on first use so a concurrent
	// retry with the same key serializes behind the row lock.
	_, err := q.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (business_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (business_id, idempotency_key) DO NOTHING
	`, businessID, key)
	if err != nil {
		return uuid.Nil, false, err
	}

	var apptID *uuid.UUID
	err = q.QueryRow(ctx, `
		SELECT appointment_id
		FROM booking_idempotency_keys
		WHERE business_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, businessID, key).Scan(&apptID)
	if err != nil {
		return uuid.Nil, false, err
	}
	if apptID == nil {
		return uuid.Nil, false, nil
	}
	return *apptID, true, nil
}

func (r *BookingRepository) saveIdempotencyKey(ctx context.Context, q db.Querier, businessID uuid.UUID, key string, appointmentID uuid.UUID) error {
	_, err := q.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3,
			updated_at = now()
		WHERE business_id = $1 AND idempotency_key = $2
	`, businessID, key, appointmentID)
	return err
}
