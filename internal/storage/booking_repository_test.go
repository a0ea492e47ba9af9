package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/slotwise/bookingd/internal/booking"
	"github.com/slotwise/bookingd/internal/model"
)

var appointmentRowColumns = []string{
	"id", "business_id", "service_id", "staff_id", "customer_id",
	"start_time", "end_time", "duration_minutes", "buffer_minutes", "status",
	"booked_at", "confirmed_at", "completed_at", "cancelled_at", "cancel_reason", "created_at",
}

func appointmentRow(a model.Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentRowColumns).AddRow(
		a.ID, a.BusinessID, a.ServiceID, a.StaffID, a.CustomerID,
		a.StartTime, a.EndTime, a.DurationMinutes, a.BufferMinutes, string(a.Status),
		a.BookedAt, a.ConfirmedAt, a.CompletedAt, a.CancelledAt, a.CancelReason, a.CreatedAt,
	)
}

func sampleAppointment(businessID uuid.UUID) model.Appointment {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	return model.Appointment{
		ID:              uuid.New(),
		BusinessID:      businessID,
		ServiceID:       uuid.New(),
		CustomerID:      uuid.New(),
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		DurationMinutes: 30,
		BufferMinutes:   10,
		Status:          model.StatusConfirmed,
		BookedAt:        start.Add(-time.Hour),
		CreatedAt:       start.Add(-time.Hour),
	}
}

func TestListActive_BusinessWideScope(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	businessID := uuid.New()
	appt := sampleAppointment(businessID)
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery("staff_id IS NULL").
		WithArgs(businessID, from, to).
		WillReturnRows(appointmentRow(appt))

	repo := &BookingRepository{}
	got, err := repo.listActive(context.Background(), mock, businessID, nil, from, to)
	if err != nil {
		t.Fatalf("listActive: %v", err)
	}
	if len(got) != 1 || got[0].ID != appt.ID {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got[0].Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got[0].Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListActive_StaffScope(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	businessID := uuid.New()
	staffID := uuid.New()
	appt := sampleAppointment(businessID)
	appt.StaffID = &staffID
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery(`staff_id = \$4`).
		WithArgs(businessID, from, to, staffID).
		WillReturnRows(appointmentRow(appt))

	repo := &BookingRepository{}
	got, err := repo.listActive(context.Background(), mock, businessID, &staffID, from, to)
	if err != nil {
		t.Fatalf("listActive: %v", err)
	}
	if len(got) != 1 || got[0].StaffID == nil || *got[0].StaffID != staffID {
		t.Fatalf("unexpected result: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertAppointment_ScansCreatedAt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	appt := sampleAppointment(uuid.New())
	created := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(appt.ID, appt.BusinessID, appt.ServiceID, appt.StaffID, appt.CustomerID,
			appt.StartTime, appt.EndTime, appt.DurationMinutes, appt.BufferMinutes, string(appt.Status),
			appt.BookedAt, appt.ConfirmedAt).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	repo := &BookingRepository{}
	if err := repo.insertAppointment(context.Background(), mock, &appt); err != nil {
		t.Fatalf("insertAppointment: %v", err)
	}
	if !appt.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at %s, got %s", created, appt.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLookupIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	businessID := uuid.New()
	apptID := uuid.New()

	mock.ExpectExec("INSERT INTO booking_idempotency_keys").
		WithArgs(businessID, "key-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT appointment_id").
		WithArgs(businessID, "key-1").
		WillReturnRows(pgxmock.NewRows([]string{"appointment_id"}).AddRow(&apptID))

	repo := &BookingRepository{}
	got, done, err := repo.lookupIdempotencyKey(context.Background(), mock, businessID, "key-1")
	if err != nil {
		t.Fatalf("lookupIdempotencyKey: %v", err)
	}
	if !done || got != apptID {
		t.Fatalf("expected completed key with %s, got done=%v id=%s", apptID, done, got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLookupIdempotencyKey_FirstUse(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	businessID := uuid.New()

	mock.ExpectExec("INSERT INTO booking_idempotency_keys").
		WithArgs(businessID, "key-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT appointment_id").
		WithArgs(businessID, "key-1").
		WillReturnRows(pgxmock.NewRows([]string{"appointment_id"}).AddRow(nil))

	repo := &BookingRepository{}
	_, done, err := repo.lookupIdempotencyKey(context.Background(), mock, businessID, "key-1")
	if err != nil {
		t.Fatalf("lookupIdempotencyKey: %v", err)
	}
	if done {
		t.Fatal("expected fresh key to report not done")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTranslateErr(t *testing.T) {
	if translateErr(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	if got := translateErr(&pgconn.PgError{Code: "23P01"}); !errors.Is(got, booking.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken for 23P01, got %v", got)
	}
	if got := translateErr(&pgconn.PgError{Code: "40001"}); !errors.Is(got, booking.ErrStoreTransient) {
		t.Fatalf("expected ErrStoreTransient for 40001, got %v", got)
	}
	if got := translateErr(&pgconn.PgError{Code: "40P01"}); !errors.Is(got, booking.ErrStoreTransient) {
		t.Fatalf("expected ErrStoreTransient for 40P01, got %v", got)
	}
	plain := errors.New("boom")
	if got := translateErr(plain); got != plain {
		t.Fatalf("expected passthrough, got %v", got)
	}
	// Domain errors pass through unchanged so callers can match them.
	if got := translateErr(booking.ErrSlotTaken); got != booking.ErrSlotTaken {
		t.Fatalf("expected ErrSlotTaken passthrough, got %v", got)
	}
}
