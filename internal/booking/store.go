package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/availability"
	"github.com/slotwise/bookingd/internal/model"
	"github.com/slotwise/bookingd/internal/outbox"
	"github.com/slotwise/bookingd/internal/schedule"
)

// Directory serves the read-only business/service/staff lookups that
// precede both availability reads and booking writes.
type Directory interface {
	GetBusiness(ctx context.Context, id uuid.UUID) (model.Business, bool, error)
	GetService(ctx context.Context, businessID, serviceID uuid.UUID) (model.Service, bool, error)
	GetStaff(ctx context.Context, businessID, staffID uuid.UUID) (model.Staff, bool, error)
	ListEligibleStaff(ctx context.Context, serviceID uuid.UUID) ([]model.Staff, error)
	IsStaffAssigned(ctx context.Context, staffID, serviceID uuid.UUID) (bool, error)
}

// WindowResolver resolves the open sub-windows of a business date.
// Implemented by schedule.Resolver and by its caching decorator.
type WindowResolver interface {
	DayWindows(ctx context.Context, biz model.Business, date string) ([]schedule.Window, error)
	StaffDayWindows(ctx context.Context, biz model.Business, staffID uuid.UUID, date string) ([]schedule.Window, error)
}

// OccupancyReader returns buffered busy intervals for a scope outside a
// transaction (the availability read path).
type OccupancyReader interface {
	Busy(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, from, to time.Time) ([]availability.Interval, error)
}

// QuotaGate is the external subscription/usage gate consulted before a
// booking transaction is attempted.
type QuotaGate interface {
	Allow(ctx context.Context, businessID uuid.UUID, start time.Time) error
}

// Tx is the transaction-scoped slice of the store: the occupancy
// re-check, the insert, and the state-machine mutations all run against
// it so they commit atomically. Implementations translate storage-level
// failures into this package's taxonomy (ErrSlotTaken for exclusion
// violations, ErrStoreTransient for serialization conflicts).
type Tx interface {
	BusyIntervals(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, from, to time.Time) ([]availability.Interval, error)
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	AppointmentForUpdate(ctx context.Context, businessID, id uuid.UUID) (model.Appointment, bool, error)
	UpdateAppointmentStatus(ctx context.Context, a model.Appointment) error
	LookupIdempotencyKey(ctx context.Context, businessID uuid.UUID, key string) (uuid.UUID, bool, error)
	SaveIdempotencyKey(ctx context.Context, businessID uuid.UUID, key string, appointmentID uuid.UUID) error
	InsertEvent(ctx context.Context, evt outbox.Event) error
}

// Store runs fn inside one database transaction, committing when fn
// returns nil and rolling back otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	ListByBusiness(ctx context.Context, businessID uuid.UUID, limit int) ([]model.Appointment, error)
	GetAppointment(ctx context.Context, businessID, id uuid.UUID) (model.Appointment, bool, error)
}
