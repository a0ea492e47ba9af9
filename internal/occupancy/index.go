package occupancy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/availability"
	"github.com/slotwise/bookingd/internal/model"
)

// PreBuffer is the fixed safety margin applied before every occupied
// interval to absorb clock skew and walk-in lateness. Policy constant,
// not a per-service field.
const PreBuffer = 5 * time.Minute

// Store loads the appointments that can conflict within a scope. A nil
// staffID scopes to the business-wide resource (staff-agnostic
// bookings); a non-nil staffID scopes to that staff member only.
type Store interface {
	ListActiveAppointments(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, from, to time.Time) ([]model.Appointment, error)
}

type Index struct {
	store Store
}

func NewIndex(store Store) *Index {
	return &Index{store: store}
}

// Busy returns the buffered occupied intervals for the scope, each
// expanded to [start - PreBuffer, end + buffer).
func (ix *Index) Busy(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, from, to time.Time) ([]availability.Interval, error) {
	// Widen the query range so appointments whose buffered interval
	// leaks into [from, to) are not missed.
	appts, err := ix.store.ListActiveAppointments(ctx, businessID, staffID, from.Add(-maxLeak), to.Add(PreBuffer))
	if err != nil {
		return nil, err
	}
	busy := make([]availability.Interval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, Occupied(a))
	}
	return busy, nil
}

// Occupied expands one appointment to the interval it blocks.
func Occupied(a model.Appointment) availability.Interval {
	return availability.Interval{
		Start: a.StartTime.Add(-PreBuffer),
		End:   a.EndTime.Add(time.Duration(a.BufferMinutes) * time.Minute),
	}
}

// maxLeak bounds how far an appointment's trailing buffer can extend
// past its end time when widening occupancy queries.
const maxLeak = 4 * time.Hour
