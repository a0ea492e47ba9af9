package occupancy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/model"
)

type fakeStore struct {
	appts []model.Appointment

	gotFrom time.Time
	gotTo   time.Time
}

func (f *fakeStore) ListActiveAppointments(_ context.Context, _ uuid.UUID, _ *uuid.UUID, from, to time.Time) ([]model.Appointment, error) {
	f.gotFrom, f.gotTo = from, to
	return f.appts, nil
}

func TestBusy_ExpandsBuffers(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{appts: []model.Appointment{{
		StartTime:     start,
		EndTime:       start.Add(30 * time.Minute),
		BufferMinutes: 10,
	}}}
	ix := NewIndex(store)

	busy, err := ix.Busy(context.Background(), uuid.New(), nil, start.Add(-time.Hour), start.Add(time.Hour))
	if err != nil {
		t.Fatalf("Busy: %v", err)
	}
	if len(busy) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(busy))
	}
	// 10:00-10:30 with a 10 minute buffer occupies 09:55-10:40.
	if !busy[0].Start.Equal(start.Add(-5 * time.Minute)) {
		t.Fatalf("expected busy start 09:55, got %s", busy[0].Start)
	}
	if !busy[0].End.Equal(start.Add(40 * time.Minute)) {
		t.Fatalf("expected busy end 10:40, got %s", busy[0].End)
	}
}

func TestBusy_WidensQueryRange(t *testing.T) {
	store := &fakeStore{}
	ix := NewIndex(store)
	from := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	to := from.Add(8 * time.Hour)

	if _, err := ix.Busy(context.Background(), uuid.New(), nil, from, to); err != nil {
		t.Fatalf("Busy: %v", err)
	}
	if !store.gotFrom.Before(from) {
		t.Fatalf("expected query to start before %s, got %s", from, store.gotFrom)
	}
	if !store.gotTo.After(to) {
		t.Fatalf("expected query to end after %s, got %s", to, store.gotTo)
	}
}
