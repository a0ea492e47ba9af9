package quota

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/booking"
	"github.com/slotwise/bookingd/internal/model"
	"github.com/slotwise/bookingd/internal/storage"
)

type fakeEntitlements struct {
	ent   storage.Entitlement
	found bool
}

func (f *fakeEntitlements) Get(context.Context, uuid.UUID) (storage.Entitlement, bool, error) {
	return f.ent, f.found, nil
}

type fakeUsage struct {
	count   int
	gotFrom time.Time
	gotTo   time.Time
}

func (f *fakeUsage) CountActiveInRange(_ context.Context, _ uuid.UUID, from, to time.Time) (int, error) {
	f.gotFrom, f.gotTo = from, to
	return f.count, nil
}

type fakeBusinesses struct {
	biz model.Business
}

func (f *fakeBusinesses) GetBusiness(context.Context, uuid.UUID) (model.Business, bool, error) {
	return f.biz, f.biz.ID != uuid.Nil, nil
}

func newTestGate(ents *fakeEntitlements, usage *fakeUsage, biz model.Business) *Gate {
	return NewGate(ents, usage, &fakeBusinesses{biz: biz},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAllow_UnderCap(t *testing.T) {
	usage := &fakeUsage{count: 5}
	g := newTestGate(
		&fakeEntitlements{ent: storage.Entitlement{MaxDailyAppointments: 10}, found: true},
		usage,
		model.Business{ID: uuid.New(), Timezone: "UTC"},
	)

	if err := g.Allow(context.Background(), uuid.New(), time.Now().UTC()); err != nil {
		t.Fatalf("Allow: %v", err)
	}
}

func TestAllow_AtCapRefuses(t *testing.T) {
	g := newTestGate(
		&fakeEntitlements{ent: storage.Entitlement{MaxDailyAppointments: 10}, found: true},
		&fakeUsage{count: 10},
		model.Business{ID: uuid.New(), Timezone: "UTC"},
	)

	err := g.Allow(context.Background(), uuid.New(), time.Now().UTC())
	if !errors.Is(err, booking.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestAllow_DefaultCapWithoutEntitlement(t *testing.T) {
	g := newTestGate(
		&fakeEntitlements{},
		&fakeUsage{count: DefaultDailyCap},
		model.Business{ID: uuid.New(), Timezone: "UTC"},
	)

	err := g.Allow(context.Background(), uuid.New(), time.Now().UTC())
	if !errors.Is(err, booking.ErrQuotaExceeded) {
		t.Fatalf("expected default cap to apply, got %v", err)
	}
}

func TestAllow_ZeroCapMeansUnlimited(t *testing.T) {
	g := newTestGate(
		&fakeEntitlements{ent: storage.Entitlement{MaxDailyAppointments: 0}, found: true},
		&fakeUsage{count: 100000},
		model.Business{ID: uuid.New(), Timezone: "UTC"},
	)

	if err := g.Allow(context.Background(), uuid.New(), time.Now().UTC()); err != nil {
		t.Fatalf("Allow with unlimited cap: %v", err)
	}
}

func TestAllow_CountsLocalDay(t *testing.T) {
	usage := &fakeUsage{}
	g := newTestGate(
		&fakeEntitlements{ent: storage.Entitlement{MaxDailyAppointments: 10}, found: true},
		usage,
		model.Business{ID: uuid.New(), Timezone: "America/New_York"},
	)

	// 2026-03-11 01:00 UTC is still 2026-03-10 in New York.
	start := time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC)
	if err := g.Allow(context.Background(), uuid.New(), start); err != nil {
		t.Fatalf("Allow: %v", err)
	}

	loc, _ := time.LoadLocation("America/New_York")
	wantFrom := time.Date(2026, 3, 10, 0, 0, 0, 0, loc).UTC()
	if !usage.gotFrom.Equal(wantFrom) {
		t.Fatalf("expected day window to start %s, got %s", wantFrom, usage.gotFrom)
	}
	if !usage.gotTo.Equal(wantFrom.Add(24 * time.Hour)) {
		t.Fatalf("expected 24h day window, got %s", usage.gotTo)
	}
}
