package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/slotwise/bookingd/internal/availability"
	"github.com/slotwise/bookingd/internal/booking"
	"github.com/slotwise/bookingd/internal/model"
	"github.com/slotwise/bookingd/internal/occupancy"
	"github.com/slotwise/bookingd/internal/outbox"
	"github.com/slotwise/bookingd/internal/platform/db"
)

// TxStore implements booking.Store over Postgres. It owns the error
// translation at the storage boundary: exclusion-constraint violations
// surface as booking.ErrSlotTaken and serialization failures as
// booking.ErrStoreTransient, so callers retry or refuse without
// knowing Postgres error codes.
type TxStore struct {
	pool   *db.Pool
	repo   *BookingRepository
	events *outbox.Repository
}

var _ booking.Store = (*TxStore)(nil)

func NewTxStore(pool *db.Pool, repo *BookingRepository, events *outbox.Repository) *TxStore {
	return &TxStore{pool: pool, repo: repo, events: events}
}

func (s *TxStore) InTx(ctx context.Context, fn func(tx booking.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return translateErr(fmt.Errorf("begin tx: %w", err))
	}
	defer pgTx.Rollback(ctx)

	if err := fn(&storeTx{tx: pgTx, repo: s.repo, events: s.events}); err != nil {
		return translateErr(err)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return translateErr(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *TxStore) ListByBusiness(ctx context.Context, businessID uuid.UUID, limit int) ([]model.Appointment, error) {
	return s.repo.ListByBusiness(ctx, businessID, limit)
}

func (s *TxStore) GetAppointment(ctx context.Context, businessID, id uuid.UUID) (model.Appointment, bool, error) {
	return s.repo.GetAppointment(ctx, businessID, id)
}

func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case IsConflict(err):
		return booking.ErrSlotTaken
	case IsSerializationFailure(err):
		return fmt.Errorf("%w: %v", booking.ErrStoreTransient, err)
	default:
		return err
	}
}

type storeTx struct {
	tx     pgx.Tx
	repo   *BookingRepository
	events *outbox.Repository
}

var _ booking.Tx = (*storeTx)(nil)

func (t *storeTx) BusyIntervals(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, from, to time.Time) ([]availability.Interval, error) {
	appts, err := t.repo.listActive(ctx, t.tx, businessID, staffID, from.Add(-4*time.Hour), to.Add(occupancy.PreBuffer))
	if err != nil {
		return nil, err
	}
	busy := make([]availability.Interval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, occupancy.Occupied(a))
	}
	return busy, nil
}

func (t *storeTx) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	return t.repo.insertAppointment(ctx, t.tx, a)
}

func (t *storeTx) AppointmentForUpdate(ctx context.Context, businessID, id uuid.UUID) (model.Appointment, bool, error) {
	a, err := t.repo.getForUpdate(ctx, t.tx, businessID, id)
	if err != nil {
		if IsNotFound(err) {
			return model.Appointment{}, false, nil
		}
		return model.Appointment{}, false, err
	}
	return a, true, nil
}

func (t *storeTx) UpdateAppointmentStatus(ctx context.Context, a model.Appointment) error {
	return t.repo.updateStatus(ctx, t.tx, a)
}

func (t *storeTx) LookupIdempotencyKey(ctx context.Context, businessID uuid.UUID, key string) (uuid.UUID, bool, error) {
	return t.repo.lookupIdempotencyKey(ctx, t.tx, businessID, key)
}

func (t *storeTx) SaveIdempotencyKey(ctx context.Context, businessID uuid.UUID, key string, appointmentID uuid.UUID) error {
	return t.repo.saveIdempotencyKey(ctx, t.tx, businessID, key, appointmentID)
}

func (t *storeTx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return t.events.Insert(ctx, t.tx, evt)
}
