package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/model"
	"github.com/slotwise/bookingd/internal/outbox"
)

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, businessID, id uuid.UUID) (model.Appointment, error) {
	return s.transition(ctx, businessID, id, model.StatusConfirmed, outbox.EventAppointmentConfirmed, func(a *model.Appointment) {
		now := s.now().UTC()
		a.ConfirmedAt = &now
	})
}

// Complete marks a confirmed appointment as delivered. Completed
// appointments keep occupying their interval; history stays truthful.
func (s *Service) Complete(ctx context.Context, businessID, id uuid.UUID) (model.Appointment, error) {
	return s.transition(ctx, businessID, id, model.StatusCompleted, outbox.EventAppointmentCompleted, func(a *model.Appointment) {
		now := s.now().UTC()
		a.CompletedAt = &now
	})
}

// Cancel releases the appointment's interval. A reason is mandatory.
func (s *Service) Cancel(ctx context.Context, businessID, id uuid.UUID, reason string) (model.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.Appointment{}, ErrReasonRequired
	}
	return s.transition(ctx, businessID, id, model.StatusCancelled, outbox.EventAppointmentCancelled, func(a *model.Appointment) {
		now := s.now().UTC()
		a.CancelledAt = &now
		a.CancelReason = reason
	})
}

// MarkNoShow releases the interval of an appointment the customer never
// arrived for.
func (s *Service) MarkNoShow(ctx context.Context, businessID, id uuid.UUID) (model.Appointment, error) {
	return s.transition(ctx, businessID, id, model.StatusNoShow, outbox.EventAppointmentNoShow, nil)
}

// transition applies one state-machine move inside a transaction. The
// row is locked for the duration so concurrent transitions serialize.
// Re-applying the current status is an idempotent no-op: the stored row
// is returned unchanged and no event is emitted.
func (s *Service) transition(ctx context.Context, businessID, id uuid.UUID, to model.Status, eventType string, mutate func(*model.Appointment)) (model.Appointment, error) {
	var out model.Appointment
	err := s.store.InTx(ctx, func(tx Tx) error {
		a, found, err := tx.AppointmentForUpdate(ctx, businessID, id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: appointment", ErrNotFound)
		}
		if a.Status == to {
			out = a
			return nil
		}
		if !model.CanTransition(a.Status, to) {
			return &InvalidTransitionError{From: a.Status, To: to}
		}

		a.Status = to
		if mutate != nil {
			mutate(&a)
		}
		if err := tx.UpdateAppointmentStatus(ctx, a); err != nil {
			return err
		}
		out = a
		return tx.InsertEvent(ctx, appointmentEvent(eventType, a))
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return out, nil
}
