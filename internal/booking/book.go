package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/availability"
	"github.com/slotwise/bookingd/internal/model"
	"github.com/slotwise/bookingd/internal/outbox"
	"github.com/slotwise/bookingd/internal/schedule"
)

const (
	bookAttempts = 3
	bookBackoff  = 100 * time.Millisecond
	bookTimeout  = 10 * time.Second
)

type BookRequest struct {
	BusinessID     uuid.UUID
	ServiceID      uuid.UUID
	StaffID        *uuid.UUID
	CustomerID     uuid.UUID
	Start          time.Time
	IdempotencyKey string
}

// Book reserves a slot. The availability read that preceded it is
// advisory only; the policy checks and the authoritative conflict check
// both happen inside the transaction, the latter backed by the database
// exclusion constraint, so a lost race surfaces as ErrSlotTaken no
// matter how the conflict slipped in. Serialization failures are
// retried a bounded number of times; ErrSlotTaken is final on first
// sight.
func (s *Service) Book(ctx context.Context, req BookRequest) (model.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, bookTimeout)
	defer cancel()

	biz, svc, err := s.loadBusinessService(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}
	if req.StaffID != nil {
		if err := s.checkStaff(ctx, biz.ID, svc, *req.StaffID); err != nil {
			return model.Appointment{}, err
		}
	}

	start := req.Start.UTC()
	if err := s.quota.Allow(ctx, biz.ID, start); err != nil {
		return model.Appointment{}, err
	}

	var appt model.Appointment
	for attempt := 1; ; attempt++ {
		appt, err = s.bookOnce(ctx, biz, svc, req, start)
		if err == nil || !errors.Is(err, ErrStoreTransient) || attempt >= bookAttempts {
			break
		}
		s.logger.Warn("booking tx retry", "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return model.Appointment{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * bookBackoff):
		}
	}
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			s.logger.Info("slot lost to concurrent booking",
				"business_id", biz.ID, "service_id", svc.ID, "start", start)
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) bookOnce(ctx context.Context, biz model.Business, svc model.Service, req BookRequest, start time.Time) (model.Appointment, error) {
	var appt model.Appointment
	err := s.store.InTx(ctx, func(tx Tx) error {
		if req.IdempotencyKey != "" {
			apptID, done, err := tx.LookupIdempotencyKey(ctx, biz.ID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if done {
				prev, found, err := tx.AppointmentForUpdate(ctx, biz.ID, apptID)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("%w: appointment for idempotency key", ErrNotFound)
				}
				appt = prev
				return nil
			}
		}

		// Policy checks run inside the transaction so they see the
		// calendar state the booking will be written against.
		if start.Before(s.now()) {
			return fmt.Errorf("%w: start in the past", ErrOutOfPolicy)
		}
		loc, _ := biz.Location()
		day := start.In(loc)
		if !s.dateWithinAdvanceBounds(svc, time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc), loc) {
			return fmt.Errorf("%w: outside advance booking window", ErrOutOfPolicy)
		}
		windows, err := s.resolveWindows(ctx, biz, req.StaffID, day.Format("2006-01-02"))
		if err != nil {
			return err
		}
		if !containedInAny(windows, start, svc.Duration()+svc.Buffer()) {
			return fmt.Errorf("%w: outside open hours", ErrOutOfPolicy)
		}

		fp := footprint(start, svc)
		busy, err := tx.BusyIntervals(ctx, biz.ID, req.StaffID, fp.Start, fp.End)
		if err != nil {
			return err
		}
		if availability.ConflictsAny(fp, busy) {
			return ErrSlotTaken
		}

		now := s.now().UTC()
		appt = model.Appointment{
			ID:              uuid.New(),
			BusinessID:      biz.ID,
			ServiceID:       svc.ID,
			StaffID:         req.StaffID,
			CustomerID:      req.CustomerID,
			StartTime:       start,
			EndTime:         start.Add(svc.Duration()),
			DurationMinutes: svc.DurationMinutes,
			BufferMinutes:   svc.BufferMinutes,
			Status:          model.StatusPending,
			BookedAt:        now,
		}
		if biz.AutoConfirm {
			appt.Status = model.StatusConfirmed
			appt.ConfirmedAt = &now
		}

		if err := tx.InsertAppointment(ctx, &appt); err != nil {
			return err
		}
		if req.IdempotencyKey != "" {
			if err := tx.SaveIdempotencyKey(ctx, biz.ID, req.IdempotencyKey, appt.ID); err != nil {
				return err
			}
		}
		return tx.InsertEvent(ctx, appointmentEvent(outbox.EventAppointmentBooked, appt))
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) resolveWindows(ctx context.Context, biz model.Business, staffID *uuid.UUID, date string) ([]schedule.Window, error) {
	if staffID != nil {
		return s.resolver.StaffDayWindows(ctx, biz, *staffID, date)
	}
	return s.resolver.DayWindows(ctx, biz, date)
}

func containedInAny(windows []schedule.Window, start time.Time, serviceSpan time.Duration) bool {
	end := start.Add(serviceSpan)
	for _, w := range windows {
		if !start.Before(w.Start) && !end.After(w.End) {
			return true
		}
	}
	return false
}

type appointmentEventPayload struct {
	AppointmentID uuid.UUID  `json:"appointment_id"`
	BusinessID    uuid.UUID  `json:"business_id"`
	ServiceID     uuid.UUID  `json:"service_id"`
	StaffID       *uuid.UUID `json:"staff_id,omitempty"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	Status        string     `json:"status"`
	CancelReason  string     `json:"cancel_reason,omitempty"`
}

func appointmentEvent(eventType string, a model.Appointment) outbox.Event {
	payload, _ := json.Marshal(appointmentEventPayload{
		AppointmentID: a.ID,
		BusinessID:    a.BusinessID,
		ServiceID:     a.ServiceID,
		StaffID:       a.StaffID,
		CustomerID:    a.CustomerID,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        string(a.Status),
		CancelReason:  a.CancelReason,
	})
	return outbox.Event{
		AggregateType: "appointment",
		AggregateID:   a.ID.String(),
		EventType:     eventType,
		Payload:       payload,
	}
}
