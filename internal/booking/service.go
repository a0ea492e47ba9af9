// Package booking implements the availability read path, the booking
// write path, and the appointment lifecycle. It owns the business rules;
// storage, schedule resolution, occupancy and quota are injected behind
// small interfaces.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/availability"
	"github.com/slotwise/bookingd/internal/model"
	"github.com/slotwise/bookingd/internal/occupancy"
	"github.com/slotwise/bookingd/internal/schedule"
)

// SlotStep is the candidate-start granularity of the slot grid.
const SlotStep = 15 * time.Minute

type Service struct {
	dir      Directory
	resolver WindowResolver
	occ      OccupancyReader
	quota    QuotaGate
	store    Store
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(dir Directory, resolver WindowResolver, occ OccupancyReader, quota QuotaGate, store Store, logger *slog.Logger) *Service {
	return &Service{
		dir:      dir,
		resolver: resolver,
		occ:      occ,
		quota:    quota,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// Slot is one bookable opening. End excludes the trailing buffer: it is
// the service time the customer sees. StaffID names a staff member who
// is free for the slot, so the client can book the availability it was
// shown; it is nil for business-wide slots.
type Slot struct {
	Start     time.Time  `json:"start_time"`
	End       time.Time  `json:"end_time"`
	Available bool       `json:"available"`
	StaffID   *uuid.UUID `json:"staff_id,omitempty"`
}

type AvailabilityRequest struct {
	BusinessID uuid.UUID
	ServiceID  uuid.UUID
	StaffID    *uuid.UUID
	Date       string // YYYY-MM-DD in the business timezone
}

// AvailableSlots computes the open slots for one service on one date.
// With a staff id the scope is that staff member's calendar; without
// one, a slot is open when any staff eligible for the service is free,
// or, for businesses without staff assignments, when the business-wide
// calendar is free. A closed day yields an empty list, not an error.
func (s *Service) AvailableSlots(ctx context.Context, req AvailabilityRequest) ([]Slot, error) {
	biz, svc, err := s.loadBusinessService(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		return nil, err
	}

	loc, _ := biz.Location()
	day, err := time.ParseInLocation("2006-01-02", req.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q", ErrOutOfPolicy, req.Date)
	}
	if !s.dateWithinAdvanceBounds(svc, day, loc) {
		return []Slot{}, nil
	}

	if req.StaffID != nil {
		if err := s.checkStaff(ctx, biz.ID, svc, *req.StaffID); err != nil {
			return nil, err
		}
		starts, err := s.openStarts(ctx, biz, svc, req.StaffID, req.Date)
		if err != nil {
			return nil, err
		}
		return toSlots(starts, svc.Duration(), req.StaffID), nil
	}

	eligible, err := s.dir.ListEligibleStaff(ctx, svc.ID)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		starts, err := s.openStarts(ctx, biz, svc, nil, req.Date)
		if err != nil {
			return nil, err
		}
		return toSlots(starts, svc.Duration(), nil), nil
	}

	// Union across eligible staff: a start is open when at least one
	// staff member is free for it. The slot keeps that staff member's
	// id so booking targets the calendar that was actually free.
	freeStaff := map[time.Time]uuid.UUID{}
	var union []time.Time
	for _, st := range eligible {
		staffID := st.ID
		starts, err := s.openStarts(ctx, biz, svc, &staffID, req.Date)
		if err != nil {
			return nil, err
		}
		for _, t := range starts {
			if _, dup := freeStaff[t]; dup {
				continue
			}
			freeStaff[t] = staffID
			union = append(union, t)
		}
	}
	sort.Slice(union, func(i, j int) bool { return union[i].Before(union[j]) })

	slots := make([]Slot, 0, len(union))
	for _, t := range union {
		id := freeStaff[t]
		slots = append(slots, Slot{Start: t, End: t.Add(svc.Duration()), Available: true, StaffID: &id})
	}
	return slots, nil
}

func (s *Service) openStarts(ctx context.Context, biz model.Business, svc model.Service, staffID *uuid.UUID, date string) ([]time.Time, error) {
	var windows []schedule.Window
	var err error
	if staffID != nil {
		windows, err = s.resolver.StaffDayWindows(ctx, biz, *staffID, date)
	} else {
		windows, err = s.resolver.DayWindows(ctx, biz, date)
	}
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	busy, err := s.occ.Busy(ctx, biz.ID, staffID, windows[0].Start, windows[len(windows)-1].End)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var open []time.Time
	for _, w := range windows {
		for _, t := range availability.Candidates(w.Start, w.End, svc.Duration(), svc.Buffer(), SlotStep, now) {
			if !availability.ConflictsAny(footprint(t, svc), busy) {
				open = append(open, t)
			}
		}
	}
	return open, nil
}

// footprint is the interval a candidate booking would occupy, matching
// the expansion applied to existing appointments.
func footprint(start time.Time, svc model.Service) availability.Interval {
	return availability.Interval{
		Start: start.Add(-occupancy.PreBuffer),
		End:   start.Add(svc.Duration() + svc.Buffer()),
	}
}

func toSlots(starts []time.Time, duration time.Duration, staffID *uuid.UUID) []Slot {
	slots := make([]Slot, 0, len(starts))
	for _, t := range starts {
		slots = append(slots, Slot{Start: t, End: t.Add(duration), Available: true, StaffID: staffID})
	}
	return slots
}

func (s *Service) loadBusinessService(ctx context.Context, businessID, serviceID uuid.UUID) (model.Business, model.Service, error) {
	biz, found, err := s.dir.GetBusiness(ctx, businessID)
	if err != nil {
		return model.Business{}, model.Service{}, err
	}
	if !found {
		return model.Business{}, model.Service{}, fmt.Errorf("%w: business", ErrNotFound)
	}
	svc, found, err := s.dir.GetService(ctx, businessID, serviceID)
	if err != nil {
		return model.Business{}, model.Service{}, err
	}
	if !found || !svc.IsActive {
		return model.Business{}, model.Service{}, fmt.Errorf("%w: service", ErrNotFound)
	}
	return biz, svc, nil
}

func (s *Service) checkStaff(ctx context.Context, businessID uuid.UUID, svc model.Service, staffID uuid.UUID) error {
	st, found, err := s.dir.GetStaff(ctx, businessID, staffID)
	if err != nil {
		return err
	}
	if !found || !st.IsActive {
		return fmt.Errorf("%w: staff", ErrNotFound)
	}
	assigned, err := s.dir.IsStaffAssigned(ctx, staffID, svc.ID)
	if err != nil {
		return err
	}
	if !assigned {
		return fmt.Errorf("%w: staff not assigned to service", ErrNotFound)
	}
	return nil
}

// dateWithinAdvanceBounds checks the min/max advance-booking policy
// against local calendar days, so "bookable from tomorrow" flips at
// local midnight rather than 24 hours from now.
func (s *Service) dateWithinAdvanceBounds(svc model.Service, day time.Time, loc *time.Location) bool {
	nowLocal := s.now().In(loc)
	today := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), 0, 0, 0, 0, loc)
	// Rounding absorbs DST days of 23 or 25 hours.
	daysAhead := int((day.Sub(today).Hours() + 12) / 24)
	if daysAhead < svc.MinAdvanceDays {
		return false
	}
	if svc.MaxAdvanceDays > 0 && daysAhead > svc.MaxAdvanceDays {
		return false
	}
	return true
}

// GetAppointment loads one appointment scoped to a business.
func (s *Service) GetAppointment(ctx context.Context, businessID, id uuid.UUID) (model.Appointment, error) {
	a, found, err := s.store.GetAppointment(ctx, businessID, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !found {
		return model.Appointment{}, fmt.Errorf("%w: appointment", ErrNotFound)
	}
	return a, nil
}

// ListAppointments returns a business's appointments, newest first.
func (s *Service) ListAppointments(ctx context.Context, businessID uuid.UUID, limit int) ([]model.Appointment, error) {
	return s.store.ListByBusiness(ctx, businessID, limit)
}
