package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/model"
)

// Window is an open sub-window of a business day, in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

const (
	// Fallback window applied when a weekday entry is misconfigured
	// (open >= close): 09:00-17:00 local.
	defaultOpenMinute  = 9 * 60
	defaultCloseMinute = 17 * 60
)

// Store provides the date-specific inputs the resolver merges over the
// weekly recurring hours.
type Store interface {
	GetHoursOverride(ctx context.Context, businessID uuid.UUID, date string) (model.HoursOverride, bool, error)
	ListClosuresOn(ctx context.Context, businessID uuid.UUID, date string) ([]model.Closure, error)
	GetStaffHours(ctx context.Context, staffID uuid.UUID, weekday int) (model.StaffHours, bool, error)
}

type Resolver struct {
	store  Store
	logger *slog.Logger
}

func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// DayWindows resolves the open sub-windows of one calendar date for a
// business: a date override is authoritative over the weekly entry, a
// break splits the window, and closures carve out their time ranges.
// An empty result means the business is closed that day.
func (r *Resolver) DayWindows(ctx context.Context, biz model.Business, date string) ([]Window, error) {
	loc, known := biz.Location()
	if !known {
		r.logger.Warn("unknown business timezone, using UTC", "business_id", biz.ID, "timezone", biz.Timezone)
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, err
	}

	open, closeAt, isOpen, fromOverride, err := r.baseWindow(ctx, biz, day, date)
	if err != nil {
		return nil, err
	}
	if !isOpen {
		return nil, nil
	}

	base := Window{Start: minuteOf(day, open), End: minuteOf(day, closeAt)}

	var blocked []Window
	if !fromOverride {
		if b := r.breakSpan(biz, day); b != nil {
			blocked = append(blocked, *b)
		}
	}

	closures, err := r.store.ListClosuresOn(ctx, biz.ID, date)
	if err != nil {
		return nil, err
	}
	for _, c := range closures {
		if c.FullDay() {
			return nil, nil
		}
		blocked = append(blocked, Window{
			Start: minuteOf(day, *c.StartMinute),
			End:   minuteOf(day, *c.EndMinute),
		})
	}

	windows := Subtract(base, blocked)
	for i := range windows {
		windows[i].Start = windows[i].Start.UTC()
		windows[i].End = windows[i].End.UTC()
	}
	return windows, nil
}

// StaffDayWindows narrows the business day windows to one staff member's
// working hours when the staff carries a weekday override.
func (r *Resolver) StaffDayWindows(ctx context.Context, biz model.Business, staffID uuid.UUID, date string) ([]Window, error) {
	windows, err := r.DayWindows(ctx, biz, date)
	if err != nil || len(windows) == 0 {
		return windows, err
	}

	loc, _ := biz.Location()
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, err
	}

	sh, ok, err := r.store.GetStaffHours(ctx, staffID, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	if !ok {
		return windows, nil
	}
	if !sh.IsWorking {
		return nil, nil
	}
	if sh.StartMinute >= sh.EndMinute {
		r.logger.Warn("staff working hours misconfigured, using business hours",
			"staff_id", staffID, "weekday", sh.Weekday)
		return windows, nil
	}

	staffWin := Window{
		Start: minuteOf(day, sh.StartMinute).UTC(),
		End:   minuteOf(day, sh.EndMinute).UTC(),
	}
	var out []Window
	for _, w := range windows {
		s, e := w.Start, w.End
		if staffWin.Start.After(s) {
			s = staffWin.Start
		}
		if staffWin.End.Before(e) {
			e = staffWin.End
		}
		if e.After(s) {
			out = append(out, Window{Start: s, End: e})
		}
	}
	return out, nil
}

// baseWindow picks the day's opening bounds. A date override replaces
// the weekly entry entirely, break included, so fromOverride tells the
// caller to skip the weekly break.
func (r *Resolver) baseWindow(ctx context.Context, biz model.Business, day time.Time, date string) (open, closeAt int, isOpen, fromOverride bool, err error) {
	ov, found, err := r.store.GetHoursOverride(ctx, biz.ID, date)
	if err != nil {
		return 0, 0, false, false, err
	}
	if found {
		if !ov.IsOpen {
			return 0, 0, false, true, nil
		}
		if ov.OpenMinute >= ov.CloseMinute {
			r.logger.Warn("hours override misconfigured, using default window",
				"business_id", biz.ID, "date", date, "open", ov.OpenMinute, "close", ov.CloseMinute)
			return defaultOpenMinute, defaultCloseMinute, true, true, nil
		}
		return ov.OpenMinute, ov.CloseMinute, true, true, nil
	}

	d := biz.Hours[int(day.Weekday())]
	if !d.IsOpen {
		return 0, 0, false, false, nil
	}
	if d.OpenMinute >= d.CloseMinute {
		r.logger.Warn("weekly hours misconfigured, using default window",
			"business_id", biz.ID, "weekday", int(day.Weekday()), "open", d.OpenMinute, "close", d.CloseMinute)
		return defaultOpenMinute, defaultCloseMinute, true, false, nil
	}
	return d.OpenMinute, d.CloseMinute, true, false, nil
}

// breakSpan returns the weekday break as a blocked span; overrides carry
// no break so only the weekly entry contributes one.
func (r *Resolver) breakSpan(biz model.Business, day time.Time) *Window {
	d := biz.Hours[int(day.Weekday())]
	if d.BreakStartMinute == nil || d.BreakEndMinute == nil {
		return nil
	}
	bs, be := *d.BreakStartMinute, *d.BreakEndMinute
	if bs >= be {
		return nil
	}
	return &Window{Start: minuteOf(day, bs), End: minuteOf(day, be)}
}

func minuteOf(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).
		Add(time.Duration(minute) * time.Minute)
}
