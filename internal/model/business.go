package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DayHours is one weekday entry of a business's recurring hours.
// Times are minutes from local midnight in the business timezone.
type DayHours struct {
	IsOpen           bool `json:"is_open"`
	OpenMinute       int  `json:"open_minute"`
	CloseMinute      int  `json:"close_minute"`
	BreakStartMinute *int `json:"break_start_minute,omitempty"`
	BreakEndMinute   *int `json:"break_end_minute,omitempty"`
}

// WeeklyHours holds one entry per weekday, indexed 0=Sunday..6=Saturday.
type WeeklyHours [7]DayHours

// Validate rejects malformed hours at the ingestion boundary so the
// resolver never sees an inconsistent entry it cannot warn about.
func (w WeeklyHours) Validate() error {
	for wd, d := range w {
		if !d.IsOpen {
			continue
		}
		if d.OpenMinute < 0 || d.OpenMinute >= minutesPerDay || d.CloseMinute <= 0 || d.CloseMinute > minutesPerDay {
			return fmt.Errorf("weekday %d: open/close minutes out of range", wd)
		}
		if d.OpenMinute >= d.CloseMinute {
			return fmt.Errorf("weekday %d: open %d not before close %d", wd, d.OpenMinute, d.CloseMinute)
		}
		if (d.BreakStartMinute == nil) != (d.BreakEndMinute == nil) {
			return fmt.Errorf("weekday %d: break start and end must both be set", wd)
		}
		if d.BreakStartMinute != nil {
			bs, be := *d.BreakStartMinute, *d.BreakEndMinute
			if bs >= be || bs < d.OpenMinute || be > d.CloseMinute {
				return fmt.Errorf("weekday %d: break %d-%d outside open window", wd, bs, be)
			}
		}
	}
	return nil
}

const minutesPerDay = 24 * 60

type Business struct {
	ID          uuid.UUID
	Name        string
	Timezone    string
	AutoConfirm bool
	Hours       WeeklyHours
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Location resolves the business timezone, falling back to UTC when the
// stored name is unknown to the host tzdata.
func (b Business) Location() (*time.Location, bool) {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

// HoursOverride replaces the weekly entry for one calendar date.
type HoursOverride struct {
	BusinessID  uuid.UUID
	Date        string // YYYY-MM-DD in the business timezone
	IsOpen      bool
	OpenMinute  int
	CloseMinute int
}

// Closure marks a date range fully or partially unavailable. Nil minute
// bounds mean the whole day is closed.
type Closure struct {
	ID          uuid.UUID
	BusinessID  uuid.UUID
	StartDate   string // YYYY-MM-DD inclusive
	EndDate     string // YYYY-MM-DD inclusive
	StartMinute *int
	EndMinute   *int
	Reason      string
	ClosureType string
	CreatedAt   time.Time
}

// Covers reports whether the closure applies to the given date.
func (c Closure) Covers(date string) bool {
	return c.StartDate <= date && date <= c.EndDate
}

// FullDay reports whether the closure blocks the entire day.
func (c Closure) FullDay() bool {
	return c.StartMinute == nil || c.EndMinute == nil
}

type Service struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	Name            string
	DurationMinutes int
	BufferMinutes   int
	MinAdvanceDays  int
	MaxAdvanceDays  int
	IsActive        bool
	CreatedAt       time.Time
}

func (s Service) Duration() time.Duration { return time.Duration(s.DurationMinutes) * time.Minute }
func (s Service) Buffer() time.Duration   { return time.Duration(s.BufferMinutes) * time.Minute }

type Staff struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Name       string
	IsActive   bool
	CreatedAt  time.Time
}

// StaffHours is a per-staff weekday override of the business hours.
type StaffHours struct {
	StaffID     uuid.UUID
	Weekday     int
	IsWorking   bool
	StartMinute int
	EndMinute   int
}
