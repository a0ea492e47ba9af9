package model

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is the reserved unit. StaffID is nil for staff-agnostic
// bookings, which occupy a business-wide resource rather than any one
// staff member's calendar.
type Appointment struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	ServiceID       uuid.UUID
	StaffID         *uuid.UUID
	CustomerID      uuid.UUID
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	BufferMinutes   int
	Status          Status
	BookedAt        time.Time
	ConfirmedAt     *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	CancelReason    string
	CreatedAt       time.Time
}
