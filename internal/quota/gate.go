// Package quota gates bookings on the business's subscription
// entitlements. Entitlements are cached locally from billing events, so
// the gate never calls the billing system on the request path.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/booking"
	"github.com/slotwise/bookingd/internal/model"
	"github.com/slotwise/bookingd/internal/storage"
)

// DefaultDailyCap applies to businesses with no entitlement row yet
// (free tier, or the billing event has not arrived).
const DefaultDailyCap = 20

type Entitlements interface {
	Get(ctx context.Context, businessID uuid.UUID) (storage.Entitlement, bool, error)
}

type UsageCounter interface {
	CountActiveInRange(ctx context.Context, businessID uuid.UUID, startInclusive, endExclusive time.Time) (int, error)
}

type BusinessLookup interface {
	GetBusiness(ctx context.Context, id uuid.UUID) (model.Business, bool, error)
}

type Gate struct {
	entitlements Entitlements
	usage        UsageCounter
	businesses   BusinessLookup
	logger       *slog.Logger
}

var _ booking.QuotaGate = (*Gate)(nil)

func NewGate(entitlements Entitlements, usage UsageCounter, businesses BusinessLookup, logger *slog.Logger) *Gate {
	return &Gate{
		entitlements: entitlements,
		usage:        usage,
		businesses:   businesses,
		logger:       logger,
	}
}

// Allow checks the business's daily appointment cap against the local
// day the requested start falls on, in the business's timezone. A cap
// of zero or less means unlimited.
func (g *Gate) Allow(ctx context.Context, businessID uuid.UUID, start time.Time) error {
	limit := DefaultDailyCap
	ent, found, err := g.entitlements.Get(ctx, businessID)
	if err != nil {
		return fmt.Errorf("load entitlement: %w", err)
	}
	if found {
		limit = ent.MaxDailyAppointments
	}
	if limit <= 0 {
		return nil
	}

	loc := time.UTC
	biz, found, err := g.businesses.GetBusiness(ctx, businessID)
	if err != nil {
		return fmt.Errorf("load business: %w", err)
	}
	if found {
		loc, _ = biz.Location()
	}

	local := start.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	used, err := g.usage.CountActiveInRange(ctx, businessID, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return fmt.Errorf("count usage: %w", err)
	}
	if used >= limit {
		g.logger.Info("booking refused by quota gate",
			"business_id", businessID,
			"day", dayStart.Format("2006-01-02"),
			"used", used,
			"cap", limit,
		)
		return booking.ErrQuotaExceeded
	}
	return nil
}
