package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/bookingd/internal/platform/db"
)

// Entitlement is the locally cached slice of a billing subscription:
// just what the quota gate needs. Fed by billing.entitlements.updated.v1
// events, never written by the request path.
type Entitlement struct {
	BusinessID           uuid.UUID
	Tier                 string
	MaxDailyAppointments int
	UpdatedAt            time.Time
}

type EntitlementRepository struct {
	pool *db.Pool
}

func NewEntitlementRepository(pool *db.Pool) *EntitlementRepository {
	return &EntitlementRepository{pool: pool}
}

func (r *EntitlementRepository) Get(ctx context.Context, businessID uuid.UUID) (Entitlement, bool, error) {
	var e Entitlement
	err := r.pool.QueryRow(ctx, `
		SELECT business_id, tier, max_daily_appointments, updated_at
		FROM business_entitlements
		WHERE business_id = $1
	`, businessID).Scan(&e.BusinessID, &e.Tier, &e.MaxDailyAppointments, &e.UpdatedAt)
	if err != nil {
		if IsNotFound(err) {
			return Entitlement{}, false, nil
		}
		return Entitlement{}, false, err
	}
	return e, true, nil
}

func (r *EntitlementRepository) Upsert(ctx context.Context, e Entitlement) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_entitlements (business_id, tier, max_daily_appointments, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (business_id) DO UPDATE
		SET tier = EXCLUDED.tier,
			max_daily_appointments = EXCLUDED.max_daily_appointments,
			updated_at = now()
	`, e.BusinessID, e.Tier, e.MaxDailyAppointments)
	return err
}
