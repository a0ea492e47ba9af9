package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/slotwise/bookingd/internal/cache"
	"github.com/slotwise/bookingd/internal/storage"
)

type entitlementPayload struct {
	BusinessID           uuid.UUID `json:"business_id"`
	Tier                 string    `json:"tier"`
	MaxDailyAppointments int       `json:"max_daily_appointments"`
}

// EntitlementsHandler mirrors billing entitlement updates into the
// local quota cache.
func EntitlementsHandler(repo *storage.EntitlementRepository, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p entitlementPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode entitlement event: %w", err)
		}
		if p.BusinessID == uuid.Nil {
			return fmt.Errorf("entitlement event missing business_id")
		}
		if err := repo.Upsert(ctx, storage.Entitlement{
			BusinessID:           p.BusinessID,
			Tier:                 p.Tier,
			MaxDailyAppointments: p.MaxDailyAppointments,
		}); err != nil {
			return err
		}
		logger.Info("entitlement updated",
			"business_id", p.BusinessID,
			"tier", p.Tier,
			"max_daily_appointments", p.MaxDailyAppointments,
		)
		return nil
	}
}

type hoursUpdatedPayload struct {
	BusinessID uuid.UUID `json:"business_id"`
}

// HoursInvalidationHandler drops cached calendar resolutions when
// another process changed a business's hours.
func HoursInvalidationHandler(cal *cache.Calendar, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p hoursUpdatedPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode hours event: %w", err)
		}
		if p.BusinessID == uuid.Nil {
			return fmt.Errorf("hours event missing business_id")
		}
		cal.Invalidate(ctx, p.BusinessID)
		logger.Info("calendar cache invalidated", "business_id", p.BusinessID)
		return nil
	}
}
