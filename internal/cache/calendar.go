// Package cache wraps calendar resolution with a Redis read-through
// cache. Invalidation bumps a per-business version counter, so stale
// entries are never served and never need to be enumerated for
// deletion.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/slotwise/bookingd/internal/booking"
	"github.com/slotwise/bookingd/internal/model"
	"github.com/slotwise/bookingd/internal/schedule"
)

// DefaultEntryTTL bounds staleness for entries whose version key was
// lost, for example after a Redis restart.
const DefaultEntryTTL = 15 * time.Minute

// Calendar decorates a WindowResolver. Redis failures degrade to the
// inner resolver: the cache is an optimization, never a dependency.
type Calendar struct {
	inner  booking.WindowResolver
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ booking.WindowResolver = (*Calendar)(nil)

func NewCalendar(inner booking.WindowResolver, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Calendar {
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	return &Calendar{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *Calendar) DayWindows(ctx context.Context, biz model.Business, date string) ([]schedule.Window, error) {
	key, ok := c.entryKey(ctx, biz.ID, date, nil)
	if ok {
		if wins, hit := c.lookup(ctx, key); hit {
			return wins, nil
		}
	}
	wins, err := c.inner.DayWindows(ctx, biz, date)
	if err != nil {
		return nil, err
	}
	if ok {
		c.store(ctx, key, wins)
	}
	return wins, nil
}

func (c *Calendar) StaffDayWindows(ctx context.Context, biz model.Business, staffID uuid.UUID, date string) ([]schedule.Window, error) {
	key, ok := c.entryKey(ctx, biz.ID, date, &staffID)
	if ok {
		if wins, hit := c.lookup(ctx, key); hit {
			return wins, nil
		}
	}
	wins, err := c.inner.StaffDayWindows(ctx, biz, staffID, date)
	if err != nil {
		return nil, err
	}
	if ok {
		c.store(ctx, key, wins)
	}
	return wins, nil
}

// Invalidate drops every cached day for the business by bumping its
// version. Called after any hours, override, closure, or staff-hours
// mutation.
func (c *Calendar) Invalidate(ctx context.Context, businessID uuid.UUID) {
	if err := c.client.Incr(ctx, versionKey(businessID)).Err(); err != nil {
		c.logger.Warn("calendar cache invalidation failed", "business_id", businessID, "err", err)
	}
}

func versionKey(businessID uuid.UUID) string {
	return "cal:v:" + businessID.String()
}

func (c *Calendar) entryKey(ctx context.Context, businessID uuid.UUID, date string, staffID *uuid.UUID) (string, bool) {
	ver, err := c.client.Get(ctx, versionKey(businessID)).Result()
	if err == redis.Nil {
		ver = "0"
	} else if err != nil {
		c.logger.Warn("calendar cache unavailable", "business_id", businessID, "err", err)
		return "", false
	}
	key := fmt.Sprintf("cal:%s:%s:%s", businessID, ver, date)
	if staffID != nil {
		key += ":staff:" + staffID.String()
	}
	return key, true
}

func (c *Calendar) lookup(ctx context.Context, key string) ([]schedule.Window, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("calendar cache read failed", "key", key, "err", err)
		}
		return nil, false
	}
	var wins []schedule.Window
	if err := json.Unmarshal(raw, &wins); err != nil {
		c.logger.Warn("calendar cache entry corrupt", "key", key, "err", err)
		return nil, false
	}
	return wins, true
}

func (c *Calendar) store(ctx context.Context, key string, wins []schedule.Window) {
	raw, err := json.Marshal(wins)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("calendar cache write failed", "key", key, "err", err)
	}
}
