package inbox

import (
	"context"

	"github.com/slotwise/bookingd/internal/platform/db"
	"github.com/slotwise/bookingd/internal/storage"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts the event id and reports whether this is the first
// time it was seen. Duplicate deliveries hit the unique constraint and
// return false so the consumer skips replay.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if storage.IsUniqueViolation(err) {
		return false, nil
	}
	return false, err
}
