package booking

import (
	"errors"
	"fmt"

	"github.com/slotwise/bookingd/internal/model"
)

var (
	// ErrNotFound covers absent or inactive business/service/staff/
	// appointment lookups.
	ErrNotFound = errors.New("not found")

	// ErrSlotTaken is the race lost at commit time: the requested
	// interval was free when availability was read but is no longer.
	// Expected under concurrent booking pressure; never retried and
	// never logged as an error.
	ErrSlotTaken = errors.New("slot no longer available")

	// ErrOutOfPolicy marks a request outside the bookable window:
	// advance-booking bounds violated or the interval falls in a
	// closed period.
	ErrOutOfPolicy = errors.New("requested time is outside booking policy")

	// ErrReasonRequired is returned when a cancellation carries no reason.
	ErrReasonRequired = errors.New("cancellation reason required")

	// ErrQuotaExceeded is the subscription gate refusing a booking
	// before any transaction starts.
	ErrQuotaExceeded = errors.New("booking quota exceeded")

	// ErrStoreTransient marks a serialization conflict or connection
	// blip; the transaction is retried a bounded number of times before
	// this surfaces to the caller.
	ErrStoreTransient = errors.New("transient store failure")
)

// InvalidTransitionError rejects a state-machine move not in the allowed
// graph, naming both states.
type InvalidTransitionError struct {
	From model.Status
	To   model.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}
