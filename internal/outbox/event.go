package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types emitted by this service. Appointment lifecycle events
// carry appointment id, business id, customer id and the new status;
// hours events signal that cached calendar resolutions for a business
// are stale.
const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentConfirmed = "booking.appointment.confirmed.v1"
	EventAppointmentCompleted = "booking.appointment.completed.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
	EventAppointmentNoShow    = "booking.appointment.no_show.v1"
	EventBusinessHoursUpdated = "business.hours.updated.v1"
)
