package events

import (
	"time"

	"github.com/google/uuid"
)

// Default topics; deployments override them through configuration.
const (
	TopicBookingEvents = "booking.events"
	TopicPaymentEvents = "payment.events"
)

// Event types.
const (
	BookingHeld      = "booking.held"
	BookingConfirmed = "booking.confirmed"
	BookingCompleted = "booking.completed"
	BookingReleased  = "booking.released"

	PaymentDepositReceived = "payment.deposit_received"
)

// BookingHeldEvent is emitted when a commit transaction succeeds and the
// booking enters held state with its resources assigned.
type BookingHeldEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	VehicleID     int64     `json:"vehicle_id"`
	DriverID      int64     `json:"driver_id"`
	Date          string    `json:"date"` // YYYY-MM-DD
	StartMinute   int       `json:"start_minute"`
	EndMinute     int       `json:"end_minute"`
	PartySize     int       `json:"party_size"`
	TotalCents    int64     `json:"total_cents"`
	DepositCents  int64     `json:"deposit_cents"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingConfirmedEvent is emitted when a held booking is confirmed after
// its deposit arrives.
type BookingConfirmedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingCompletedEvent is emitted when a confirmed booking's tour has
// taken place.
type BookingCompletedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	TotalCents    int64     `json:"total_cents"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingReleasedEvent is emitted when a booking is cancelled or an
// expired hold is swept, freeing its vehicle and driver.
type BookingReleasedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	VehicleID     int64     `json:"vehicle_id"`
	DriverID      int64     `json:"driver_id"`
	Date          string    `json:"date"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// DepositReceivedEvent arrives from the payment service when a booking's
// deposit settles.
type DepositReceivedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	PaymentID   uuid.UUID `json:"payment_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
}
