package booking

import (
	"time"

	"github.com/crestline-tours/service-booking/internal/domain"
)

// BookingRequest is the caller's transient intent. It is never persisted.
// A nil StartMinute means "any start"; the engine enumerates all feasible
// slots in that case.
type BookingRequest struct {
	Date            time.Time `json:"date"`
	StartMinute     *int      `json:"start_minute,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	PartySize       int       `json:"party_size"`
	VehicleClass    string    `json:"vehicle_class,omitempty"`
}

// Validate checks the fields the core can judge without configuration.
// Horizon and allowed-duration checks live in the availability engine,
// which owns those settings.
func (r BookingRequest) Validate() error {
	if r.Date.IsZero() {
		return domain.NewValidationError("date is required")
	}
	if r.DurationMinutes <= 0 {
		return domain.NewValidationError("duration must be positive")
	}
	if r.PartySize < 1 {
		return domain.NewValidationError("party size must be at least 1")
	}
	if r.StartMinute != nil && (*r.StartMinute < 0 || *r.StartMinute >= 24*60) {
		return domain.NewValidationError("start minute outside the day")
	}
	return nil
}

// Window builds the concrete time window for the given start.
func (r BookingRequest) Window(startMinute int) (TimeWindow, error) {
	return NewTimeWindow(r.Date, startMinute, startMinute+r.DurationMinutes)
}
