package booking

import (
	"time"

	"github.com/crestline-tours/service-booking/internal/domain"
	"github.com/google/uuid"
)

// Booking is the aggregate root for the booking domain. Once confirmed,
// its window and resources are immutable; a modification is a new booking
// transaction that first releases this one.
type Booking struct {
	id        uuid.UUID
	number    string // CRS-YYYY-NNNNN, assigned inside the commit transaction
	vehicleID int64
	driverID  int64
	window    TimeWindow
	partySize int
	breakdown PriceBreakdown
	status    BookingStatus

	cancelNote string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewHeld creates a Booking in held state with its resource assignment.
// The sequential booking number is assigned later, inside the same
// transaction that allocates it, so aborted commits never consume one.
func NewHeld(vehicleID, driverID int64, window TimeWindow, partySize int, breakdown PriceBreakdown) (*Booking, error) {
	if vehicleID <= 0 {
		return nil, domain.NewValidationError("vehicle ID is required")
	}
	if driverID <= 0 {
		return nil, domain.NewValidationError("driver ID is required")
	}
	if partySize < 1 {
		return nil, domain.NewValidationError("party size must be at least 1")
	}
	if breakdown.TotalCents <= 0 {
		return nil, domain.NewValidationError("booking total must be positive")
	}
	if breakdown.DepositCents+breakdown.BalanceCents != breakdown.TotalCents {
		return nil, domain.NewValidationError("price breakdown does not sum to total")
	}

	now := time.Now().UTC()
	return &Booking{
		id:        uuid.New(),
		vehicleID: vehicleID,
		driverID:  driverID,
		window:    window,
		partySize: partySize,
		breakdown: breakdown,
		status:    StatusHeld,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct rebuilds a Booking from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	number string,
	vehicleID, driverID int64,
	window TimeWindow,
	partySize int,
	breakdown PriceBreakdown,
	status BookingStatus,
	cancelNote string,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:         id,
		number:     number,
		vehicleID:  vehicleID,
		driverID:   driverID,
		window:     window,
		partySize:  partySize,
		breakdown:  breakdown,
		status:     status,
		cancelNote: cancelNote,
		version:    version,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// Number returns the human-readable sequential booking number.
func (b *Booking) Number() string { return b.number }

// VehicleID returns the assigned vehicle's resource id.
func (b *Booking) VehicleID() int64 { return b.vehicleID }

// DriverID returns the assigned driver's resource id.
func (b *Booking) DriverID() int64 { return b.driverID }

// Window returns the booked time window.
func (b *Booking) Window() TimeWindow { return b.window }

// PartySize returns the party size.
func (b *Booking) PartySize() int { return b.partySize }

// Breakdown returns the committed price breakdown.
func (b *Booking) Breakdown() PriceBreakdown { return b.breakdown }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// CancelNote returns the cancellation reason, if any.
func (b *Booking) CancelNote() string { return b.cancelNote }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// AssignNumber sets the sequential booking number exactly once. The number
// is a durable external contract and is never regenerated afterwards.
func (b *Booking) AssignNumber(number string) error {
	if b.number != "" {
		return domain.NewConflictError("booking number already assigned")
	}
	if number == "" {
		return domain.NewValidationError("booking number is required")
	}
	b.number = number
	return nil
}

// Confirm transitions the booking from held to confirmed.
func (b *Booking) Confirm() error {
	if !b.status.CanTransitionTo(StatusConfirmed) {
		return domain.NewInvalidStateError(string(b.status), string(StatusConfirmed))
	}
	b.status = StatusConfirmed
	b.updatedAt = time.Now().UTC()
	return nil
}

// Complete transitions the booking from confirmed to completed.
func (b *Booking) Complete() error {
	if !b.status.CanTransitionTo(StatusCompleted) {
		return domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	b.status = StatusCompleted
	b.updatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions the booking to cancelled, freeing its resources
// immediately.
func (b *Booking) Cancel(reason string) error {
	if !b.status.CanTransitionTo(StatusCancelled) {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	b.status = StatusCancelled
	b.cancelNote = reason
	b.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
