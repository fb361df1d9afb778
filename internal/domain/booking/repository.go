package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// CreateHeld persists a new held booking as one durable unit: the
	// booking row, its resource assignment, a timeline event and the
	// per-year sequence increment that yields the booking number. All
	// four are written or none; the assigned number is set on the
	// aggregate before return.
	CreateHeld(ctx context.Context, booking *Booking) error

	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByNumber retrieves a booking by its sequential booking number.
	FindByNumber(ctx context.Context, number string) (*Booking, error)

	// ListOccupyingByDate retrieves every booking on the date whose
	// status still occupies resources (any status except cancelled).
	// This is the authoritative set for conflict checks; callers must
	// not substitute a cache here.
	ListOccupyingByDate(ctx context.Context, date time.Time) ([]*Booking, error)

	// Update persists a status transition with optimistic locking.
	Update(ctx context.Context, booking *Booking) error

	// Release cancels the booking and deletes its resource assignment in
	// a single transaction, appending a timeline event.
	Release(ctx context.Context, booking *Booking) error

	// ListHeldBefore retrieves held bookings created before the cutoff
	// (for the external expiry sweeper).
	ListHeldBefore(ctx context.Context, cutoff time.Time) ([]*Booking, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)
}
