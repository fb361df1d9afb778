package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crestline-tours/service-booking/internal/domain"
	bookingDomain "github.com/crestline-tours/service-booking/internal/domain/booking"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber string          `gorm:"uniqueIndex;not null;size:20"`
	VehicleID     int64           `gorm:"index;not null"`
	DriverID      int64           `gorm:"index;not null"`
	Date          time.Time       `gorm:"index;not null"`
	StartMinute   int             `gorm:"not null"`
	EndMinute     int             `gorm:"not null"`
	PartySize     int             `gorm:"not null"`
	Breakdown     json.RawMessage `gorm:"type:jsonb;not null"`
	Status        string          `gorm:"not null;size:20;index"`
	CancelNote    string          `gorm:"size:500"`
	Version       int64           `gorm:"not null;default:1"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// ResourceAssignmentModel joins a booking to its vehicle and driver. Rows
// exist only while the booking is held or confirmed; deleting the row
// frees the resources immediately.
type ResourceAssignmentModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	VehicleID int64     `gorm:"index;not null"`
	DriverID  int64     `gorm:"index;not null"`
	Date      time.Time `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ResourceAssignmentModel) TableName() string {
	return "resource_assignments"
}

// BookingSequenceModel is the per-year counter behind booking numbers.
// It is only ever touched inside the commit transaction, so committed
// numbers are gap-free.
type BookingSequenceModel struct {
	Year      int   `gorm:"primaryKey"`
	LastValue int64 `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingSequenceModel) TableName() string {
	return "booking_sequences"
}

// TimelineEventModel is the append-only booking event log.
type TimelineEventModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID uuid.UUID `gorm:"type:uuid;index;not null"`
	EventType string    `gorm:"not null;size:40"`
	Note      string    `gorm:"size:500"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (TimelineEventModel) TableName() string {
	return "booking_timeline"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db           *gorm.DB
	numberPrefix string
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB, numberPrefix string) *GormBookingRepository {
	return &GormBookingRepository{db: db, numberPrefix: numberPrefix}
}

// CreateHeld writes the booking, its assignment, a timeline event and the
// sequence increment as one transaction. The sequence row is locked with
// SELECT ... FOR UPDATE so concurrent commits serialize on the counter,
// and an aborted transaction abandons its increment along with everything
// else: committed numbers never have gaps.
func (r *GormBookingRepository) CreateHeld(ctx context.Context, bk *bookingDomain.Booking) error {
	year := bk.Window().Date.Year()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq BookingSequenceModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("year = ?", year).
			First(&seq).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			seq = BookingSequenceModel{Year: year}
			if err := tx.Create(&seq).Error; err != nil {
				return fmt.Errorf("failed to create booking sequence for %d: %w", year, err)
			}
		case err != nil:
			return fmt.Errorf("failed to lock booking sequence for %d: %w", year, err)
		}

		seq.LastValue++
		if err := tx.Model(&BookingSequenceModel{}).
			Where("year = ?", year).
			Update("last_value", seq.LastValue).Error; err != nil {
			return fmt.Errorf("failed to advance booking sequence for %d: %w", year, err)
		}

		number := fmt.Sprintf("%s-%d-%05d", r.numberPrefix, year, seq.LastValue)
		if err := bk.AssignNumber(number); err != nil {
			return err
		}

		model, err := toBookingModel(bk)
		if err != nil {
			return err
		}
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}

		assignment := ResourceAssignmentModel{
			ID:        uuid.New(),
			BookingID: bk.ID(),
			VehicleID: bk.VehicleID(),
			DriverID:  bk.DriverID(),
			Date:      bk.Window().Date,
			CreatedAt: bk.CreatedAt(),
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return fmt.Errorf("failed to insert resource assignment: %w", err)
		}

		return appendTimelineEvent(tx, bk.ID(), "booking_held", bk.Number())
	})
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByNumber retrieves a booking by its booking number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("booking_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", number)
		}
		return nil, fmt.Errorf("failed to find booking by number: %w", err)
	}
	return toDomainBooking(&model)
}

// ListOccupyingByDate retrieves the authoritative conflict set for a date:
// every booking that still occupies its resources.
func (r *GormBookingRepository) ListOccupyingByDate(ctx context.Context, date time.Time) ([]*bookingDomain.Booking, error) {
	day := date.UTC().Truncate(24 * time.Hour)

	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("date = ? AND status <> ?", day, bookingDomain.StatusCancelled.String()).
		Order("start_minute ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list bookings for date: %w", err)
	}
	return toDomainBookings(models)
}

// Update persists a status transition with optimistic locking and appends
// the matching timeline event.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateWithVersionCheck(tx, bk); err != nil {
			return err
		}
		return appendTimelineEvent(tx, bk.ID(), "status_"+bk.Status().String(), bk.CancelNote())
	})
}

// Release persists a cancellation and deletes the resource assignment in
// the same transaction, freeing the vehicle and driver immediately.
func (r *GormBookingRepository) Release(ctx context.Context, bk *bookingDomain.Booking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateWithVersionCheck(tx, bk); err != nil {
			return err
		}
		if err := tx.Where("booking_id = ?", bk.ID()).
			Delete(&ResourceAssignmentModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete resource assignment: %w", err)
		}
		return appendTimelineEvent(tx, bk.ID(), "booking_released", bk.CancelNote())
	})
}

// ListHeldBefore retrieves held bookings created before the cutoff.
func (r *GormBookingRepository) ListHeldBefore(ctx context.Context, cutoff time.Time) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at <= ?", bookingDomain.StatusHeld.String(), cutoff).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale held bookings: %w", err)
	}
	return toDomainBookings(models)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Helpers ---

func updateWithVersionCheck(tx *gorm.DB, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return err
	}

	// Only update if the version matches (current version - 1, since
	// IncrementVersion was called before persisting).
	expectedVersion := bk.Version() - 1
	result := tx.Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":      model.Status,
			"cancel_note": model.CancelNote,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

func appendTimelineEvent(tx *gorm.DB, bookingID uuid.UUID, eventType, note string) error {
	event := TimelineEventModel{
		ID:        uuid.New(),
		BookingID: bookingID,
		EventType: eventType,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to append timeline event: %w", err)
	}
	return nil
}

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	breakdownJSON, err := json.Marshal(bk.Breakdown())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal price breakdown: %w", err)
	}

	return &BookingModel{
		ID:            bk.ID(),
		BookingNumber: bk.Number(),
		VehicleID:     bk.VehicleID(),
		DriverID:      bk.DriverID(),
		Date:          bk.Window().Date,
		StartMinute:   bk.Window().StartMinute,
		EndMinute:     bk.Window().EndMinute,
		PartySize:     bk.PartySize(),
		Breakdown:     breakdownJSON,
		Status:        string(bk.Status()),
		CancelNote:    bk.CancelNote(),
		Version:       bk.Version(),
		CreatedAt:     bk.CreatedAt(),
		UpdatedAt:     bk.UpdatedAt(),
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	var breakdown bookingDomain.PriceBreakdown
	if err := json.Unmarshal(m.Breakdown, &breakdown); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price breakdown: %w", err)
	}

	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	window, err := bookingDomain.NewTimeWindow(m.Date, m.StartMinute, m.EndMinute)
	if err != nil {
		return nil, err
	}

	return bookingDomain.Reconstruct(
		m.ID,
		m.BookingNumber,
		m.VehicleID,
		m.DriverID,
		window,
		m.PartySize,
		breakdown,
		status,
		m.CancelNote,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}
