package application

import (
	"context"
	"fmt"
	"time"

	"github.com/crestline-tours/service-booking/internal/availability"
	"github.com/crestline-tours/service-booking/internal/config"
	"github.com/crestline-tours/service-booking/internal/domain"
	bookingDomain "github.com/crestline-tours/service-booking/internal/domain/booking"
	"github.com/crestline-tours/service-booking/internal/events"
	"github.com/crestline-tours/service-booking/internal/pricing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxAssignAttempts bounds how many candidate pairs one commit tries
// before giving up with a retryable conflict.
const maxAssignAttempts = 3

// AvailabilityRequest is the inbound shape for availability and quote
// queries.
type AvailabilityRequest struct {
	Date            string `json:"date" binding:"required"` // YYYY-MM-DD
	StartMinute     *int   `json:"start_minute"`
	DurationMinutes int    `json:"duration_minutes" binding:"required"`
	PartySize       int    `json:"party_size" binding:"required"`
	VehicleClass    string `json:"vehicle_class"`
}

// CommitBookingRequest is the inbound shape for a booking commit. The
// start is mandatory here: a commit pins one concrete window, it never
// lets the service pick one.
type CommitBookingRequest struct {
	Date            string `json:"date" binding:"required"`
	StartMinute     *int   `json:"start_minute" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"required"`
	PartySize       int    `json:"party_size" binding:"required"`
	VehicleClass    string `json:"vehicle_class"`
}

// QuoteDTO is the response representation of a price quote.
type QuoteDTO struct {
	Breakdown bookingDomain.PriceBreakdown `json:"breakdown"`
	QuotedAt  time.Time                    `json:"quoted_at"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID            uuid.UUID                    `json:"id"`
	BookingNumber string                       `json:"booking_number"`
	Status        string                       `json:"status"`
	VehicleID     int64                        `json:"vehicle_id"`
	DriverID      int64                        `json:"driver_id"`
	Date          string                       `json:"date"`
	StartMinute   int                          `json:"start_minute"`
	EndMinute     int                          `json:"end_minute"`
	PartySize     int                          `json:"party_size"`
	Breakdown     bookingDomain.PriceBreakdown `json:"breakdown"`
	CancelNote    string                       `json:"cancel_note,omitempty"`
	Version       int64                        `json:"version"`
	CreatedAt     time.Time                    `json:"created_at"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

// BookingService orchestrates the booking lifecycle: availability checks,
// quotes, the commit transaction and releases.
type BookingService struct {
	repo      bookingDomain.BookingRepository
	snapshots *SnapshotSource
	engine    *availability.Engine
	evaluator *pricing.Evaluator
	locks     *resourceLockTable
	producer  *events.Producer
	cfg       config.BookingConfig
	topic     string
	logger    *zap.Logger
	now       func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	snapshots *SnapshotSource,
	engine *availability.Engine,
	evaluator *pricing.Evaluator,
	producer *events.Producer,
	cfg config.BookingConfig,
	bookingTopic string,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		snapshots: snapshots,
		engine:    engine,
		evaluator: evaluator,
		locks:     newResourceLockTable(),
		producer:  producer,
		cfg:       cfg,
		topic:     bookingTopic,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CheckAvailability answers what windows are feasible for the request.
// Directory and rule snapshots may come from the cache; the booking
// conflict set is always read from the database.
func (s *BookingService) CheckAvailability(ctx context.Context, req AvailabilityRequest) (*availability.Result, error) {
	domReq, err := toDomainRequest(req.Date, req.StartMinute, req.DurationMinutes, req.PartySize, req.VehicleClass)
	if err != nil {
		return nil, err
	}

	resSnap, ruleSnap, err := s.snapshots.Cached(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}
	bookings, err := s.repo.ListOccupyingByDate(ctx, domReq.Date)
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}

	snap := availability.Snapshot{Resources: resSnap, Rules: ruleSnap, Bookings: bookings}
	return s.engine.FindAvailability(domReq, snap, s.now())
}

// QuotePrice evaluates the pricing rules for the request without creating
// anything. Quotes are advisory; the commit recomputes the price.
func (s *BookingService) QuotePrice(ctx context.Context, req AvailabilityRequest) (*QuoteDTO, error) {
	domReq, err := toDomainRequest(req.Date, req.StartMinute, req.DurationMinutes, req.PartySize, req.VehicleClass)
	if err != nil {
		return nil, err
	}
	if err := s.engine.ValidateRequest(domReq, s.now()); err != nil {
		return nil, err
	}

	_, ruleSnap, err := s.snapshots.Cached(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}

	breakdown, err := s.evaluator.Quote(domReq, ruleSnap)
	if err != nil {
		return nil, err
	}
	return &QuoteDTO{Breakdown: *breakdown, QuotedAt: s.now()}, nil
}

// CommitBooking runs the full booking transaction: validate, price, lock
// the chosen vehicle/driver pair, re-check availability under the lock
// against fresh data, then persist booking, assignment, number and
// timeline event atomically. On success the booking is held.
func (s *BookingService) CommitBooking(ctx context.Context, req CommitBookingRequest) (*BookingDTO, error) {
	domReq, err := toDomainRequest(req.Date, req.StartMinute, req.DurationMinutes, req.PartySize, req.VehicleClass)
	if err != nil {
		return nil, err
	}
	if domReq.StartMinute == nil {
		return nil, domain.NewValidationError("start_minute is required to commit a booking")
	}
	if err := s.engine.ValidateRequest(domReq, s.now()); err != nil {
		return nil, err
	}

	win, err := domReq.Window(*domReq.StartMinute)
	if err != nil {
		return nil, err
	}

	// Price from a fresh rule snapshot; the committed breakdown must
	// reflect the rules in force now, not a cached quote.
	_, ruleSnap, err := s.snapshots.Fresh(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}
	breakdown, err := s.evaluator.Quote(domReq, ruleSnap)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxAssignAttempts; attempt++ {
		dto, retry, err := s.tryCommit(ctx, domReq, win, *breakdown)
		if err != nil {
			return nil, err
		}
		if retry {
			continue
		}
		return dto, nil
	}
	return nil, domain.NewSlotUnavailableError("requested window was taken by concurrent bookings")
}

// tryCommit attempts one assignment. retry=true means the chosen pair was
// lost to a concurrent commit and the caller should pick again.
func (s *BookingService) tryCommit(
	ctx context.Context,
	domReq bookingDomain.BookingRequest,
	win bookingDomain.TimeWindow,
	breakdown bookingDomain.PriceBreakdown,
) (*BookingDTO, bool, error) {
	snap, err := s.freshEngineSnapshot(ctx, win.Date)
	if err != nil {
		return nil, false, err
	}

	vehicleIDs, driverIDs := s.engine.Candidates(domReq, snap, win)
	if len(vehicleIDs) == 0 || len(driverIDs) == 0 {
		return nil, false, domain.NewSlotUnavailableError("no vehicle and driver are both free for the requested window")
	}
	vehicleID, driverID := vehicleIDs[0], driverIDs[0]

	unlock := s.locks.lockPair(vehicleID, driverID)
	defer unlock()

	// Authoritative re-check under the lock. Whatever the read path said
	// earlier no longer matters; only this check admits the booking.
	snap, err = s.freshEngineSnapshot(ctx, win.Date)
	if err != nil {
		return nil, false, err
	}
	vehicleIDs, driverIDs = s.engine.Candidates(domReq, snap, win)
	if !containsID(vehicleIDs, vehicleID) || !containsID(driverIDs, driverID) {
		s.logger.Debug("candidate pair lost before lock, retrying",
			zap.Int64("vehicle_id", vehicleID),
			zap.Int64("driver_id", driverID),
		)
		return nil, true, nil
	}

	bk, err := bookingDomain.NewHeld(vehicleID, driverID, win, domReq.PartySize, breakdown)
	if err != nil {
		return nil, false, err
	}

	// The persist phase runs to completion even if the caller goes away:
	// a half-decided commit must either land durably or roll back in the
	// database, not depend on the HTTP client's patience.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CommitTimeout())
	defer cancel()
	if err := s.repo.CreateHeld(persistCtx, bk); err != nil {
		return nil, false, domain.NewPersistenceError(fmt.Errorf("commit transaction failed: %w", err))
	}

	s.logger.Info("booking committed",
		zap.String("booking_number", bk.Number()),
		zap.Int64("vehicle_id", vehicleID),
		zap.Int64("driver_id", driverID),
		zap.String("date", win.Date.Format("2006-01-02")),
	)

	evt := events.BookingHeldEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.Number(),
		VehicleID:     vehicleID,
		DriverID:      driverID,
		Date:          win.Date.Format("2006-01-02"),
		StartMinute:   win.StartMinute,
		EndMinute:     win.EndMinute,
		PartySize:     bk.PartySize(),
		TotalCents:    breakdown.TotalCents,
		DepositCents:  breakdown.DepositCents,
		Currency:      breakdown.Currency,
		OccurredAt:    s.now(),
	}
	s.publishEvent(ctx, events.BookingHeld, evt)

	result := toBookingDTO(bk)
	return &result, false, nil
}

// ConfirmBooking transitions a held booking to confirmed once its deposit
// has settled.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID uuid.UUID) error {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if err := bk.Confirm(); err != nil {
		return err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return err
	}

	evt := events.BookingConfirmedEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.Number(),
		OccurredAt:    s.now(),
	}
	s.publishEvent(ctx, events.BookingConfirmed, evt)
	return nil
}

// CompleteBooking finalizes a confirmed booking after the tour has run.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := bk.Complete(); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	evt := events.BookingCompletedEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.Number(),
		TotalCents:    bk.Breakdown().TotalCents,
		Currency:      bk.Breakdown().Currency,
		OccurredAt:    s.now(),
	}
	s.publishEvent(ctx, events.BookingCompleted, evt)

	result := toBookingDTO(bk)
	return &result, nil
}

// ReleaseBooking cancels a booking and frees its vehicle and driver in
// one transaction.
func (s *BookingService) ReleaseBooking(ctx context.Context, bookingID uuid.UUID, reason string) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := bk.Cancel(reason); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Release(ctx, bk); err != nil {
		return nil, err
	}

	s.publishRelease(ctx, bk, reason)

	result := toBookingDTO(bk)
	return &result, nil
}

// ReleaseExpiredHolds sweeps held bookings older than the hold TTL and
// releases them. Returns how many were released.
func (s *BookingService) ReleaseExpiredHolds(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.HoldTTL())
	stale, err := s.repo.ListHeldBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, bk := range stale {
		if err := bk.Cancel("hold expired"); err != nil {
			s.logger.Warn("stale hold no longer cancellable",
				zap.String("booking_number", bk.Number()),
				zap.Error(err),
			)
			continue
		}
		bk.IncrementVersion()
		if err := s.repo.Release(ctx, bk); err != nil {
			s.logger.Error("failed to release expired hold",
				zap.String("booking_number", bk.Number()),
				zap.Error(err),
			)
			continue
		}
		s.publishRelease(ctx, bk, "hold expired")
		released++
	}

	if released > 0 {
		s.logger.Info("expired holds released", zap.Int("count", released))
	}
	return released, nil
}

// GetBooking retrieves a single booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetBookingByNumber retrieves a single booking by its booking number.
func (s *BookingService) GetBookingByNumber(ctx context.Context, number string) (*BookingDTO, error) {
	bk, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

func (s *BookingService) freshEngineSnapshot(ctx context.Context, date time.Time) (availability.Snapshot, error) {
	resSnap, ruleSnap, err := s.snapshots.Fresh(ctx)
	if err != nil {
		return availability.Snapshot{}, domain.NewPersistenceError(err)
	}
	bookings, err := s.repo.ListOccupyingByDate(ctx, date)
	if err != nil {
		return availability.Snapshot{}, domain.NewPersistenceError(err)
	}
	return availability.Snapshot{Resources: resSnap, Rules: ruleSnap, Bookings: bookings}, nil
}

func (s *BookingService) publishRelease(ctx context.Context, bk *bookingDomain.Booking, reason string) {
	evt := events.BookingReleasedEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.Number(),
		VehicleID:     bk.VehicleID(),
		DriverID:      bk.DriverID(),
		Date:          bk.Window().Date.Format("2006-01-02"),
		Reason:        reason,
		OccurredAt:    s.now(),
	}
	s.publishEvent(ctx, events.BookingReleased, evt)
}

func (s *BookingService) publishEvent(ctx context.Context, eventType string, data interface{}) {
	if s.producer == nil {
		return
	}

	cloudEvent, err := events.NewCloudEvent("service-booking", eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := s.producer.PublishEvent(ctx, s.topic, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", s.topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func toDomainRequest(date string, startMinute *int, durationMinutes, partySize int, vehicleClass string) (bookingDomain.BookingRequest, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return bookingDomain.BookingRequest{}, domain.NewValidationError("date must be formatted YYYY-MM-DD")
	}
	req := bookingDomain.BookingRequest{
		Date:            day.UTC(),
		StartMinute:     startMinute,
		DurationMinutes: durationMinutes,
		PartySize:       partySize,
		VehicleClass:    vehicleClass,
	}
	if err := req.Validate(); err != nil {
		return bookingDomain.BookingRequest{}, err
	}
	return req, nil
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:            bk.ID(),
		BookingNumber: bk.Number(),
		Status:        string(bk.Status()),
		VehicleID:     bk.VehicleID(),
		DriverID:      bk.DriverID(),
		Date:          bk.Window().Date.Format("2006-01-02"),
		StartMinute:   bk.Window().StartMinute,
		EndMinute:     bk.Window().EndMinute,
		PartySize:     bk.PartySize(),
		Breakdown:     bk.Breakdown(),
		CancelNote:    bk.CancelNote(),
		Version:       bk.Version(),
		CreatedAt:     bk.CreatedAt(),
		UpdatedAt:     bk.UpdatedAt(),
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
