//go:build integration

package main_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/crestline-tours/service-booking/internal/application"
	bookingEvents "github.com/crestline-tours/service-booking/internal/events"
	"github.com/crestline-tours/service-booking/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCommitBooking_EndToEnd commits a booking through the full stack and
// verifies the held row, the sequential booking number, the resource
// assignment and the published BookingHeldEvent.
func TestCommitBooking_EndToEnd(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	vehicleID, driverID := seedFleet(t, infra.DB)
	seedBasePricingRule(t, infra.DB)

	date := tourDate()
	dto := commitTestBooking(t, stack.Service, date, 600)

	assert.Equal(t, "held", dto.Status)
	assert.Equal(t, vehicleID, dto.VehicleID)
	assert.Equal(t, driverID, dto.DriverID)
	assert.Regexp(t, `^CRS-\d{4}-00001$`, dto.BookingNumber)

	// 240 minutes at 6000/h on a 20000 base with 8 people at 500 each:
	// 20000 + 24000 + 4000 = 48000, deposit 30% = 14400.
	assert.Equal(t, int64(48000), dto.Breakdown.TotalCents)
	assert.Equal(t, int64(14400), dto.Breakdown.DepositCents)
	assert.Equal(t, int64(33600), dto.Breakdown.BalanceCents)

	var assignment repository.ResourceAssignmentModel
	require.NoError(t, infra.DB.Where("booking_id = ?", dto.ID).First(&assignment).Error)
	assert.Equal(t, vehicleID, assignment.VehicleID)
	assert.Equal(t, driverID, assignment.DriverID)

	ce := consumeOneEvent(t, infra.KafkaBrokers, "booking.events", bookingEvents.BookingHeld, 15*time.Second)
	var held bookingEvents.BookingHeldEvent
	require.NoError(t, ce.ParseData(&held))
	assert.Equal(t, dto.ID, held.BookingID)
	assert.Equal(t, dto.BookingNumber, held.BookingNumber)
	assert.Equal(t, int64(48000), held.TotalCents)
}

// TestConcurrentCommits_SingleWinner fires several commits for the same
// window against a fleet of one vehicle and one driver. Exactly one may
// win; the rest get a conflict, never a double booking.
func TestConcurrentCommits_SingleWinner(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	seedFleet(t, infra.DB)
	seedBasePricingRule(t, infra.DB)

	const attempts = 5
	date := tourDate()
	start := 600

	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := stack.Service.CommitBooking(context.Background(), application.CommitBookingRequest{
				Date:            date,
				StartMinute:     &start,
				DurationMinutes: 240,
				PartySize:       4,
				VehicleClass:    "coach",
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent commit may win")

	var count int64
	require.NoError(t, infra.DB.Model(&repository.BookingModel{}).
		Where("date = ? AND status <> 'cancelled'", date).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// TestDepositReceived_ConfirmsBooking verifies that a DepositReceivedEvent
// on payment.events confirms the held booking and emits BookingConfirmed.
func TestDepositReceived_ConfirmsBooking(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	seedFleet(t, infra.DB)
	seedBasePricingRule(t, infra.DB)
	dto := commitTestBooking(t, stack.Service, tourDate(), 600)

	// Start the consumer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	evt := bookingEvents.DepositReceivedEvent{
		BookingID:   dto.ID,
		PaymentID:   uuid.New(),
		AmountCents: dto.Breakdown.DepositCents,
		Currency:    "EUR",
		OccurredAt:  time.Now().UTC(),
	}
	publishTestEvent(t, infra.KafkaBrokers, "payment.events",
		"service-payment", bookingEvents.PaymentDepositReceived, evt)

	model := waitForBookingStatus(t, infra.DB, dto.ID, "confirmed", 15*time.Second)
	assert.Equal(t, int64(2), model.Version)

	ce := consumeOneEvent(t, infra.KafkaBrokers, "booking.events",
		bookingEvents.BookingConfirmed, 15*time.Second)

	var confirmed bookingEvents.BookingConfirmedEvent
	require.NoError(t, ce.ParseData(&confirmed))
	assert.Equal(t, dto.ID, confirmed.BookingID)
	assert.Equal(t, dto.BookingNumber, confirmed.BookingNumber)
}
