package availability

import (
	"testing"
	"time"

	"github.com/crestline-tours/service-booking/internal/domain"
	bookingDomain "github.com/crestline-tours/service-booking/internal/domain/booking"
	"github.com/crestline-tours/service-booking/internal/domain/resource"
	"github.com/crestline-tours/service-booking/internal/domain/rules"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testNow  = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	testDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
)

func testEngine() *Engine {
	return NewEngine(Config{
		HorizonDays:        365,
		AllowedDurations:   []int{120, 240, 360, 480},
		OpenMinute:         480,  // 08:00
		CloseMinute:        1200, // 20:00
		GranularityMinutes: 60,
	}, zap.NewNop())
}

func testResources() resource.Snapshot {
	return resource.Snapshot{
		TakenAt: testNow,
		Resources: []resource.Resource{
			{ID: 1, Kind: resource.KindVehicle, Name: "Minibus 1", Class: "minibus", Capacity: 8, Active: true},
			{ID: 2, Kind: resource.KindVehicle, Name: "Coach 1", Class: "coach", Capacity: 30, Active: true},
			{ID: 10, Kind: resource.KindDriver, Name: "Driver A", Active: true},
			{ID: 11, Kind: resource.KindDriver, Name: "Driver B", Active: true},
		},
	}
}

func testRules(t *testing.T, avail []rules.AvailabilityRule) rules.Snapshot {
	t.Helper()
	snap, err := rules.NewSnapshot(testNow, avail, nil, nil)
	require.NoError(t, err)
	return snap
}

func heldBooking(t *testing.T, vehicleID, driverID int64, start, end int) *bookingDomain.Booking {
	t.Helper()
	win, err := bookingDomain.NewTimeWindow(testDate, start, end)
	require.NoError(t, err)
	return bookingDomain.Reconstruct(
		uuid.New(), "CRS-2026-00001", vehicleID, driverID, win, 4,
		bookingDomain.PriceBreakdown{TotalCents: 10000, DepositCents: 3000, BalanceCents: 7000, Currency: "EUR"},
		bookingDomain.StatusHeld, "", 1, testNow, testNow,
	)
}

func request(duration, party int, class string) bookingDomain.BookingRequest {
	return bookingDomain.BookingRequest{
		Date:            testDate,
		DurationMinutes: duration,
		PartySize:       party,
		VehicleClass:    class,
	}
}

func TestValidateRequest(t *testing.T) {
	e := testEngine()

	t.Run("past date rejected", func(t *testing.T) {
		req := request(120, 2, "")
		req.Date = testNow.AddDate(0, 0, -1)
		err := e.ValidateRequest(req, testNow)
		assert.Equal(t, domain.CodeOutOfWindow, domain.CodeOf(err))
	})

	t.Run("beyond horizon rejected", func(t *testing.T) {
		req := request(120, 2, "")
		req.Date = testNow.AddDate(0, 0, 366)
		err := e.ValidateRequest(req, testNow)
		assert.Equal(t, domain.CodeOutOfWindow, domain.CodeOf(err))
	})

	t.Run("duration not offered rejected", func(t *testing.T) {
		req := request(90, 2, "")
		err := e.ValidateRequest(req, testNow)
		assert.Equal(t, domain.CodeInvalidRequest, domain.CodeOf(err))
	})

	t.Run("start outside operating hours rejected", func(t *testing.T) {
		req := request(240, 2, "")
		start := 1100 // 18:20, would end past close
		req.StartMinute = &start
		err := e.ValidateRequest(req, testNow)
		assert.Equal(t, domain.CodeInvalidRequest, domain.CodeOf(err))
	})

	t.Run("valid request accepted", func(t *testing.T) {
		req := request(240, 2, "")
		require.NoError(t, e.ValidateRequest(req, testNow))
	})
}

func TestFindAvailability_BufferExpandsOccupancy(t *testing.T) {
	e := testEngine()

	// Single vehicle and driver, booked 10:00-16:00 with a 60-minute
	// buffer rule: the pair is effectively occupied 09:00-17:00.
	res := resource.Snapshot{
		TakenAt: testNow,
		Resources: []resource.Resource{
			{ID: 1, Kind: resource.KindVehicle, Class: "minibus", Capacity: 8, Active: true},
			{ID: 10, Kind: resource.KindDriver, Active: true},
		},
	}
	rl := testRules(t, []rules.AvailabilityRule{
		{ID: 1, Kind: rules.RuleBuffer, BufferMinutes: 60},
	})
	snap := Snapshot{
		Resources: res,
		Rules:     rl,
		Bookings:  []*bookingDomain.Booking{heldBooking(t, 1, 10, 600, 960)},
	}

	result, err := e.FindAvailability(request(120, 2, ""), snap, testNow)
	require.NoError(t, err)
	require.True(t, result.Available)

	// Free intervals are [08:00,09:00) and [17:00,20:00); only starts at
	// 17:00 and 18:00 fit a 2-hour tour.
	starts := make([]int, 0, len(result.Slots))
	for _, s := range result.Slots {
		starts = append(starts, s.StartMinute)
	}
	assert.Equal(t, []int{1020, 1080}, starts)
}

func TestFindAvailability_IntersectsVehicleAndDriver(t *testing.T) {
	e := testEngine()

	// The vehicle is free all day but the only driver is booked on
	// another vehicle 08:00-20:00. Driver availability gates the result.
	res := resource.Snapshot{
		TakenAt: testNow,
		Resources: []resource.Resource{
			{ID: 1, Kind: resource.KindVehicle, Class: "minibus", Capacity: 8, Active: true},
			{ID: 2, Kind: resource.KindVehicle, Class: "minibus", Capacity: 8, Active: true},
			{ID: 10, Kind: resource.KindDriver, Active: true},
		},
	}
	snap := Snapshot{
		Resources: res,
		Rules:     testRules(t, nil),
		Bookings:  []*bookingDomain.Booking{heldBooking(t, 2, 10, 480, 1200)},
	}

	result, err := e.FindAvailability(request(120, 2, ""), snap, testNow)
	require.NoError(t, err)
	assert.False(t, result.Available)
	assert.Equal(t, ReasonNoOverlap, result.Reason)
}

func TestFindAvailability_CancelledBookingFreesResources(t *testing.T) {
	e := testEngine()

	bk := heldBooking(t, 1, 10, 480, 1200)
	require.NoError(t, bk.Cancel("client no-show"))

	res := resource.Snapshot{
		TakenAt: testNow,
		Resources: []resource.Resource{
			{ID: 1, Kind: resource.KindVehicle, Class: "minibus", Capacity: 8, Active: true},
			{ID: 10, Kind: resource.KindDriver, Active: true},
		},
	}
	snap := Snapshot{Resources: res, Rules: testRules(t, nil), Bookings: []*bookingDomain.Booking{bk}}

	result, err := e.FindAvailability(request(120, 2, ""), snap, testNow)
	require.NoError(t, err)
	assert.True(t, result.Available)
}

func TestFindAvailability_Blackout(t *testing.T) {
	e := testEngine()

	t.Run("global blackout blocks everything", func(t *testing.T) {
		rl := testRules(t, []rules.AvailabilityRule{
			{ID: 1, Kind: rules.RuleBlackout, From: testDate, To: testDate, Reason: "fleet maintenance"},
		})
		snap := Snapshot{Resources: testResources(), Rules: rl}

		result, err := e.FindAvailability(request(120, 2, ""), snap, testNow)
		require.NoError(t, err)
		assert.False(t, result.Available)
		assert.Equal(t, ReasonBlackout, result.Reason)
	})

	t.Run("resource blackout leaves the rest bookable", func(t *testing.T) {
		vehicleID := int64(1)
		rl := testRules(t, []rules.AvailabilityRule{
			{ID: 1, Kind: rules.RuleBlackout, ResourceID: &vehicleID, From: testDate, To: testDate},
		})
		snap := Snapshot{Resources: testResources(), Rules: rl}

		result, err := e.FindAvailability(request(120, 2, ""), snap, testNow)
		require.NoError(t, err)
		require.True(t, result.Available)
		require.NotNil(t, result.Suggested)
		assert.Equal(t, int64(2), result.Suggested.VehicleID)
	})
}

func TestFindAvailability_CapacityCeiling(t *testing.T) {
	e := testEngine()

	rl := testRules(t, []rules.AvailabilityRule{
		{ID: 1, Kind: rules.RuleCapacity, ResourceKind: resource.KindVehicle, MaxPerDay: 1},
	})
	snap := Snapshot{
		Resources: testResources(),
		Rules:     rl,
		Bookings:  []*bookingDomain.Booking{heldBooking(t, 1, 10, 480, 1200)},
	}

	result, err := e.FindAvailability(request(120, 2, ""), snap, testNow)
	require.NoError(t, err)
	assert.False(t, result.Available)
	assert.Equal(t, ReasonCapacity, result.Reason)
}

func TestFindAvailability_PartySizeFiltersVehicles(t *testing.T) {
	e := testEngine()
	snap := Snapshot{Resources: testResources(), Rules: testRules(t, nil)}

	// 20 people exceed the minibus but fit the coach.
	result, err := e.FindAvailability(request(240, 20, ""), snap, testNow)
	require.NoError(t, err)
	require.True(t, result.Available)
	require.NotNil(t, result.Suggested)
	assert.Equal(t, int64(2), result.Suggested.VehicleID)

	// 40 people fit nothing.
	result, err = e.FindAvailability(request(240, 40, ""), snap, testNow)
	require.NoError(t, err)
	assert.False(t, result.Available)
	assert.Equal(t, ReasonCapacity, result.Reason)
}

func TestFindAvailability_PinnedStart(t *testing.T) {
	e := testEngine()
	snap := Snapshot{Resources: testResources(), Rules: testRules(t, nil)}

	req := request(120, 2, "")
	start := 600
	req.StartMinute = &start

	result, err := e.FindAvailability(req, snap, testNow)
	require.NoError(t, err)
	require.True(t, result.Available)
	require.Len(t, result.Slots, 1)
	assert.Equal(t, 600, result.Slots[0].StartMinute)
	assert.Equal(t, 720, result.Slots[0].EndMinute)
}

func TestFindAvailability_SuggestedIsLowestIDPair(t *testing.T) {
	e := testEngine()
	snap := Snapshot{Resources: testResources(), Rules: testRules(t, nil)}

	result, err := e.FindAvailability(request(120, 2, ""), snap, testNow)
	require.NoError(t, err)
	require.True(t, result.Available)
	require.NotNil(t, result.Suggested)
	assert.Equal(t, int64(1), result.Suggested.VehicleID)
	assert.Equal(t, int64(10), result.Suggested.DriverID)
}

func TestCandidates(t *testing.T) {
	e := testEngine()

	snap := Snapshot{
		Resources: testResources(),
		Rules:     testRules(t, nil),
		Bookings:  []*bookingDomain.Booking{heldBooking(t, 1, 10, 600, 720)},
	}

	win, err := bookingDomain.NewTimeWindow(testDate, 600, 720)
	require.NoError(t, err)

	vehicleIDs, driverIDs := e.Candidates(request(120, 2, ""), snap, win)
	assert.Equal(t, []int64{2}, vehicleIDs)
	assert.Equal(t, []int64{11}, driverIDs)
}

func TestSubtract(t *testing.T) {
	free := []interval{{480, 1200}}

	free = subtract(free, interval{600, 720})
	assert.Equal(t, []interval{{480, 600}, {720, 1200}}, free)

	// Occupied range swallowing a free interval removes it entirely.
	free = subtract(free, interval{400, 640})
	assert.Equal(t, []interval{{720, 1200}}, free)

	// Non-overlapping subtraction is a no-op.
	free = subtract(free, interval{0, 100})
	assert.Equal(t, []interval{{720, 1200}}, free)
}
