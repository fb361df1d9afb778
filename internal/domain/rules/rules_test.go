package rules

import (
	"testing"
	"time"

	"github.com/crestline-tours/service-booking/internal/domain/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot_RejectsUnknownRuleKind(t *testing.T) {
	_, err := NewSnapshot(time.Now(), []AvailabilityRule{
		{ID: 1, Kind: "maintenance_window"},
	}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown availability rule kind")
}

func TestNewSnapshot_RejectsMalformedRules(t *testing.T) {
	from := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)

	_, err := NewSnapshot(time.Now(), []AvailabilityRule{
		{ID: 1, Kind: RuleBlackout, From: from, To: from.AddDate(0, 0, -2)},
	}, nil, nil)
	assert.Error(t, err, "inverted blackout range")

	_, err = NewSnapshot(time.Now(), []AvailabilityRule{
		{ID: 2, Kind: RuleBuffer, BufferMinutes: -5},
	}, nil, nil)
	assert.Error(t, err, "negative buffer")

	_, err = NewSnapshot(time.Now(), []AvailabilityRule{
		{ID: 3, Kind: RuleCapacity, ResourceKind: "boat", MaxPerDay: 2},
	}, nil, nil)
	assert.Error(t, err, "unknown resource kind")

	_, err = NewSnapshot(time.Now(), nil, nil, []string{"14-07-2026"})
	assert.Error(t, err, "malformed holiday date")
}

func TestSnapshot_BufferMinutesTakesStrictest(t *testing.T) {
	snap, err := NewSnapshot(time.Now(), []AvailabilityRule{
		{ID: 1, Kind: RuleBuffer, BufferMinutes: 30},
		{ID: 2, Kind: RuleBuffer, BufferMinutes: 90},
		{ID: 3, Kind: RuleBuffer, BufferMinutes: 60},
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 90, snap.BufferMinutes())

	empty, err := NewSnapshot(time.Now(), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.BufferMinutes())
}

func TestSnapshot_BlackoutFor(t *testing.T) {
	date := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)
	vehicleID := int64(7)
	snap, err := NewSnapshot(time.Now(), []AvailabilityRule{
		{ID: 1, Kind: RuleBlackout, ResourceID: &vehicleID, From: date, To: date.AddDate(0, 0, 2)},
	}, nil, nil)
	require.NoError(t, err)

	_, blocked := snap.BlackoutFor(7, date.AddDate(0, 0, 1))
	assert.True(t, blocked)
	_, blocked = snap.BlackoutFor(8, date)
	assert.False(t, blocked, "other resources unaffected")
	_, blocked = snap.BlackoutFor(7, date.AddDate(0, 0, 3))
	assert.False(t, blocked, "outside the range")
}

func TestSnapshot_CapacityCeiling(t *testing.T) {
	snap, err := NewSnapshot(time.Now(), []AvailabilityRule{
		{ID: 1, Kind: RuleCapacity, ResourceKind: resource.KindVehicle, MaxPerDay: 3},
	}, nil, nil)
	require.NoError(t, err)

	ceiling, ok := snap.CapacityCeiling("vehicle")
	assert.True(t, ok)
	assert.Equal(t, 3, ceiling)

	_, ok = snap.CapacityCeiling("driver")
	assert.False(t, ok)
}

func TestPricingRule_Specificity(t *testing.T) {
	coach := "coach"
	weekend := true
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, PricingRule{}.Specificity())
	assert.Equal(t, 2, PricingRule{VehicleClass: &coach, Weekend: &weekend}.Specificity())

	// A date range counts once no matter whether one or both ends are set.
	assert.Equal(t, 1, PricingRule{DateFrom: &from}.Specificity())
	assert.Equal(t, 1, PricingRule{DateFrom: &from, DateTo: &to}.Specificity())
}

func TestPricingRule_Matches(t *testing.T) {
	saturday := time.Date(2026, 7, 18, 0, 0, 0, 0, time.UTC)
	weekday := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)
	weekend := true

	r := PricingRule{Weekend: &weekend, MultiplierPercent: 100, Active: true}
	assert.True(t, r.Matches(MatchInput{Date: saturday}))
	assert.False(t, r.Matches(MatchInput{Date: weekday}))

	halfDay := BucketHalfDay
	r = PricingRule{DurationBucket: &halfDay, MultiplierPercent: 100, Active: true}
	assert.True(t, r.Matches(MatchInput{Date: weekday, DurationMinutes: 240}))
	assert.False(t, r.Matches(MatchInput{Date: weekday, DurationMinutes: 480}))
}

func TestBucketForDuration(t *testing.T) {
	assert.Equal(t, BucketShort, BucketForDuration(120))
	assert.Equal(t, BucketShort, BucketForDuration(180))
	assert.Equal(t, BucketHalfDay, BucketForDuration(240))
	assert.Equal(t, BucketHalfDay, BucketForDuration(360))
	assert.Equal(t, BucketFullDay, BucketForDuration(480))
}

func TestSeasonOf(t *testing.T) {
	assert.Equal(t, SeasonWinter, SeasonOf(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, SeasonSpring, SeasonOf(time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, SeasonSummer, SeasonOf(time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, SeasonAutumn, SeasonOf(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, SeasonWinter, SeasonOf(time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC)))
}
