package rules

import (
	"fmt"
	"time"
)

// Season is the closed set of pricing seasons.
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
)

// IsValid returns true if the season is recognized.
func (s Season) IsValid() bool {
	switch s {
	case SeasonWinter, SeasonSpring, SeasonSummer, SeasonAutumn:
		return true
	}
	return false
}

// SeasonOf maps a date to its meteorological season.
func SeasonOf(t time.Time) Season {
	switch t.Month() {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

// DurationBucket is the closed set of tour-length classes used by pricing
// conditions.
type DurationBucket string

const (
	BucketShort   DurationBucket = "short"    // up to 3 hours
	BucketHalfDay DurationBucket = "half_day" // up to 6 hours
	BucketFullDay DurationBucket = "full_day" // anything longer
)

// IsValid returns true if the bucket is recognized.
func (b DurationBucket) IsValid() bool {
	switch b {
	case BucketShort, BucketHalfDay, BucketFullDay:
		return true
	}
	return false
}

// BucketForDuration maps a duration in minutes to its bucket.
func BucketForDuration(minutes int) DurationBucket {
	switch {
	case minutes <= 180:
		return BucketShort
	case minutes <= 360:
		return BucketHalfDay
	default:
		return BucketFullDay
	}
}

// MatchInput carries the request attributes a pricing rule is matched
// against. Holiday membership comes from the rule-set snapshot so matching
// stays a pure function of its inputs.
type MatchInput struct {
	Date            time.Time
	DurationMinutes int
	PartySize       int
	VehicleClass    string
	IsHoliday       bool
}

// PricingRule maps a conjunction of conditions to a price formula. Nil
// condition fields match anything; specificity counts the non-nil ones.
type PricingRule struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// Conditions, all ANDed.
	VehicleClass   *string         `json:"vehicle_class,omitempty"`
	DurationBucket *DurationBucket `json:"duration_bucket,omitempty"`
	DayOfWeek      *time.Weekday   `json:"day_of_week,omitempty"`
	Weekend        *bool           `json:"weekend,omitempty"`
	Holiday        *bool           `json:"holiday,omitempty"`
	Season         *Season         `json:"season,omitempty"`
	DateFrom       *time.Time      `json:"date_from,omitempty"`
	DateTo         *time.Time      `json:"date_to,omitempty"`

	// Formula. All monetary amounts are integer minor units; the
	// multiplier is expressed in percent (120 = x1.20) so evaluation
	// never touches floating point.
	BasePriceCents    int64  `json:"base_price_cents"`
	PerHourCents      int64  `json:"per_hour_cents"`
	PerPersonCents    int64  `json:"per_person_cents"`
	MultiplierPercent int    `json:"multiplier_percent"`
	MinPriceCents     *int64 `json:"min_price_cents,omitempty"`
	MaxPriceCents     *int64 `json:"max_price_cents,omitempty"`

	Priority   int        `json:"priority"`
	Active     bool       `json:"active"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// Validate checks structural consistency at load time.
func (r PricingRule) Validate() error {
	if r.DurationBucket != nil && !r.DurationBucket.IsValid() {
		return fmt.Errorf("pricing rule %d: unknown duration bucket %q", r.ID, *r.DurationBucket)
	}
	if r.Season != nil && !r.Season.IsValid() {
		return fmt.Errorf("pricing rule %d: unknown season %q", r.ID, *r.Season)
	}
	if r.DayOfWeek != nil && (*r.DayOfWeek < time.Sunday || *r.DayOfWeek > time.Saturday) {
		return fmt.Errorf("pricing rule %d: invalid day of week %d", r.ID, *r.DayOfWeek)
	}
	if r.MultiplierPercent <= 0 {
		return fmt.Errorf("pricing rule %d: multiplier percent must be positive", r.ID)
	}
	if r.BasePriceCents < 0 || r.PerHourCents < 0 || r.PerPersonCents < 0 {
		return fmt.Errorf("pricing rule %d: negative price component", r.ID)
	}
	if r.MinPriceCents != nil && r.MaxPriceCents != nil && *r.MaxPriceCents < *r.MinPriceCents {
		return fmt.Errorf("pricing rule %d: max price below min price", r.ID)
	}
	if r.DateFrom != nil && r.DateTo != nil && r.DateTo.Before(*r.DateFrom) {
		return fmt.Errorf("pricing rule %d: condition date range end before start", r.ID)
	}
	return nil
}

// Specificity counts the non-nil condition fields; used to break priority
// ties, more specific wins.
func (r PricingRule) Specificity() int {
	n := 0
	for _, set := range []bool{
		r.VehicleClass != nil,
		r.DurationBucket != nil,
		r.DayOfWeek != nil,
		r.Weekend != nil,
		r.Holiday != nil,
		r.Season != nil,
		r.DateFrom != nil || r.DateTo != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Matches reports whether every set condition holds for the input and the
// rule is active and within its validity window on the target date.
func (r PricingRule) Matches(in MatchInput) bool {
	if !r.Active {
		return false
	}
	date := in.Date.Truncate(24 * time.Hour)
	if r.ValidFrom != nil && date.Before(r.ValidFrom.Truncate(24*time.Hour)) {
		return false
	}
	if r.ValidUntil != nil && date.After(r.ValidUntil.Truncate(24*time.Hour)) {
		return false
	}
	if r.VehicleClass != nil && *r.VehicleClass != in.VehicleClass {
		return false
	}
	if r.DurationBucket != nil && *r.DurationBucket != BucketForDuration(in.DurationMinutes) {
		return false
	}
	if r.DayOfWeek != nil && *r.DayOfWeek != in.Date.Weekday() {
		return false
	}
	if r.Weekend != nil && *r.Weekend != isWeekend(in.Date) {
		return false
	}
	if r.Holiday != nil && *r.Holiday != in.IsHoliday {
		return false
	}
	if r.Season != nil && *r.Season != SeasonOf(in.Date) {
		return false
	}
	if r.DateFrom != nil && date.Before(r.DateFrom.Truncate(24*time.Hour)) {
		return false
	}
	if r.DateTo != nil && date.After(r.DateTo.Truncate(24*time.Hour)) {
		return false
	}
	return true
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
