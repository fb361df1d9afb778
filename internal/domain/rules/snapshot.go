package rules

import (
	"fmt"
	"time"
)

// Snapshot is a versioned, immutable view of the rule store. Engine and
// evaluator calls receive one snapshot each; there is no process-wide
// mutable rule cache that could change mid-evaluation.
type Snapshot struct {
	TakenAt      time.Time          `json:"taken_at"`
	Availability []AvailabilityRule `json:"availability"`
	Pricing      []PricingRule      `json:"pricing"`
	Holidays     []string           `json:"holidays"` // YYYY-MM-DD
}

// NewSnapshot validates every rule and rejects unknown rule kinds instead
// of ignoring them.
func NewSnapshot(takenAt time.Time, availability []AvailabilityRule, pricing []PricingRule, holidays []string) (Snapshot, error) {
	for _, r := range availability {
		if err := r.Validate(); err != nil {
			return Snapshot{}, err
		}
	}
	for _, r := range pricing {
		if err := r.Validate(); err != nil {
			return Snapshot{}, err
		}
	}
	for _, h := range holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return Snapshot{}, fmt.Errorf("invalid holiday date %q: %w", h, err)
		}
	}
	return Snapshot{
		TakenAt:      takenAt,
		Availability: availability,
		Pricing:      pricing,
		Holidays:     holidays,
	}, nil
}

// BufferMinutes returns the effective buffer between bookings sharing a
// resource. With several buffer rules the strictest one subsumes the rest.
func (s Snapshot) BufferMinutes() int {
	max := 0
	for _, r := range s.Availability {
		if r.Kind == RuleBuffer && r.BufferMinutes > max {
			max = r.BufferMinutes
		}
	}
	return max
}

// BlackoutFor returns the first blackout rule covering the resource on the
// date, if any.
func (s Snapshot) BlackoutFor(resourceID int64, date time.Time) (AvailabilityRule, bool) {
	for _, r := range s.Availability {
		if r.Kind == RuleBlackout && r.AppliesToResource(resourceID) && r.CoversDate(date) {
			return r, true
		}
	}
	return AvailabilityRule{}, false
}

// CapacityCeiling returns the max concurrent bookings per day for the
// resource kind, or ok=false when no capacity rule is configured.
func (s Snapshot) CapacityCeiling(kind string) (int, bool) {
	for _, r := range s.Availability {
		if r.Kind == RuleCapacity && string(r.ResourceKind) == kind {
			return r.MaxPerDay, true
		}
	}
	return 0, false
}

// IsHoliday reports whether the date is in the snapshot's holiday calendar.
func (s Snapshot) IsHoliday(date time.Time) bool {
	key := date.Format("2006-01-02")
	for _, h := range s.Holidays {
		if h == key {
			return true
		}
	}
	return false
}
