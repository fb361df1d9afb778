package rules

import (
	"fmt"
	"time"

	"github.com/crestline-tours/service-booking/internal/domain/resource"
)

// AvailabilityRuleKind is the closed set of availability constraint kinds.
// Unknown kinds are rejected at load time, never ignored.
type AvailabilityRuleKind string

const (
	RuleBlackout AvailabilityRuleKind = "blackout"
	RuleBuffer   AvailabilityRuleKind = "buffer"
	RuleCapacity AvailabilityRuleKind = "capacity"
)

// IsValid returns true if the kind is recognized.
func (k AvailabilityRuleKind) IsValid() bool {
	switch k {
	case RuleBlackout, RuleBuffer, RuleCapacity:
		return true
	}
	return false
}

// AvailabilityRule is one additive scheduling constraint. All applicable
// rules must hold simultaneously.
type AvailabilityRule struct {
	ID   int64                `json:"id"`
	Kind AvailabilityRuleKind `json:"kind"`

	// Blackout fields. ResourceID nil means the blackout covers every resource.
	ResourceID *int64    `json:"resource_id,omitempty"`
	From       time.Time `json:"from,omitempty"`
	To         time.Time `json:"to,omitempty"`
	Reason     string    `json:"reason,omitempty"`

	// Buffer fields.
	BufferMinutes int `json:"buffer_minutes,omitempty"`

	// Capacity fields.
	ResourceKind resource.Kind `json:"resource_kind,omitempty"`
	MaxPerDay    int           `json:"max_per_day,omitempty"`
}

// Validate checks structural consistency for the rule's kind.
func (r AvailabilityRule) Validate() error {
	switch r.Kind {
	case RuleBlackout:
		if r.To.Before(r.From) {
			return fmt.Errorf("blackout rule %d: range end before start", r.ID)
		}
	case RuleBuffer:
		if r.BufferMinutes < 0 {
			return fmt.Errorf("buffer rule %d: negative minutes", r.ID)
		}
	case RuleCapacity:
		if !r.ResourceKind.IsValid() {
			return fmt.Errorf("capacity rule %d: invalid resource kind %q", r.ID, r.ResourceKind)
		}
		if r.MaxPerDay <= 0 {
			return fmt.Errorf("capacity rule %d: max per day must be positive", r.ID)
		}
	default:
		return fmt.Errorf("rule %d: unknown availability rule kind %q", r.ID, r.Kind)
	}
	return nil
}

// CoversDate reports whether a blackout rule covers the given date.
func (r AvailabilityRule) CoversDate(date time.Time) bool {
	if r.Kind != RuleBlackout {
		return false
	}
	d := date.Truncate(24 * time.Hour)
	return !d.Before(r.From.Truncate(24*time.Hour)) && !d.After(r.To.Truncate(24*time.Hour))
}

// AppliesToResource reports whether a blackout rule applies to the resource.
func (r AvailabilityRule) AppliesToResource(id int64) bool {
	return r.ResourceID == nil || *r.ResourceID == id
}
