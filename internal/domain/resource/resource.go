package resource

import (
	"fmt"
	"time"
)

// Kind distinguishes the two resource kinds scheduled jointly.
type Kind string

const (
	KindVehicle Kind = "vehicle"
	KindDriver  Kind = "driver"
)

// IsValid returns true if the kind is recognized.
func (k Kind) IsValid() bool {
	return k == KindVehicle || k == KindDriver
}

// ParseKind converts a string to a Kind, returning an error if invalid.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid resource kind: %s", s)
	}
	return k, nil
}

// Resource is a vehicle or a driver from the fleet/roster directory. The
// core only reads these; ownership stays with fleet management.
type Resource struct {
	ID       int64  `json:"id"`
	Kind     Kind   `json:"kind"`
	Name     string `json:"name"`
	Class    string `json:"class,omitempty"`    // vehicle class (minibus, coach, ...), empty for drivers
	Capacity int    `json:"capacity,omitempty"` // passenger capacity, vehicles only
	Active   bool   `json:"active"`
}

// IsVehicle returns true for vehicle resources.
func (r Resource) IsVehicle() bool { return r.Kind == KindVehicle }

// IsDriver returns true for driver resources.
func (r Resource) IsDriver() bool { return r.Kind == KindDriver }

// Snapshot is a point-in-time view of the directory. Engine runs never
// react to directory changes mid-computation; they see one snapshot.
type Snapshot struct {
	TakenAt   time.Time  `json:"taken_at"`
	Resources []Resource `json:"resources"`
}

// Vehicles returns the vehicle resources in the snapshot.
func (s Snapshot) Vehicles() []Resource {
	return s.filter(KindVehicle)
}

// Drivers returns the driver resources in the snapshot.
func (s Snapshot) Drivers() []Resource {
	return s.filter(KindDriver)
}

func (s Snapshot) filter(kind Kind) []Resource {
	out := make([]Resource, 0, len(s.Resources))
	for _, r := range s.Resources {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
