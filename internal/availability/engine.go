package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/crestline-tours/service-booking/internal/domain"
	bookingDomain "github.com/crestline-tours/service-booking/internal/domain/booking"
	"github.com/crestline-tours/service-booking/internal/domain/resource"
	"github.com/crestline-tours/service-booking/internal/domain/rules"
	"go.uber.org/zap"
)

// ReasonCode tells the caller why no feasible window exists. The engine
// never returns an empty slot list without one.
type ReasonCode string

const (
	ReasonBlackout  ReasonCode = "blackout"
	ReasonCapacity  ReasonCode = "capacity"
	ReasonNoOverlap ReasonCode = "no_overlap"
)

// Slot is one feasible start at the configured granularity.
type Slot struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// Pair is a concrete vehicle/driver assignment candidate.
type Pair struct {
	VehicleID int64 `json:"vehicle_id"`
	DriverID  int64 `json:"driver_id"`
}

// Result is the engine's answer for one request.
type Result struct {
	Available bool       `json:"available"`
	Reason    ReasonCode `json:"reason,omitempty"`
	Slots     []Slot     `json:"slots,omitempty"`

	// Suggested is the lowest-id pair for the earliest feasible slot.
	// Advisory only: final assignment happens at commit time under a
	// lock, because availability can change between query and commit.
	Suggested *Pair `json:"suggested,omitempty"`
}

// Snapshot bundles the point-in-time inputs for one engine run. The engine
// does not react to directory or rule changes mid-computation.
type Snapshot struct {
	Resources resource.Snapshot
	Rules     rules.Snapshot
	Bookings  []*bookingDomain.Booking
}

// Config holds the scheduling tunables the engine owns.
type Config struct {
	HorizonDays        int
	AllowedDurations   []int // minutes
	OpenMinute         int
	CloseMinute        int
	GranularityMinutes int
}

// Engine computes feasible start times and candidate assignments for a
// requested window against a snapshot of resources, rules and bookings.
type Engine struct {
	cfg Config
	log *zap.Logger
}

// NewEngine creates an availability engine.
func NewEngine(cfg Config, log *zap.Logger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

// ValidateRequest rejects malformed input before any availability work:
// horizon violations, durations not on offer, non-positive party sizes.
func (e *Engine) ValidateRequest(req bookingDomain.BookingRequest, now time.Time) error {
	if err := req.Validate(); err != nil {
		return err
	}

	today := now.UTC().Truncate(24 * time.Hour)
	date := req.Date.UTC().Truncate(24 * time.Hour)
	if date.Before(today) {
		return domain.NewOutOfWindowError("date is in the past")
	}
	if date.After(today.AddDate(0, 0, e.cfg.HorizonDays)) {
		return domain.NewOutOfWindowError(fmt.Sprintf("date is beyond the %d-day booking horizon", e.cfg.HorizonDays))
	}

	allowed := false
	for _, d := range e.cfg.AllowedDurations {
		if d == req.DurationMinutes {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.NewValidationError(fmt.Sprintf("duration of %d minutes is not offered", req.DurationMinutes))
	}

	if req.StartMinute != nil {
		if *req.StartMinute < e.cfg.OpenMinute || *req.StartMinute+req.DurationMinutes > e.cfg.CloseMinute {
			return domain.NewValidationError("requested start falls outside operating hours")
		}
	}
	return nil
}

// FindAvailability computes the feasible slots for the request. A feasible
// slot needs at least one vehicle and at least one driver simultaneously
// free; vehicle and driver availability are intersected, never unioned.
func (e *Engine) FindAvailability(req bookingDomain.BookingRequest, snap Snapshot, now time.Time) (*Result, error) {
	if err := e.ValidateRequest(req, now); err != nil {
		return nil, err
	}

	vehicles, drivers, reason := e.eligibleResources(req, snap)
	if reason != "" {
		return &Result{Available: false, Reason: reason}, nil
	}

	buffer := snap.Rules.BufferMinutes()
	freeByID := e.freeIntervals(append(vehicles, drivers...), snap.Bookings, req.Date, buffer)

	var (
		slots            []Slot
		suggested        *Pair
		capacityRejected bool
	)
	for start := e.cfg.OpenMinute; start+req.DurationMinutes <= e.cfg.CloseMinute; start += e.cfg.GranularityMinutes {
		if req.StartMinute != nil && start != *req.StartMinute {
			continue
		}
		win := interval{start, start + req.DurationMinutes}

		freeVehicles := idsCovering(vehicles, freeByID, win)
		freeDrivers := idsCovering(drivers, freeByID, win)
		if len(freeVehicles) == 0 || len(freeDrivers) == 0 {
			continue
		}

		if e.exceedsCapacity(snap, req.Date, win) {
			capacityRejected = true
			continue
		}

		slots = append(slots, Slot{StartMinute: win.start, EndMinute: win.end})
		if suggested == nil {
			suggested = &Pair{VehicleID: freeVehicles[0], DriverID: freeDrivers[0]}
		}
	}

	if len(slots) == 0 {
		reason := ReasonNoOverlap
		if capacityRejected {
			reason = ReasonCapacity
		}
		return &Result{Available: false, Reason: reason}, nil
	}

	e.log.Debug("availability computed",
		zap.String("date", req.Date.Format("2006-01-02")),
		zap.Int("slots", len(slots)),
		zap.Int("buffer_minutes", buffer),
	)
	return &Result{Available: true, Slots: slots, Suggested: suggested}, nil
}

// Candidates returns the feasible vehicle and driver ids for one concrete
// window, both sorted ascending. The commit path calls this under its
// resource locks with an authoritative snapshot.
func (e *Engine) Candidates(req bookingDomain.BookingRequest, snap Snapshot, win bookingDomain.TimeWindow) (vehicleIDs, driverIDs []int64) {
	vehicles, drivers, reason := e.eligibleResources(req, snap)
	if reason != "" {
		return nil, nil
	}

	iv := interval{win.StartMinute, win.EndMinute}
	if e.exceedsCapacity(snap, win.Date, iv) {
		return nil, nil
	}

	buffer := snap.Rules.BufferMinutes()
	freeByID := e.freeIntervals(append(vehicles, drivers...), snap.Bookings, win.Date, buffer)
	return idsCovering(vehicles, freeByID, iv), idsCovering(drivers, freeByID, iv)
}

// eligibleResources filters the snapshot down to the resources that could
// serve this request, and reports the blocking reason when a filter stage
// empties either kind.
func (e *Engine) eligibleResources(req bookingDomain.BookingRequest, snap Snapshot) (vehicles, drivers []resource.Resource, reason ReasonCode) {
	var activeVehicles, activeDrivers []resource.Resource
	for _, r := range snap.Resources.Resources {
		if !r.Active {
			continue
		}
		switch r.Kind {
		case resource.KindVehicle:
			if req.VehicleClass != "" && r.Class != req.VehicleClass {
				continue
			}
			activeVehicles = append(activeVehicles, r)
		case resource.KindDriver:
			activeDrivers = append(activeDrivers, r)
		}
	}
	if len(activeVehicles) == 0 || len(activeDrivers) == 0 {
		return nil, nil, ReasonNoOverlap
	}

	// Party size filters vehicle eligibility only; it never picks a
	// specific vehicle.
	fitting := activeVehicles[:0:0]
	for _, v := range activeVehicles {
		if v.Capacity >= req.PartySize {
			fitting = append(fitting, v)
		}
	}
	if len(fitting) == 0 {
		return nil, nil, ReasonCapacity
	}

	vehicles = withoutBlackedOut(fitting, snap.Rules, req.Date)
	drivers = withoutBlackedOut(activeDrivers, snap.Rules, req.Date)
	if len(vehicles) == 0 || len(drivers) == 0 {
		return nil, nil, ReasonBlackout
	}

	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].ID < vehicles[j].ID })
	sort.Slice(drivers, func(i, j int) bool { return drivers[i].ID < drivers[j].ID })
	return vehicles, drivers, ""
}

// freeIntervals computes, per resource, the day's operating hours minus
// every occupied interval. An occupied interval is an existing booking
// expanded by the buffer on both sides.
func (e *Engine) freeIntervals(res []resource.Resource, bookings []*bookingDomain.Booking, date time.Time, buffer int) map[int64][]interval {
	day := date.UTC().Truncate(24 * time.Hour)
	free := make(map[int64][]interval, len(res))
	for _, r := range res {
		free[r.ID] = []interval{{e.cfg.OpenMinute, e.cfg.CloseMinute}}
	}

	for _, bk := range bookings {
		if !bk.Status().OccupiesResources() {
			continue
		}
		if !bk.Window().Date.Equal(day) {
			continue
		}
		occ := interval{
			start: bk.Window().StartMinute - buffer,
			end:   bk.Window().EndMinute + buffer,
		}.clamp(0, 24*60)

		for _, id := range []int64{bk.VehicleID(), bk.DriverID()} {
			if ivs, ok := free[id]; ok {
				free[id] = subtract(ivs, occ)
			}
		}
	}
	return free
}

// exceedsCapacity checks the per-kind concurrent-booking ceiling for a
// candidate window: one more booking in this window must not push the
// overlap count past the configured ceiling.
func (e *Engine) exceedsCapacity(snap Snapshot, date time.Time, win interval) bool {
	day := date.UTC().Truncate(24 * time.Hour)
	concurrent := 0
	for _, bk := range snap.Bookings {
		if !bk.Status().OccupiesResources() || !bk.Window().Date.Equal(day) {
			continue
		}
		w := bk.Window()
		if w.StartMinute < win.end && win.start < w.EndMinute {
			concurrent++
		}
	}

	for _, kind := range []resource.Kind{resource.KindVehicle, resource.KindDriver} {
		if ceiling, ok := snap.Rules.CapacityCeiling(string(kind)); ok && concurrent+1 > ceiling {
			return true
		}
	}
	return false
}

func withoutBlackedOut(res []resource.Resource, rs rules.Snapshot, date time.Time) []resource.Resource {
	out := res[:0:0]
	for _, r := range res {
		if _, blocked := rs.BlackoutFor(r.ID, date); !blocked {
			out = append(out, r)
		}
	}
	return out
}

func idsCovering(res []resource.Resource, freeByID map[int64][]interval, win interval) []int64 {
	var ids []int64
	for _, r := range res {
		if anyContains(freeByID[r.ID], win) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
