package booking

import (
	"fmt"
	"time"

	"github.com/crestline-tours/service-booking/internal/domain"
)

// TimeWindow is an immutable {date, start, end} value, minutes since
// midnight, end strictly after start.
type TimeWindow struct {
	Date        time.Time `json:"date"` // UTC midnight of the tour day
	StartMinute int       `json:"start_minute"`
	EndMinute   int       `json:"end_minute"`
}

// NewTimeWindow validates and builds a TimeWindow.
func NewTimeWindow(date time.Time, startMinute, endMinute int) (TimeWindow, error) {
	if startMinute < 0 || endMinute > 24*60 {
		return TimeWindow{}, domain.NewValidationError("time window outside the day")
	}
	if endMinute <= startMinute {
		return TimeWindow{}, domain.NewValidationError("time window end must be after start")
	}
	return TimeWindow{
		Date:        date.UTC().Truncate(24 * time.Hour),
		StartMinute: startMinute,
		EndMinute:   endMinute,
	}, nil
}

// DurationMinutes returns the derived duration.
func (w TimeWindow) DurationMinutes() int {
	return w.EndMinute - w.StartMinute
}

// Overlaps reports whether two windows on the same date intersect.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	if !w.Date.Equal(other.Date) {
		return false
	}
	return w.StartMinute < other.EndMinute && other.StartMinute < w.EndMinute
}

// String renders the window as "2026-07-14 10:00-16:00".
func (w TimeWindow) String() string {
	return fmt.Sprintf("%s %02d:%02d-%02d:%02d",
		w.Date.Format("2006-01-02"),
		w.StartMinute/60, w.StartMinute%60,
		w.EndMinute/60, w.EndMinute%60)
}
