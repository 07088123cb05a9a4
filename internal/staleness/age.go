package staleness

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// AgeCalculator measures how many days have passed since a timestamp.
type AgeCalculator struct {
	// WeekdaysOnly counts only Monday through Friday.
	WeekdaysOnly bool
	// Location decides which calendar day a timestamp falls on in
	// weekday mode. Nil means time.Local.
	Location *time.Location
}

// NewAgeCalculator returns a calculator using the local time zone.
func NewAgeCalculator(weekdaysOnly bool) AgeCalculator {
	return AgeCalculator{WeekdaysOnly: weekdaysOnly, Location: time.Local}
}

// Days returns the age of d relative to now.
func (a AgeCalculator) Days(d, now time.Time) int {
	if a.WeekdaysOnly {
		return a.weekdays(d, now)
	}
	return CalendarDays(d, now)
}

// CalendarDays returns |now - d| in days, rounded to the nearest day.
// A timestamp in the future yields the same value as one equally far in the past.
func CalendarDays(d, now time.Time) int {
	ms := float64(d.Sub(now).Milliseconds())
	return int(math.Round(math.Abs(ms) / float64(day.Milliseconds())))
}

// weekdays steps from d towards now in exact 24h increments and counts the
// steps that land on a weekday. Both ends are included when they fall within
// range; d after now yields 0.
func (a AgeCalculator) weekdays(d, now time.Time) int {
	loc := a.Location
	if loc == nil {
		loc = time.Local
	}

	count := 0
	for current := d; !current.After(now); current = current.Add(day) {
		switch current.In(loc).Weekday() {
		case time.Saturday, time.Sunday:
		default:
			count++
		}
	}
	return count
}
