package streak

import (
	"time"

	"github.com/limbo/habitstreak/pkg/entity"
)

const secondsPerDay = 24 * 60 * 60

// Clock abstracts time retrieval so streak logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Calendar fixes the day boundary: "today" is the civil date of the clock in
// Location. All dates it hands out are midnight UTC of that civil date, which
// is also how PostgreSQL DATE values come back from the driver.
type Calendar struct {
	clock Clock
	loc   *time.Location
}

func NewCalendar(clock Clock, loc *time.Location) *Calendar {
	if clock == nil {
		clock = RealClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{clock: clock, loc: loc}
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

func (c *Calendar) Now() time.Time {
	return c.clock.Now()
}

func (c *Calendar) Today() time.Time {
	return c.DateOf(c.clock.Now())
}

// DateOf returns the civil date of instant t in the calendar's location.
func (c *Calendar) DateOf(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return Date(y, m, d)
}

// CivilDate drops the time of day of t, keeping the date as written in t's
// own location.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// Date builds a civil date value.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// PeriodKey normalizes a civil date to the canonical key of its period:
// the date itself for daily habits, the Monday of its week for weekly ones.
func PeriodKey(freq entity.Frequency, date time.Time) time.Time {
	return fromDayNumber(periodKey(freq, dayNumber(date)))
}

// DaysBetween counts calendar days from a to b, ignoring time of day.
func DaysBetween(a, b time.Time) int {
	return int(dayNumber(b) - dayNumber(a))
}

func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return Date(y, m, d).Unix() / secondsPerDay
}

func fromDayNumber(n int64) time.Time {
	return time.Unix(n*secondsPerDay, 0).UTC()
}

func periodKey(freq entity.Frequency, day int64) int64 {
	if freq != entity.FrequencyWeekly {
		return day
	}
	// Day 0 (1970-01-01) is a Thursday, 3 days after a Monday.
	offset := ((day+3)%7 + 7) % 7
	return day - offset
}

func periodLength(freq entity.Frequency) int64 {
	if freq == entity.FrequencyWeekly {
		return 7
	}
	return 1
}
