package schedule

import (
	"time"

	"smartlists/internal/smartlist"
)

// fallbackInterval is used for malformed schedules so they still advance.
const fallbackInterval = 24 * time.Hour

// NextFireTime returns the first instant strictly after from at which s
// fires. Calendar triggers are computed in from's location. It has no side
// effects.
func NextFireTime(s smartlist.Schedule, from time.Time) time.Time {
	next := nextFireTime(s, from)
	if !next.After(from) {
		return from.Add(fallbackInterval)
	}
	return next
}

func nextFireTime(s smartlist.Schedule, from time.Time) time.Time {
	if s.Trigger == smartlist.TriggerInterval {
		d := s.Interval.D()
		if d <= 0 {
			d = fallbackInterval
		}
		return from.Add(d)
	}

	hour, minute, err := smartlist.ParseTimeOfDay(s.At)
	if err != nil {
		return from.Add(fallbackInterval)
	}
	loc := from.Location()
	y, m, d := from.Date()
	at := func(year int, month time.Month, day int) time.Time {
		return time.Date(year, month, day, hour, minute, 0, 0, loc)
	}

	switch s.Trigger {
	case smartlist.TriggerDaily:
		for i := 0; i < 3; i++ {
			if c := at(y, m, d+i); c.After(from) {
				return c
			}
		}

	case smartlist.TriggerWeekly:
		wd, err := smartlist.ParseWeekday(s.DayOfWeek)
		if err != nil {
			return from.Add(fallbackInterval)
		}
		ahead := (int(wd) - int(from.Weekday()) + 7) % 7
		for i := 0; i < 3; i++ {
			if c := at(y, m, d+ahead+7*i); c.After(from) {
				return c
			}
		}

	case smartlist.TriggerMonthly:
		if s.DayOfMonth < 1 {
			return from.Add(fallbackInterval)
		}
		for i := 0; i < 3; i++ {
			year, month := addMonths(y, m, i)
			if c := at(year, month, clampDay(year, month, s.DayOfMonth)); c.After(from) {
				return c
			}
		}

	case smartlist.TriggerYearly:
		if s.Month < 1 || s.Month > 12 || s.DayOfMonth < 1 {
			return from.Add(fallbackInterval)
		}
		month := time.Month(s.Month)
		for i := 0; i < 3; i++ {
			if c := at(y+i, month, clampDay(y+i, month, s.DayOfMonth)); c.After(from) {
				return c
			}
		}
	}
	return from.Add(fallbackInterval)
}

func addMonths(y int, m time.Month, n int) (int, time.Month) {
	total := int(m) - 1 + n
	return y + total/12, time.Month(total%12 + 1)
}

// daysIn returns the number of days in a month.
func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampDay moves days past the end of a month to its last day.
func clampDay(y int, m time.Month, day int) int {
	if n := daysIn(y, m); day > n {
		return n
	}
	return day
}
