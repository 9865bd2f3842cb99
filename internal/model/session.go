package model

import (
	"fmt"
	"sort"
	"time"
)

// TimeOfDay is a wall-clock time expressed as minutes after midnight.  It is
// stored as an integer column so that MySQL and SQLite share one schema.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (or "HH:MM:SS", seconds ignored).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		if t, err = time.Parse("15:04:05", s); err != nil {
			return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
		}
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()) }

// On anchors the time of day to the calendar day of d in d's location.
func (t TimeOfDay) On(d time.Time) time.Time {
	y, mo, day := d.Date()
	return time.Date(y, mo, day, t.Hour(), t.Minute(), 0, 0, d.Location())
}

// Weekdays is a bit set of weekdays; bit d is set when weekday d (0=Sunday)
// is included.
type Weekdays uint8

// AllWeekdays includes every day of the week.
const AllWeekdays Weekdays = 0x7f

// NewWeekdays builds a set from weekday integers 0–6.  Out of range values
// are rejected.
func NewWeekdays(days ...int) (Weekdays, error) {
	var w Weekdays
	for _, d := range days {
		if d < 0 || d > 6 {
			return 0, fmt.Errorf("invalid weekday %d", d)
		}
		w |= 1 << uint(d)
	}
	return w, nil
}

// Has reports whether d is part of the set.
func (w Weekdays) Has(d time.Weekday) bool { return w&(1<<uint(d)) != 0 }

// Days lists the weekdays in ascending order.
func (w Weekdays) Days() []int {
	out := make([]int, 0, 7)
	for d := 0; d < 7; d++ {
		if w&(1<<uint(d)) != 0 {
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

// Session is a named, recurring time window of a facility.  A session is a
// template; a bookable instance is the pair (session, calendar date).
//
// Fields:
//  ID         – primary key identifier.
//  FacilityID – owning facility.
//  Name       – display name, e.g. "Morning Session".
//  StartTime  – window start as time of day.
//  EndTime    – window end as time of day (after StartTime).
//  DaysOfWeek – weekdays on which the session recurs.
//  IsActive   – inactive sessions cannot be booked or waitlisted.
//  Capacity   – optional per-session ceiling; nil shares the facility pool.
type Session struct {
	ID         uint64    // facility_sessions.id
	FacilityID uint64    // facility_sessions.facility_id
	Name       string    // facility_sessions.name
	StartTime  TimeOfDay // facility_sessions.start_minute
	EndTime    TimeOfDay // facility_sessions.end_minute
	DaysOfWeek Weekdays  // facility_sessions.days_of_week
	IsActive   bool      // facility_sessions.is_active
	Capacity   *uint32   // facility_sessions.capacity (nullable)
}

// Window returns the absolute interval of the session instance on the
// calendar day of d.
func (s Session) Window(d time.Time) (time.Time, time.Time) {
	return s.StartTime.On(d), s.EndTime.On(d)
}
