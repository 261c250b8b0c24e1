package habit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Owner is the user a habit belongs to. TelegramID is nil when the user has
// not linked a messaging identity.
type Owner struct {
	ID         int64
	Name       string
	TelegramID *int64
}

// Identity returns the owner's messaging identity, or "" if none is linked.
func (o Owner) Identity() string {
	if o.TelegramID == nil || *o.TelegramID == 0 {
		return ""
	}
	return strconv.FormatInt(*o.TelegramID, 10)
}

type Habit struct {
	ID      int64
	OwnerID int64
	Owner   Owner

	Place  string
	Action string
	Time   Clock

	// Periodicity is the number of days between occurrences (1..7).
	Periodicity int
	// Duration is the time to perform the action, in seconds (1..120).
	Duration int

	IsNice        bool
	Reward        string
	LinkedHabitID *int64
	IsPublic      bool
}

func (h Habit) String() string {
	return fmt.Sprintf("%s at %s in %s", h.Action, h.Time.HHMM(), h.Place)
}

// Clock is a wall-clock time of day without a date.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

func NewClock(hour, minute, second int) Clock {
	return Clock{Hour: hour, Minute: minute, Second: second}
}

// ClockOf returns the time-of-day part of t in t's own location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// On combines c with the calendar date of day, in loc.
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, c.Second, 0, loc)
}

// HHMM renders the clock as "15:04".
func (c Clock) HHMM() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// String renders the clock as "15:04:05", the storage format.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60 && c.Second >= 0 && c.Second < 60
}

// ParseClock accepts "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Clock{}, fmt.Errorf("invalid time %q, expected HH:MM or HH:MM:SS", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Clock{}, fmt.Errorf("invalid time %q: %w", s, err)
		}
		nums[i] = n
	}
	c := Clock{Hour: nums[0], Minute: nums[1], Second: nums[2]}
	if !c.Valid() {
		return Clock{}, fmt.Errorf("invalid time %q: out of range", s)
	}
	return c, nil
}

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
