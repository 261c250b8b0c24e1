package reminder

import (
	"fmt"
	"time"

	"habitbot/internal/habit"
)

// Window is the tolerance on either side of a habit's scheduled time.
const Window = 10 * time.Minute

// DueAt places h's time of day on now's calendar date in zone.
func DueAt(h habit.Habit, now time.Time, zone *time.Location) time.Time {
	return h.Time.On(now, zone)
}

// InWindow reports whether now lies in [dueAt-Window, dueAt+Window].
func InWindow(dueAt, now time.Time) bool {
	return !now.Before(dueAt.Add(-Window)) && !now.After(dueAt.Add(Window))
}

// Next returns the instant a habit due at dueAt moves to: periodicity
// calendar days later, same wall-clock time. The result carries dueAt's
// UTC offset, so a wall time that falls in a DST gap is not shifted.
func Next(dueAt time.Time, periodicity int) time.Time {
	name, off := dueAt.Zone()
	return dueAt.In(time.FixedZone(name, off)).AddDate(0, 0, periodicity)
}

func PrimaryMessage(h habit.Habit) string {
	return fmt.Sprintf("Reminder: %s at %s %s", h.Action, h.Time.HHMM(), h.Place)
}

func RewardMessage(reward string) string {
	return "Congratulations! You received: " + reward
}
