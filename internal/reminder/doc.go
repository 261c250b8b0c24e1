// Package reminder decides which habits are due and dispatches their reminders.
//
// A pass looks at every habit once. For each habit it combines the pass date
// with the habit's time of day, in the configured zone, and treats the habit
// as due when now lies within Window of that instant (both ends inclusive).
//
// A due habit whose owner has a messaging identity gets the primary reminder,
// then the reward message if it carries a reward, and is then advanced by its
// periodicity. Only the time of day is stored, so the next pass recomputes the
// due instant from its own date.
//
// Per-habit lifecycle:
//
//	WAITING -> DUE -> ADVANCED  (primary send succeeded, time saved)
//	               -> STUCK     (primary send or save failed, time unchanged)
//
// A failure on one habit never stops the pass for the others.
package reminder
