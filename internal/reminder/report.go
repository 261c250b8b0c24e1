package reminder

import (
	"time"

	"habitbot/internal/habit"
)

type State string

const (
	StateWaiting  State = "waiting"
	StateDue      State = "due"
	StateAdvanced State = "advanced"
	StateStuck    State = "stuck"
	// StateSkipped marks a habit in its window whose owner has no identity.
	StateSkipped State = "skipped"
	// StateNotReached marks habits left unprocessed by a cancelled pass.
	StateNotReached State = "not_reached"
)

// Outcome is what one pass did to one habit.
type Outcome struct {
	HabitID  int64
	State    State
	DueAt    time.Time
	Next     habit.Clock // set when State is StateAdvanced
	Messages int         // messages delivered
	Err      error
}

type Report struct {
	RunID    string
	Now      time.Time
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
	// Err is set when the habit list could not be loaded or the pass was cancelled.
	Err error
}

// Count returns how many outcomes ended in s.
func (r Report) Count(s State) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == s {
			n++
		}
	}
	return n
}

// Failed returns the outcomes that carry an error.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Outcome returns the outcome for a habit id.
func (r Report) Outcome(id int64) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.HabitID == id {
			return o, true
		}
	}
	return Outcome{}, false
}
