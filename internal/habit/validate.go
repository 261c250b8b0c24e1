package habit

import (
	"errors"
	"strings"
)

const (
	MinPeriodicity = 1
	MaxPeriodicity = 7
	MaxDuration    = 120
)

// Violation names one broken record invariant.
type Violation string

const (
	ViolationRewardAndLink  Violation = "reward_and_linked_habit"
	ViolationNiceWithExtras Violation = "nice_habit_with_reward_or_link"
	ViolationPeriodicity    Violation = "periodicity_out_of_range"
	ViolationDuration       Violation = "duration_out_of_range"
	ViolationLinkedNotNice  Violation = "linked_habit_not_nice"
	ViolationSelfLink       Violation = "linked_habit_is_self"
	ViolationTime           Violation = "time_out_of_range"
	ViolationNiceLinked     Violation = "nice_habit_is_linked"
)

var violationText = map[Violation]string{
	ViolationRewardAndLink:  "reward and linked habit cannot both be set",
	ViolationNiceWithExtras: "a pleasant habit cannot have a reward or a linked habit",
	ViolationPeriodicity:    "periodicity must be between 1 and 7 days",
	ViolationDuration:       "duration must be between 1 and 120 seconds",
	ViolationLinkedNotNice:  "linked habit must be a pleasant habit",
	ViolationSelfLink:       "a habit cannot be linked to itself",
	ViolationTime:           "time of day is out of range",
	ViolationNiceLinked:     "a pleasant habit linked from other habits must stay pleasant",
}

func (v Violation) Error() string {
	if s, ok := violationText[v]; ok {
		return s
	}
	return string(v)
}

// ViolationError is returned by Validate. errors.Is matches the Violation.
type ViolationError struct {
	Violation Violation
	Field     string
}

func (e *ViolationError) Error() string {
	if e.Field == "" {
		return "invalid habit: " + e.Violation.Error()
	}
	return "invalid habit: " + e.Field + ": " + e.Violation.Error()
}

func (e *ViolationError) Is(target error) bool {
	v, ok := target.(Violation)
	return ok && v == e.Violation
}

func violation(v Violation, field string) error {
	return &ViolationError{Violation: v, Field: field}
}

// Validate checks the record invariants. It reports the first violation found.
func Validate(h Habit) error {
	hasReward := strings.TrimSpace(h.Reward) != ""
	hasLink := h.LinkedHabitID != nil

	if hasReward && hasLink {
		return violation(ViolationRewardAndLink, "reward")
	}
	if h.IsNice && (hasReward || hasLink) {
		return violation(ViolationNiceWithExtras, "is_nice")
	}
	if h.Periodicity < MinPeriodicity || h.Periodicity > MaxPeriodicity {
		return violation(ViolationPeriodicity, "periodicity")
	}
	if h.Duration <= 0 || h.Duration > MaxDuration {
		return violation(ViolationDuration, "duration")
	}
	if !h.Time.Valid() {
		return violation(ViolationTime, "time")
	}
	return nil
}

// ValidateLink checks that target may be used as h's linked habit.
func ValidateLink(h Habit, target Habit) error {
	if h.ID != 0 && h.ID == target.ID {
		return violation(ViolationSelfLink, "linked_habit")
	}
	if !target.IsNice {
		return violation(ViolationLinkedNotNice, "linked_habit")
	}
	return nil
}

// AsViolation extracts the violation from err, if any.
func AsViolation(err error) (Violation, bool) {
	var ve *ViolationError
	if errors.As(err, &ve) {
		return ve.Violation, true
	}
	return "", false
}
