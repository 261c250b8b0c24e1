package storage

import (
	"context"
	"errors"
	"fmt"

	"habitbot/internal/habit"
)

// CreateHabit validates h and inserts it. The owner must exist and a linked
// habit, if any, must exist and be pleasant.
func CreateHabit(ctx context.Context, st Store, h habit.Habit) (habit.Habit, error) {
	if err := checkWrite(ctx, st, h); err != nil {
		return habit.Habit{}, err
	}
	return st.InsertHabit(ctx, h)
}

// UpdateHabit validates h and replaces the stored record with the same ID.
// A pleasant habit that other habits link to cannot be made non-pleasant.
func UpdateHabit(ctx context.Context, st Store, h habit.Habit) error {
	if h.ID == 0 {
		return errors.New("update: habit id is required")
	}
	cur, err := st.GetHabit(ctx, h.ID)
	if err != nil {
		return err
	}
	if err := checkWrite(ctx, st, h); err != nil {
		return err
	}
	if cur.IsNice && !h.IsNice {
		if err := checkNotLinked(ctx, st, h.ID); err != nil {
			return err
		}
	}
	return st.ReplaceHabit(ctx, h)
}

func checkNotLinked(ctx context.Context, st Store, id int64) error {
	all, err := st.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, o := range all {
		if o.LinkedHabitID != nil && *o.LinkedHabitID == id {
			return fmt.Errorf("habit %d is linked from habit %d: %w", id, o.ID,
				&habit.ViolationError{Violation: habit.ViolationNiceLinked, Field: "is_nice"})
		}
	}
	return nil
}

func checkWrite(ctx context.Context, st Store, h habit.Habit) error {
	if st == nil {
		return ErrDisabled
	}
	if err := habit.Validate(h); err != nil {
		return err
	}
	if _, err := st.GetUser(ctx, h.OwnerID); err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	if h.LinkedHabitID == nil {
		return nil
	}
	target, err := st.GetHabit(ctx, *h.LinkedHabitID)
	if err != nil {
		return fmt.Errorf("linked habit: %w", err)
	}
	return habit.ValidateLink(h, target)
}
