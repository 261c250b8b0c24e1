package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"habitbot/internal/habit"
	"habitbot/internal/reminder"
)

func TestParseID(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12", 12, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"x", 0, false},
	} {
		got, err := parseID(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("parseID(%q) = %d, %v", tc.in, got, err)
		}
	}
}

func TestRenderHabits(t *testing.T) {
	t.Parallel()
	link := int64(3)
	hs := []habit.Habit{
		{ID: 1, Owner: habit.Owner{Name: "ann"}, Action: "Walk", Place: "park", Time: habit.NewClock(8, 0, 0), Periodicity: 1, Duration: 60, Reward: "Coffee"},
		{ID: 2, Owner: habit.Owner{Name: "ann"}, Action: "Read", Place: "home", Time: habit.NewClock(21, 30, 0), Periodicity: 2, Duration: 90, LinkedHabitID: &link},
	}
	var buf bytes.Buffer
	renderHabits(&buf, hs)
	out := buf.String()
	for _, want := range []string{"Walk", "08:00", "reward: Coffee", "then #3", "21:30"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderReport(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 8, 5, 0, 0, time.UTC)
	rep := reminder.Report{
		RunID: "run-1",
		Now:   now,
		Outcomes: []reminder.Outcome{
			{HabitID: 1, State: reminder.StateAdvanced, DueAt: now.Add(-5 * time.Minute), Next: habit.NewClock(8, 0, 0), Messages: 2},
			{HabitID: 2, State: reminder.StateStuck, Err: errors.New("send failed")},
		},
	}
	var buf bytes.Buffer
	renderReport(&buf, rep)
	out := buf.String()
	for _, want := range []string{"run-1", "advanced", "send failed", "2024-05-01 08:00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
