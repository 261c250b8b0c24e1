package habit

import (
	"errors"
	"testing"
	"time"
)

func int64p(v int64) *int64 { return &v }

func validHabit() Habit {
	return Habit{
		OwnerID:     1,
		Place:       "Office",
		Action:      "Stretch",
		Time:        NewClock(9, 0, 0),
		Periodicity: 2,
		Duration:    90,
		Reward:      "Coffee",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(h *Habit)
		want   Violation
	}{
		{name: "valid with reward", mutate: func(h *Habit) {}},
		{name: "valid with link", mutate: func(h *Habit) { h.Reward = ""; h.LinkedHabitID = int64p(3) }},
		{name: "reward and link", mutate: func(h *Habit) { h.LinkedHabitID = int64p(3) }, want: ViolationRewardAndLink},
		{name: "nice with reward", mutate: func(h *Habit) { h.IsNice = true }, want: ViolationNiceWithExtras},
		{name: "nice with link", mutate: func(h *Habit) { h.IsNice = true; h.Reward = ""; h.LinkedHabitID = int64p(3) }, want: ViolationNiceWithExtras},
		{name: "nice plain", mutate: func(h *Habit) { h.IsNice = true; h.Reward = "" }},
		{name: "periodicity zero", mutate: func(h *Habit) { h.Periodicity = 0 }, want: ViolationPeriodicity},
		{name: "periodicity eight", mutate: func(h *Habit) { h.Periodicity = 8 }, want: ViolationPeriodicity},
		{name: "periodicity seven", mutate: func(h *Habit) { h.Periodicity = 7 }},
		{name: "duration too long", mutate: func(h *Habit) { h.Duration = 121 }, want: ViolationDuration},
		{name: "duration limit", mutate: func(h *Habit) { h.Duration = 120 }},
		{name: "duration zero", mutate: func(h *Habit) { h.Duration = 0 }, want: ViolationDuration},
		{name: "bad time", mutate: func(h *Habit) { h.Time = Clock{Hour: 25} }, want: ViolationTime},
		{name: "blank reward is no reward", mutate: func(h *Habit) { h.Reward = "   "; h.LinkedHabitID = int64p(3) }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := validHabit()
			tt.mutate(&h)
			err := Validate(h)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %s", err, tt.want)
			}
			if v, ok := AsViolation(err); !ok || v != tt.want {
				t.Fatalf("AsViolation = %q,%v", v, ok)
			}
		})
	}
}

func TestValidateLink(t *testing.T) {
	t.Parallel()
	h := validHabit()
	h.ID = 5
	if err := ValidateLink(h, Habit{ID: 6, IsNice: true}); err != nil {
		t.Fatalf("ValidateLink(nice) = %v", err)
	}
	if err := ValidateLink(h, Habit{ID: 6}); !errors.Is(err, ViolationLinkedNotNice) {
		t.Fatalf("ValidateLink(not nice) = %v", err)
	}
	if err := ValidateLink(h, Habit{ID: 5, IsNice: true}); !errors.Is(err, ViolationSelfLink) {
		t.Fatalf("ValidateLink(self) = %v", err)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	c, err := ParseClock("08:05")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if c != NewClock(8, 5, 0) {
		t.Fatalf("ParseClock = %+v", c)
	}
	if c.String() != "08:05:00" || c.HHMM() != "08:05" {
		t.Fatalf("render = %s / %s", c.String(), c.HHMM())
	}
	for _, bad := range []string{"", "8", "24:00", "12:60", "aa:bb", "1:2:3:4"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("ParseClock(%q) expected error", bad)
		}
	}
}

func TestClockOnKeepsZone(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+3", 3*3600)
	// 22:30 UTC is already the next day in UTC+3.
	day := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)
	got := NewClock(8, 0, 0).On(day, loc)
	want := time.Date(2024, 3, 11, 8, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("On = %v, want %v", got, want)
	}
}

func TestOwnerIdentity(t *testing.T) {
	t.Parallel()
	if (Owner{}).Identity() != "" {
		t.Fatal("owner without telegram id should have empty identity")
	}
	if got := (Owner{TelegramID: int64p(42)}).Identity(); got != "42" {
		t.Fatalf("Identity = %q", got)
	}
}
