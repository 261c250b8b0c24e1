package scheduler

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw   string
		kind  Kind
		cron  string
		every time.Duration
	}{
		{raw: "*/5 * * * *", kind: KindCron, cron: "*/5 * * * *"},
		{raw: "CRON: 0 8 * * *", kind: KindCron, cron: "0 8 * * *"},
		{raw: "@every 5m", kind: KindCron, cron: "@every 5m"},
		{raw: "@hourly", kind: KindCron, cron: "@hourly"},
		{raw: "5m", kind: KindInterval, every: 5 * time.Minute},
		{raw: " interval:45s ", kind: KindInterval, every: 45 * time.Second},
		{raw: "00:05", kind: KindInterval, every: 5 * time.Minute},
		{raw: "interval:01:30", kind: KindInterval, every: 90 * time.Minute},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.raw, err)
			}
			if got.Kind != tt.kind || got.Cron != tt.cron || got.Every != tt.every {
				t.Fatalf("ParseSchedule(%q) = %+v", tt.raw, got)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "soon", "cron:", "interval:", "00:00", "01:75", "1:5", "-5m", "0s"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q): expected error", raw)
		}
	}
}

func TestIntervalScheduleDelaysFirstRun(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	sched, jitter := intervalSchedule(5*time.Minute, now, "reminder.pass")
	if jitter < 0 || jitter >= maxFirstRunJitter {
		t.Fatalf("jitter %v out of range", jitter)
	}
	_, again := intervalSchedule(5*time.Minute, now, "reminder.pass")
	if again != jitter {
		t.Fatalf("jitter not stable: %v vs %v", jitter, again)
	}
	first := sched.Next(now)
	if want := now.Add(5*time.Minute + jitter); !first.Equal(want) {
		t.Fatalf("first run = %v, want %v", first, want)
	}
	if next := sched.Next(first); next.Sub(first) != 5*time.Minute {
		t.Fatalf("second run %v not one interval after %v", next, first)
	}
}
