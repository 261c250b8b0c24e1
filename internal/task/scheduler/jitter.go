package scheduler

import (
	"hash/fnv"
	"time"

	"github.com/robfig/cron/v3"
)

const maxFirstRunJitter = 30 * time.Second

// delayedFirst fires first at a fixed time, then follows base.
type delayedFirst struct {
	base  cron.Schedule
	first time.Time
}

func (s *delayedFirst) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

// intervalSchedule returns an "every" schedule whose first run is pushed back
// by a jitter derived from name, so schedules registered together do not
// fire in lockstep. The jitter is stable for a given name and interval.
func intervalSchedule(every time.Duration, now time.Time, name string) (cron.Schedule, time.Duration) {
	base := cron.Every(every)
	window := min(every, maxFirstRunJitter)
	if window <= 0 {
		return base, 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	jitter := time.Duration(h.Sum64() % uint64(window))
	return &delayedFirst{base: base, first: now.Add(every + jitter)}, jitter
}
