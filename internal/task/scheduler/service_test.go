package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"habitbot/pkg/logx"
)

func TestAddScheduleUpsertsByName(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)
	job := func(context.Context) error { return nil }
	if _, err := s.AddSchedule("reminder.pass", "5m", 0, job); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	if _, err := s.AddSchedule("reminder.pass", "*/2 * * * *", 0, job); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 1 || snap.Schedules[0].Spec != "*/2 * * * *" {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}
	if _, err := s.AddSchedule("bad", "every day", 0, job); err == nil {
		t.Fatalf("expected invalid cron error")
	}
	if !s.Remove("reminder.pass") || s.Remove("reminder.pass") {
		t.Fatalf("Remove did not behave")
	}
}

func TestTriggerSkipsOverlap(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	defer s.runCancel()

	release := make(chan struct{})
	var calls atomic.Int32
	d := scheduleDef{name: "slow", state: &runState{}, job: func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}}
	go s.trigger(d)
	for !d.state.running.Load() {
		time.Sleep(time.Millisecond)
	}
	s.trigger(d)
	close(release)
	s.wg.Wait()
	for d.state.running.Load() {
		time.Sleep(time.Millisecond)
	}
	if calls.Load() != 1 || d.state.skipped.Load() != 1 {
		t.Fatalf("calls=%d skipped=%d", calls.Load(), d.state.skipped.Load())
	}
}

func TestTriggerRecordsFailureAndPanic(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	defer s.runCancel()

	d := scheduleDef{name: "bad", state: &runState{}, job: func(context.Context) error { return errors.New("boom") }}
	s.trigger(d)
	p := scheduleDef{name: "panics", state: &runState{}, job: func(context.Context) error { panic("oops") }}
	s.trigger(p)
	if d.state.failures.Load() != 1 || p.state.failures.Load() != 1 {
		t.Fatalf("failures not recorded")
	}
	if v, _ := d.state.lastErr.Load().(string); v != "boom" {
		t.Fatalf("lastErr = %q", v)
	}
}

func TestStartRunsIntervalJob(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop(), nil)
	ran := make(chan struct{}, 1)
	if _, err := s.AddInterval("tick", time.Second, time.Second, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}
	s.Start(context.Background())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatalf("interval job did not run")
	}
}
