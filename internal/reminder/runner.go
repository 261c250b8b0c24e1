package reminder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"habitbot/pkg/logx"
)

// Runner binds a Scheduler to the configured zone and wall clock. The trigger
// calls RunOnce on every tick.
type Runner struct {
	sched *Scheduler
	log   logx.Logger
	now   func() time.Time

	mu   sync.Mutex
	zone *time.Location
	last *Report
}

func NewRunner(sched *Scheduler, zone *time.Location, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	if zone == nil {
		zone = time.Local
	}
	return &Runner{sched: sched, log: log, now: time.Now, zone: zone}
}

// LoadZone resolves an IANA zone name. An empty name means the local zone.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

func (r *Runner) SetZone(zone *time.Location) {
	if zone == nil {
		return
	}
	r.mu.Lock()
	r.zone = zone
	r.mu.Unlock()
}

func (r *Runner) Zone() *time.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zone
}

// RunOnce runs a pass at the current time.
func (r *Runner) RunOnce(ctx context.Context) Report {
	return r.RunAt(ctx, r.now())
}

// RunAt runs a pass as if the clock read at.
func (r *Runner) RunAt(ctx context.Context, at time.Time) Report {
	zone := r.Zone()
	r.log.Debug("pass starting", logx.Time("at", at), logx.String("zone", zone.String()))
	rep := r.sched.Pass(ctx, at.In(zone), zone)
	r.mu.Lock()
	r.last = &rep
	r.mu.Unlock()
	return rep
}

// Last returns the most recent report.
func (r *Runner) Last() (Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Report{}, false
	}
	return *r.last, true
}
