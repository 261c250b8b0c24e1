package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"habitbot/internal/eventbus"
	"habitbot/internal/habit"
	"habitbot/pkg/logx"
)

// saveTimeout bounds the advance write once a reminder has been sent.
const saveTimeout = 5 * time.Second

// Store is the part of the habit store a pass needs. Save persists h.Time
// for the record h.ID.
type Store interface {
	ListAll(ctx context.Context) ([]habit.Habit, error)
	Save(ctx context.Context, h habit.Habit) error
}

// Channel delivers a message to an identity. Errors mean the message was not delivered.
type Channel interface {
	Send(ctx context.Context, identity, text string) error
}

type Config struct {
	// Parallel bounds how many habits are processed at once. <= 1 is sequential.
	Parallel int
}

// ReminderEvent is the Data of reminder events on the bus.
type ReminderEvent struct {
	RunID   string    `json:"run_id"`
	HabitID int64     `json:"habit_id"`
	State   State     `json:"state"`
	DueAt   time.Time `json:"due_at"`
	Error   string    `json:"error,omitempty"`
}

type Scheduler struct {
	store   Store
	channel Channel
	log     logx.Logger
	bus     eventbus.Bus

	mu  sync.Mutex
	cfg Config
}

func NewScheduler(cfg Config, store Store, channel Channel, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Scheduler{
		store:   store,
		channel: channel,
		log:     log.With(logx.String("comp", "reminder")),
		bus:     bus,
		cfg:     cfg,
	}
}

func (s *Scheduler) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Pass runs one scheduling pass at now, computing due times in zone.
func (s *Scheduler) Pass(ctx context.Context, now time.Time, zone *time.Location) Report {
	if ctx == nil {
		ctx = context.Background()
	}
	if zone == nil {
		zone = time.Local
	}
	s.mu.Lock()
	parallel := s.cfg.Parallel
	s.mu.Unlock()

	rep := Report{RunID: uuid.NewString(), Now: now, Started: time.Now()}
	log := s.log.With(logx.String("run_id", rep.RunID))

	habits, err := s.store.ListAll(ctx)
	if err != nil {
		rep.Err = fmt.Errorf("list habits: %w", err)
		rep.Finished = time.Now()
		log.Error("pass aborted", logx.Err(rep.Err))
		return rep
	}

	rep.Outcomes = make([]Outcome, len(habits))
	for i, h := range habits {
		rep.Outcomes[i] = Outcome{HabitID: h.ID, State: StateNotReached}
	}

	if parallel <= 1 {
		for i, h := range habits {
			if ctx.Err() != nil {
				break
			}
			rep.Outcomes[i] = s.process(ctx, rep.RunID, h, now, zone)
		}
	} else {
		sem := make(chan struct{}, parallel)
		var wg sync.WaitGroup
	loop:
		for i, h := range habits {
			select {
			case <-ctx.Done():
				break loop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(i int, h habit.Habit) {
				defer wg.Done()
				defer func() { <-sem }()
				rep.Outcomes[i] = s.process(ctx, rep.RunID, h, now, zone)
			}(i, h)
		}
		wg.Wait()
	}

	if err := ctx.Err(); err != nil {
		rep.Err = fmt.Errorf("pass cancelled: %w", err)
	}
	rep.Finished = time.Now()

	s.bus.Publish(eventbus.Event{Type: eventbus.TypePassDone, Time: rep.Finished, Data: rep})
	log.Info("pass done",
		logx.Int("habits", len(habits)),
		logx.Int("advanced", rep.Count(StateAdvanced)),
		logx.Int("stuck", rep.Count(StateStuck)),
		logx.Int("skipped", rep.Count(StateSkipped)),
		logx.Int("not_reached", rep.Count(StateNotReached)),
		logx.Duration("took", rep.Finished.Sub(rep.Started)),
	)
	return rep
}

// process handles one habit. It never panics the pass: a panic is turned into a stuck outcome.
func (s *Scheduler) process(ctx context.Context, runID string, h habit.Habit, now time.Time, zone *time.Location) (out Outcome) {
	out = Outcome{HabitID: h.ID, State: StateWaiting}
	log := s.log.With(logx.String("run_id", runID), logx.Int64("habit_id", h.ID))
	defer func() {
		if r := recover(); r != nil {
			out.State = StateStuck
			out.Err = fmt.Errorf("panic: %v", r)
			log.Error("habit panicked", logx.Any("panic", r))
		}
	}()

	dueAt := DueAt(h, now, zone)
	out.DueAt = dueAt
	if !InWindow(dueAt, now) {
		return out
	}

	identity := h.Owner.Identity()
	if identity == "" {
		out.State = StateSkipped
		log.Debug("no identity, skipping", logx.Int64("owner_id", h.OwnerID))
		return out
	}
	out.State = StateDue

	if err := s.channel.Send(ctx, identity, PrimaryMessage(h)); err != nil {
		out.State = StateStuck
		out.Err = fmt.Errorf("habit %d: primary: %w", h.ID, err)
		log.Warn("reminder failed", logx.Err(err))
		s.publish(eventbus.TypeReminderFailed, runID, out)
		return out
	}
	out.Messages++
	s.publish(eventbus.TypeReminderSent, runID, out)

	if h.Reward != "" {
		if err := s.channel.Send(ctx, identity, RewardMessage(h.Reward)); err != nil {
			log.Warn("reward message failed", logx.Err(err))
		} else {
			out.Messages++
		}
	}

	// Only the date moves: h.Time is persisted as-is, even when dueAt was
	// normalised out of a DST gap.
	next := Next(dueAt, h.Periodicity)
	// The reminder is out, so the advance outlives pass cancellation.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	err := s.store.Save(saveCtx, h)
	cancel()
	if err != nil {
		out.State = StateStuck
		out.Err = fmt.Errorf("habit %d: save: %w", h.ID, err)
		log.Error("advance failed", logx.Err(err))
		s.publish(eventbus.TypeReminderFailed, runID, out)
		return out
	}
	out.State = StateAdvanced
	out.Next = h.Time
	log.Debug("habit advanced", logx.Time("next", next))
	s.publish(eventbus.TypeReminderAdvanced, runID, out)
	return out
}

func (s *Scheduler) publish(typ, runID string, o Outcome) {
	ev := ReminderEvent{RunID: runID, HabitID: o.HabitID, State: o.State, DueAt: o.DueAt}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
}
