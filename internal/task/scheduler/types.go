package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"habitbot/internal/eventbus"
	"habitbot/pkg/logx"
)

// Config controls the trigger service.
type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "Europe/Moscow"
}

// Job is the function a schedule runs.
type Job func(ctx context.Context) error

// runState tracks in-flight runs and counters for one schedule.
type runState struct {
	running  atomic.Bool
	runs     atomic.Int64
	skipped  atomic.Int64
	failures atomic.Int64
	lastErr  atomic.Value // string
}

type scheduleDef struct {
	name    string
	spec    string // cron spec or @every
	every   time.Duration
	timeout time.Duration
	job     Job
	entryID cron.EntryID
	state   *runState
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	// runCtx is cancelled on Stop so in-flight jobs observe shutdown.
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

type ScheduleInfo struct {
	Name     string
	Spec     string
	Timeout  time.Duration
	Next     time.Time
	Prev     time.Time
	Running  bool
	Runs     int64
	Skipped  int64
	Failures int64
	LastErr  string
}

type Snapshot struct {
	Enabled   bool
	Timezone  string
	Schedules []ScheduleInfo
}

// TaskEvent is the Data of scheduler events on the bus.
type TaskEvent struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

const (
	EventTaskDone    = "scheduler.task_done"
	EventTaskFailed  = "scheduler.task_failed"
	EventTaskSkipped = "scheduler.task_skipped"
)
