package app

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"habitbot/internal/config"
	"habitbot/internal/eventbus"
	"habitbot/internal/habit"
	"habitbot/internal/notifier"
	"habitbot/internal/reminder"
	"habitbot/internal/storage"
	"habitbot/internal/task/scheduler"
	"habitbot/internal/transport"
	"habitbot/internal/transport/telegram/router"
	"habitbot/pkg/logx"
)

func TestMapNotifierConfigDefaults(t *testing.T) {
	t.Parallel()
	got, err := mapNotifierConfig(&config.Config{})
	if err != nil {
		t.Fatalf("mapNotifierConfig: %v", err)
	}
	if !got.Enabled || got.SendTimeout != 10*time.Second || got.RatePerSec != 20 || got.RetryMax != 0 {
		t.Fatalf("unexpected defaults: %+v", got)
	}

	got, err = mapNotifierConfig(&config.Config{Notifier: &config.NotifierConfig{
		Enabled:     false,
		SendTimeout: "3s",
		RetryMax:    0,
	}})
	if err != nil {
		t.Fatalf("mapNotifierConfig: %v", err)
	}
	if got.Enabled || got.SendTimeout != 3*time.Second || got.RetryMax != 0 {
		t.Fatalf("unexpected mapping: %+v", got)
	}

	if _, err := mapNotifierConfig(&config.Config{Notifier: &config.NotifierConfig{SendTimeout: "soon"}}); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}

func TestMapReminderConfig(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		in       config.ReminderConfig
		interval string
		zone     string
		timeout  time.Duration
		tz       string
		wantErr  bool
	}{
		{name: "defaults", in: config.ReminderConfig{Enabled: true}, interval: "5m", zone: "Local", timeout: 2 * time.Minute},
		{name: "local keyword", in: config.ReminderConfig{Timezone: "local", Interval: "@every 1m"}, interval: "@every 1m", zone: "Local", timeout: 2 * time.Minute},
		{name: "iana", in: config.ReminderConfig{Timezone: "UTC", Timeout: "30s", Parallel: 4}, interval: "5m", zone: "UTC", timeout: 30 * time.Second, tz: "UTC"},
		{name: "bad zone", in: config.ReminderConfig{Timezone: "Mars/Base"}, wantErr: true},
		{name: "bad timeout", in: config.ReminderConfig{Timeout: "x"}, wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rs, err := mapReminderConfig(&config.Config{Reminder: tc.in})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("mapReminderConfig: %v", err)
			}
			if rs.interval != tc.interval || rs.zone.String() != tc.zone || rs.timeout != tc.timeout || rs.trigger.Timezone != tc.tz {
				t.Fatalf("got interval=%q zone=%s timeout=%s tz=%q", rs.interval, rs.zone, rs.timeout, rs.trigger.Timezone)
			}
			if rs.sched.Parallel != tc.in.Parallel || rs.enabled != tc.in.Enabled {
				t.Fatalf("got %+v", rs)
			}
		})
	}
}

func TestMapStorageAndLogging(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Storage: config.StorageConfig{Driver: " SQLite ", Path: " ./data/h.db "},
		Logging: config.LoggingConfig{
			Level: "debug",
			File:  config.LoggingFile{Enabled: true, Path: "h.log", MaxSizeMB: 5},
			Telegram: config.LoggingTelegram{
				Enabled: true, ChatID: -100, MinLevel: "error",
			},
		},
	}
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		t.Fatalf("mapStorageConfig: %v", err)
	}
	if sc.Driver != "sqlite" || sc.Path != "./data/h.db" || sc.BusyTimeout != time.Second {
		t.Fatalf("unexpected storage config: %+v", sc)
	}
	lc := mapLoggingConfig(cfg)
	if lc.File.MaxSizeMB != 5 || lc.Telegram.ChatID != -100 || lc.Telegram.MinLevel != "error" {
		t.Fatalf("unexpected logging config: %+v", lc)
	}

	if _, err := OpenStore(&config.Config{}, logx.Nop()); err == nil {
		t.Fatalf("expected error for disabled storage")
	}
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	got  chan struct{}
}

func (f *fakeSender) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	if f.got != nil {
		f.got <- struct{}{}
	}
	return transport.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

func openTestStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "habits.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestChatCommands(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	chat := int64(42)
	owner, err := st.CreateUser(ctx, "ann", &chat)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := storage.CreateHabit(ctx, st, habit.Habit{
		OwnerID: owner.ID, Place: "park", Action: "Walk", Time: habit.NewClock(8, 0, 0),
		Periodicity: 1, Duration: 60, Reward: "Coffee", IsPublic: true,
	}); err != nil {
		t.Fatalf("CreateHabit: %v", err)
	}

	s := &fakeSender{got: make(chan struct{}, 8)}
	r := router.New(logx.Nop(), s)
	registerCommands(r, st)

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates := make(chan transport.Update, 4)
	go func() { _ = r.DispatchLoop(rctx, updates) }()

	cases := []struct {
		text string
		chat int64
		want string
	}{
		{"/start", 7, "Your chat id is 7"},
		{"/habits", chat, "Walk at 08:00 in park, every 1 day(s), reward: Coffee"},
		{"/habits", 7, "You have no habits yet."},
		{"/public@habit_bot", 7, "Public habits:"},
		{"/help", 7, "/public - List public habits"},
	}
	for _, tc := range cases {
		updates <- transport.Update{Kind: transport.UpdateMessage, Message: &transport.Message{Text: tc.text, ChatID: tc.chat}}
		select {
		case <-s.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s: no reply", tc.text)
		}
		if got := s.last(); !strings.Contains(got, tc.want) {
			t.Fatalf("%s: reply %q does not contain %q", tc.text, got, tc.want)
		}
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	st := openTestStore(t)
	logs, log := logx.New(mapLoggingConfig(cfg), nil)
	t.Cleanup(func() { _ = logs.Close() })
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		t.Fatalf("notifier config: %v", err)
	}
	rs, err := mapReminderConfig(cfg)
	if err != nil {
		t.Fatalf("reminder config: %v", err)
	}
	bus := eventbus.New()
	notif := notifier.New(ncfg, &fakeSender{}, log, bus)
	reminders := reminder.NewScheduler(rs.sched, st, notif, log, bus)
	return &App{
		log:       log,
		logs:      logs,
		bus:       bus,
		store:     st,
		notif:     notif,
		reminders: reminders,
		runner:    reminder.NewRunner(reminders, rs.zone, log),
		sched:     scheduler.New(rs.trigger, log, bus),
	}
}

func TestRegisterPassUpsertsSchedule(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, &config.Config{Reminder: config.ReminderConfig{Enabled: true}})

	if err := a.registerPass("5m", time.Minute); err != nil {
		t.Fatalf("registerPass: %v", err)
	}
	if err := a.registerPass("*/10 * * * *", time.Minute); err != nil {
		t.Fatalf("registerPass: %v", err)
	}
	if err := a.registerPass("every now and then", time.Minute); err == nil {
		t.Fatalf("expected error for bad schedule")
	}
	snap := a.sched.Snapshot()
	if len(snap.Schedules) != 1 || snap.Schedules[0].Name != passScheduleName {
		t.Fatalf("unexpected schedules: %+v", snap.Schedules)
	}
	if a.passSpec != "*/10 * * * *" {
		t.Fatalf("passSpec = %q", a.passSpec)
	}
}

func TestApplyConfigUpdatesZoneAndTrigger(t *testing.T) {
	t.Parallel()
	prev := &config.Config{Reminder: config.ReminderConfig{Enabled: true, Interval: "5m"}}
	a := newTestApp(t, prev)
	if err := a.registerPass("5m", 2*time.Minute); err != nil {
		t.Fatalf("registerPass: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.sched.Start(ctx)
	defer a.sched.Stop(context.Background())

	next := &config.Config{Reminder: config.ReminderConfig{Enabled: false, Interval: "10m", Timezone: "UTC"}}
	a.applyConfig(ctx, prev, next)

	if a.runner.Zone().String() != "UTC" {
		t.Fatalf("zone = %s, want UTC", a.runner.Zone())
	}
	if a.sched.Enabled() {
		t.Fatalf("trigger still enabled")
	}
	if a.passSpec != "10m" {
		t.Fatalf("passSpec = %q, want 10m", a.passSpec)
	}
}
