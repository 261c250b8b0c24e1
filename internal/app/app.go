package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"habitbot/internal/config"
	"habitbot/internal/eventbus"
	"habitbot/internal/notifier"
	"habitbot/internal/reminder"
	rtsup "habitbot/internal/runtime/supervisor"
	"habitbot/internal/storage"
	"habitbot/internal/task/scheduler"
	"habitbot/internal/transport"
	telegram "habitbot/internal/transport/telegram/adapter"
	"habitbot/internal/transport/telegram/router"
	"habitbot/pkg/logx"
)

const passScheduleName = "reminder.pass"

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter   *telegram.Adapter
	notif     *notifier.Channel
	reminders *reminder.Scheduler
	runner    *reminder.Runner
	sched     *scheduler.Service
	router    *router.Router

	updates chan transport.Update

	passMu      sync.Mutex
	passSpec    string
	passTimeout time.Duration
}

// LoadConfig reads and validates the config at path.
func LoadConfig(path string) (*config.ConfigManager, *config.Config, error) {
	cfgm := config.NewConfigManager(path)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfgm, cfg, nil
}

// OpenStore opens the configured habit store. A disabled store is an error
// here because every caller needs one.
func OpenStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if errors.Is(err, storage.ErrDisabled) {
		return nil, errors.New("storage.driver is required")
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// NewApp builds every component from the config at cfgPath without starting
// any goroutine. Callers either Start/Stop it or use the accessors and Close.
func NewApp(cfgPath string) (*App, error) {
	cfgm, cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	adCfg, err := mapAdapterConfig(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(adCfg, logx.NewConsole("INFO"))
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg), ad)
	appLog := log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	store, err := OpenStore(cfg, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	notif := notifier.New(ncfg, ad, log, bus)

	rs, err := mapReminderConfig(cfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	reminders := reminder.NewScheduler(rs.sched, store, notif, log, bus)
	runner := reminder.NewRunner(reminders, rs.zone, log.With(logx.String("comp", "reminder.runner")))

	schedSvc := scheduler.New(rs.trigger, log, bus)

	rt := router.New(log, ad)
	registerCommands(rt, store)

	return &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       appLog,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		adapter:   ad,
		notif:     notif,
		reminders: reminders,
		runner:    runner,
		sched:     schedSvc,
		router:    rt,
		updates:   make(chan transport.Update, 256),
	}, nil
}

func (a *App) Log() logx.Logger            { return a.log }
func (a *App) Store() storage.Store        { return a.store }
func (a *App) Notifier() *notifier.Channel { return a.notif }
func (a *App) Runner() *reminder.Runner    { return a.runner }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Close releases the store and log sinks of an app that was never started.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
	}
	return errors.Join(errs...)
}

// registerPass (re)registers the reminder pass trigger when its schedule or
// timeout changed. The scheduler upserts by name.
func (a *App) registerPass(spec string, timeout time.Duration) error {
	a.passMu.Lock()
	defer a.passMu.Unlock()
	if spec == a.passSpec && timeout == a.passTimeout {
		return nil
	}
	_, err := a.sched.AddSchedule(passScheduleName, spec, timeout, func(ctx context.Context) error {
		return a.runner.RunOnce(ctx).Err
	})
	if err != nil {
		return fmt.Errorf("reminder.interval: %w", err)
	}
	if a.passSpec != "" {
		a.log.Info("reminder schedule updated", logx.String("interval", spec), logx.Duration("timeout", timeout))
	}
	a.passSpec, a.passTimeout = spec, timeout
	return nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return CheckConfig(cfg)
	})

	cfg := a.cfgm.Get()
	rs, err := mapReminderConfig(cfg)
	if err != nil {
		return err
	}
	if err := a.registerPass(rs.interval, rs.timeout); err != nil {
		return err
	}
	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	} else {
		a.log.Warn("reminders disabled; no pass will run")
	}

	commands := cfg.Telegram.Commands
	if commands {
		if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
			return err
		}
		if err := a.adapter.SetCommands(a.router.BotCommands()); err != nil {
			a.log.Warn("menu commands not updated", logx.Err(err))
		}
		a.sup.Go("commands.dispatch", func(c context.Context) error {
			return a.router.DispatchLoop(c, a.updates)
		})
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	startWatchdog(a.sup, a.log)
	sdNotify(a.log, sdReady)

	a.log.Info("app started",
		logx.String("storage", cfg.Storage.Driver),
		logx.String("interval", rs.interval),
		logx.String("tz", rs.zone.String()),
		logx.Bool("commands", commands),
	)
	return nil
}

// applyConfig pushes a reloaded config into the running components.
// Storage, token and command-loop changes need a restart.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	var changed []string

	if prev.Storage != next.Storage {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if prev.Telegram != next.Telegram {
		a.log.Warn("telegram config changed; restart required for changes to take effect")
	}

	if prev.Logging != next.Logging {
		a.logs.Apply(mapLoggingConfig(next))
		changed = append(changed, "logging")
	}

	if ncfg, err := mapNotifierConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
		changed = append(changed, "notifier")
	}

	rs, err := mapReminderConfig(next)
	if err != nil {
		a.log.Warn("invalid reminder config; keeping previous", logx.Err(err))
	} else {
		a.reminders.Apply(rs.sched)
		a.runner.SetZone(rs.zone)
		if err := a.registerPass(rs.interval, rs.timeout); err != nil {
			a.log.Warn("reminder schedule rejected; keeping previous", logx.Err(err))
		}

		wasEnabled := a.sched.Enabled()
		a.sched.Apply(rs.trigger)
		switch {
		case wasEnabled && !rs.enabled:
			a.log.Info("reminders disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		case !wasEnabled && rs.enabled:
			a.log.Info("reminders enabled via config")
			a.sched.Start(ctx)
		}
		changed = append(changed, "reminder")
	}

	a.log.Info("config applied", logx.String("sections", strings.Join(changed, ",")))
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	if reason == "" {
		reason = StopUnknown
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, sdStopping)

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
				}
			}()
		}
	}

	// A pass in flight must finish its Save before the store closes.
	step("scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
