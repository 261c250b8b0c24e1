package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"habitbot/internal/task/scheduler"
	"habitbot/pkg/logx"
)

// Validate checks values the decoder cannot: durations, zone, schedule, driver.
// It reports every problem found, joined.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := Duration("telegram.poll_timeout", cfg.Telegram.PollTimeout, 0); err != nil {
		add(err)
	}

	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		add(fmt.Errorf("logging.level: unknown level %q", lvl))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add(errors.New("logging.file.path is required when file logging is enabled"))
	}
	if lt := cfg.Logging.Telegram; lt.Enabled {
		if lt.ChatID == 0 {
			add(errors.New("logging.telegram.chat_id is required when telegram logging is enabled"))
		}
		if lvl := strings.TrimSpace(lt.MinLevel); lvl != "" && !logx.ValidLevel(lvl) {
			add(fmt.Errorf("logging.telegram.min_level: unknown level %q", lvl))
		}
	}

	if cfg.Reminder.Enabled {
		if _, err := scheduler.ParseSchedule(cfg.Reminder.Interval); err != nil {
			add(fmt.Errorf("reminder.interval: %w", err))
		}
	}
	if tz := strings.TrimSpace(cfg.Reminder.Timezone); tz != "" && !strings.EqualFold(tz, "local") {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("reminder.timezone: %w", err))
		}
	}
	if cfg.Reminder.Parallel < 0 {
		add(errors.New("reminder.parallel must be >= 0"))
	}
	if _, err := Duration("reminder.timeout", cfg.Reminder.Timeout, 0); err != nil {
		add(err)
	}

	if n := cfg.Notifier; n != nil {
		if n.RatePerSec < 0 || n.RetryMax < 0 || n.HistorySize < 0 {
			add(errors.New("notifier: rate_per_sec, retry_max and history_size must be >= 0"))
		}
		for path, raw := range map[string]string{
			"notifier.send_timeout":    n.SendTimeout,
			"notifier.retry_base":      n.RetryBase,
			"notifier.retry_max_delay": n.RetryMaxDelay,
		} {
			if _, err := Duration(path, raw, 0); err != nil {
				add(err)
			}
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add(fmt.Errorf("storage.path is required for driver %q", cfg.Storage.Driver))
		}
	case "postgres", "postgresql":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			add(errors.New("storage.dsn is required for postgres"))
		}
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	if _, err := Duration("storage.busy_timeout", cfg.Storage.BusyTimeout, 0); err != nil {
		add(err)
	}

	return errors.Join(errs...)
}
