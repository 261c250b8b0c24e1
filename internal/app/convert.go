package app

import (
	"strings"
	"time"

	"habitbot/internal/config"
	"habitbot/internal/notifier"
	"habitbot/internal/reminder"
	"habitbot/internal/storage"
	"habitbot/internal/task/scheduler"
	telegram "habitbot/internal/transport/telegram/adapter"
	"habitbot/pkg/logx"
)

const defaultInterval = "5m"

func mapLoggingConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled:    lc.File.Enabled,
			Path:       lc.File.Path,
			MaxSizeMB:  lc.File.MaxSizeMB,
			MaxBackups: lc.File.MaxBackups,
			MaxAgeDays: lc.File.MaxAgeDays,
			Compress:   lc.File.Compress,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    lc.Telegram.Enabled,
			ChatID:     lc.Telegram.ChatID,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

func mapAdapterConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.Duration("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: cfg.Telegram.Token, PollTimeout: poll}, nil
}

// mapNotifierConfig fills defaults. An omitted notifier section means enabled.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	out := notifier.Config{
		Enabled:       true,
		RatePerSec:    20,
		SendTimeout:   10 * time.Second,
		RetryMax:      0,
		RetryBase:     500 * time.Millisecond,
		RetryMaxDelay: 5 * time.Second,
		HistorySize:   100,
	}
	n := cfg.Notifier
	if n == nil {
		return out, nil
	}
	out.Enabled = n.Enabled
	if n.RatePerSec > 0 {
		out.RatePerSec = n.RatePerSec
	}
	out.RetryMax = n.RetryMax
	if n.HistorySize > 0 {
		out.HistorySize = n.HistorySize
	}
	var err error
	if out.SendTimeout, err = config.Duration("notifier.send_timeout", n.SendTimeout, out.SendTimeout); err != nil {
		return notifier.Config{}, err
	}
	if out.RetryBase, err = config.Duration("notifier.retry_base", n.RetryBase, out.RetryBase); err != nil {
		return notifier.Config{}, err
	}
	if out.RetryMaxDelay, err = config.Duration("notifier.retry_max_delay", n.RetryMaxDelay, out.RetryMaxDelay); err != nil {
		return notifier.Config{}, err
	}
	return out, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	busy, err := config.Duration("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(sc.Path),
		DSN:         strings.TrimSpace(sc.DSN),
		BusyTimeout: busy,
	}, nil
}

// reminderSettings is the resolved reminder section.
type reminderSettings struct {
	enabled  bool
	interval string
	zone     *time.Location
	timeout  time.Duration
	sched    reminder.Config
	trigger  scheduler.Config
}

func mapReminderConfig(cfg *config.Config) (reminderSettings, error) {
	rc := cfg.Reminder
	zone, err := reminder.LoadZone(rc.Timezone)
	if err != nil {
		return reminderSettings{}, err
	}
	timeout, err := config.Duration("reminder.timeout", rc.Timeout, 2*time.Minute)
	if err != nil {
		return reminderSettings{}, err
	}
	interval := strings.TrimSpace(rc.Interval)
	if interval == "" {
		interval = defaultInterval
	}
	tz := strings.TrimSpace(rc.Timezone)
	if strings.EqualFold(tz, "local") {
		tz = ""
	}
	return reminderSettings{
		enabled:  rc.Enabled,
		interval: interval,
		zone:     zone,
		timeout:  timeout,
		sched:    reminder.Config{Parallel: rc.Parallel},
		trigger:  scheduler.Config{Enabled: rc.Enabled, Timezone: tz},
	}, nil
}

// CheckConfig runs the component mappings over cfg so a bad value is caught
// before anything is started.
func CheckConfig(cfg *config.Config) error {
	if _, err := mapAdapterConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	_, err := mapReminderConfig(cfg)
	return err
}
