package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig  `json:"telegram"`
	Logging  LoggingConfig   `json:"logging"`
	Reminder ReminderConfig  `json:"reminder"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  StorageConfig   `json:"storage"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is the long-poll timeout for inbound updates.
	PollTimeout string `json:"poll_timeout"`
	// Commands enables the inbound command loop (/start, /habits, /public).
	Commands bool `json:"commands"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// ReminderConfig controls the reminder pass trigger.
//
// Example:
//
//	"reminder": { "enabled": true, "interval": "5m", "timezone": "Europe/Moscow" }
type ReminderConfig struct {
	Enabled bool `json:"enabled"`
	// Interval accepts a duration ("5m"), HH:MM ("00:05") or a cron spec ("*/5 * * * *").
	Interval string `json:"interval"`
	// Timezone is the IANA zone used for "now" and due times. Empty means local.
	Timezone string `json:"timezone"`
	// Parallel bounds concurrent habit processing within a pass. <= 1 is sequential.
	Parallel int `json:"parallel,omitempty"`
	// Timeout bounds a single pass. Empty means 2m.
	Timeout string `json:"timeout,omitempty"`
}

// NotifierConfig controls message delivery.
// If the whole section is omitted, the notifier defaults to enabled.
type NotifierConfig struct {
	Enabled       bool   `json:"enabled"`
	RatePerSec    int    `json:"rate_per_sec"`
	SendTimeout   string `json:"send_timeout"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
	HistorySize   int    `json:"history_size,omitempty"`
}

// StorageConfig selects the habit store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/habitbot.db" }
//	"storage": { "driver": "postgres", "dsn": "postgres://habitbot@localhost/habits?sslmode=disable" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}
