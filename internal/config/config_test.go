package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  poll_timeout: 10s
logging:
  level: info
  console: true
reminder:
  enabled: true
  interval: 5m
  timezone: Europe/Moscow
storage:
  driver: sqlite
  path: ./data/habitbot.db
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Reminder.Interval != "5m" || cfg.Storage.Driver != "sqlite" || cfg.Telegram.Token != "123:abc" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Notifier != nil {
		t.Fatalf("omitted notifier section should stay nil")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	if _, err := Decode("c.json", []byte(`{"reminder":{"every":"5m"}}`)); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := Decode("c.json", []byte(`{"reminder":{}} {}`)); err == nil {
		t.Fatalf("expected trailing data error")
	}
	if _, err := Decode("c.yml", []byte("reminder:\n  interval: 5m\n---\nreminder: {}\n")); err == nil {
		t.Fatalf("expected multiple documents error")
	}
	if cfg, err := Decode("c.yaml", nil); err != nil || cfg.Reminder.Enabled {
		t.Fatalf("empty yaml = %+v, %v", cfg, err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty ok", cfg: Config{}},
		{name: "bad interval", cfg: Config{Reminder: ReminderConfig{Enabled: true, Interval: "soon"}}, wantErr: "reminder.interval"},
		{name: "bad zone", cfg: Config{Reminder: ReminderConfig{Timezone: "Mars/Base"}}, wantErr: "reminder.timezone"},
		{name: "bad level", cfg: Config{Logging: LoggingConfig{Level: "loud"}}, wantErr: "logging.level"},
		{name: "sqlite needs path", cfg: Config{Storage: StorageConfig{Driver: "sqlite"}}, wantErr: "storage.path"},
		{name: "postgres needs dsn", cfg: Config{Storage: StorageConfig{Driver: "postgres"}}, wantErr: "storage.dsn"},
		{name: "unknown driver", cfg: Config{Storage: StorageConfig{Driver: "redis"}}, wantErr: "storage.driver"},
		{name: "bad send timeout", cfg: Config{Notifier: &NotifierConfig{SendTimeout: "ten"}}, wantErr: "notifier.send_timeout"},
		{name: "telegram log needs chat", cfg: Config{Logging: LoggingConfig{Telegram: LoggingTelegram{Enabled: true}}}, wantErr: "chat_id"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(&tt.cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 3 * time.Second},
		{raw: "0s", want: 3 * time.Second},
		{raw: " 250ms ", want: 250 * time.Millisecond},
		{raw: "-1s", wantErr: true},
		{raw: "ten", wantErr: true},
	}
	for _, tc := range cases {
		got, err := Duration("x", tc.raw, 3*time.Second)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("Duration(%q) = %v, %v", tc.raw, got, err)
		}
	}
}

func TestWatchPublishesChanges(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"reminder":{"interval":"5m"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`{"reminder":{"interval":"10m"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-ch:
		if cfg.Reminder.Interval != "10m" {
			t.Fatalf("interval = %q", cfg.Reminder.Interval)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no config published")
	}
	if m.Get().Reminder.Interval != "10m" {
		t.Fatalf("Get not updated")
	}
}
