package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind tells how a schedule string is triggered.
type Kind int

const (
	KindCron Kind = iota
	KindInterval
)

func (k Kind) String() string {
	if k == KindInterval {
		return "interval"
	}
	return "cron"
}

// Schedule is a normalized schedule string.
//
// Accepted forms:
//   - cron: "*/5 * * * *", "0 8 * * 1-5", "@hourly", "@every 5m"
//   - Go duration: "5m", "1h30m"
//   - HH:MM span: "00:05" (five minutes), "01:30"
//
// A "cron:" or "interval:" prefix forces the kind.
type Schedule struct {
	Kind  Kind
	Cron  string
	Every time.Duration
}

// ParseSchedule normalizes raw. Cron expressions are only split off here;
// the trigger service validates them with its cron parser.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule required")
	}
	if rest, ok := cutPrefixFold(s, "cron:"); ok {
		if rest == "" {
			return Schedule{}, fmt.Errorf("cron expression required after %q", "cron:")
		}
		return Schedule{Kind: KindCron, Cron: rest}, nil
	}
	if rest, ok := cutPrefixFold(s, "interval:"); ok {
		d, err := parseSpan(rest)
		if err != nil {
			return Schedule{}, err
		}
		return Schedule{Kind: KindInterval, Every: d}, nil
	}
	if strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t") {
		return Schedule{Kind: KindCron, Cron: s}, nil
	}
	d, err := parseSpan(s)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid schedule %q: use a cron spec like \"*/5 * * * *\", a duration like \"5m\" or HH:MM like \"00:05\"", raw)
	}
	return Schedule{Kind: KindInterval, Every: d}, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(s[len(prefix):]), true
}

// parseSpan reads a Go duration or an "HH:MM" span. The result is always > 0.
func parseSpan(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	var d time.Duration
	if hh, mm, ok := strings.Cut(v, ":"); ok {
		h, errH := strconv.Atoi(hh)
		m, errM := strconv.Atoi(mm)
		if errH != nil || errM != nil || len(mm) != 2 || h < 0 || m < 0 || m > 59 {
			return 0, fmt.Errorf("invalid HH:MM span %q", v)
		}
		d = time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", v, err)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}
