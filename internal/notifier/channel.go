package notifier

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"habitbot/internal/eventbus"
	"habitbot/internal/transport"
	"habitbot/pkg/logx"
)

const (
	defaultRatePerSec  = 3
	defaultSendTimeout = 10 * time.Second
	defaultHistorySize = 300
)

// Channel sends text to an identity through a transport.Sender.
//
// It is safe for concurrent use.
type Channel struct {
	mu sync.Mutex

	log    logx.Logger
	sender transport.Sender
	bus    eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender transport.Sender, log logx.Logger, bus eventbus.Bus) *Channel {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	c := &Channel{
		sender: sender,
		log:    log.With(logx.String("comp", "notifier")),
		bus:    bus,
	}
	c.applyLocked(cfg)
	return c
}

func (c *Channel) Enabled() bool {
	c.mu.Lock()
	en := c.cfg.Enabled
	c.mu.Unlock()
	return en
}

func (c *Channel) Apply(cfg Config) {
	c.mu.Lock()
	c.applyLocked(cfg)
	c.mu.Unlock()
}

func (c *Channel) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	c.cfg = cfg
	// burst = rate per sec, so short spikes don't block too hard.
	c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Send delivers text to identity (a Telegram chat id in decimal). Any failure,
// including a timeout, is returned as *DeliveryError.
func (c *Channel) Send(ctx context.Context, identity, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	cfg := c.cfg
	lim := c.limiter
	sender := c.sender
	c.mu.Unlock()

	fail := func(attempts int, err error) error {
		de := &DeliveryError{Identity: identity, Attempts: attempts, Err: err}
		now := time.Now()
		c.bus.Publish(eventbus.Event{Type: eventbus.TypeNotifyFailed, Time: now, Data: NotificationEvent{Identity: identity, At: now, Error: err.Error()}})
		return de
	}

	if !cfg.Enabled || sender == nil {
		return fail(0, ErrDisabled)
	}
	chatID, err := ParseIdentity(identity)
	if err != nil {
		return fail(0, err)
	}
	if strings.TrimSpace(text) == "" {
		return fail(0, ErrEmptyMessage)
	}

	maxAttempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return fail(attempt-1, err)
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		_, err := sender.SendText(callCtx, transport.ChatTarget{ChatID: chatID}, text, nil)
		timedOut := callCtx.Err() != nil
		if err == nil && timedOut {
			// Sender ignored the deadline; the outcome is unknown.
			err = callCtx.Err()
		}
		cancel()
		if err == nil {
			c.appendHistory(identity, text, cfg.HistorySize)
			now := time.Now()
			c.bus.Publish(eventbus.Event{Type: eventbus.TypeNotifySent, Time: now, Data: NotificationEvent{Identity: identity, ChatID: chatID, At: now}})
			return nil
		}
		lastErr = err
		c.log.Debug("send failed", logx.String("identity", identity), logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		// After a timeout the message may already be delivered; retrying could duplicate it.
		if timedOut {
			return fail(attempt, err)
		}
		if attempt >= maxAttempts || ctx.Err() != nil {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fail(attempt, fmt.Errorf("%w (last: %v)", ctx.Err(), lastErr))
		}
	}
	return fail(maxAttempts, lastErr)
}

// ParseIdentity converts a messaging identity into a Telegram chat id.
func ParseIdentity(identity string) (int64, error) {
	s := strings.TrimSpace(identity)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidIdentity)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}
	return id, nil
}

func (c *Channel) Snapshot() []HistoryItem {
	c.hmu.Lock()
	out := append([]HistoryItem(nil), c.history...)
	c.hmu.Unlock()
	return out
}

func (c *Channel) appendHistory(identity, text string, max int) {
	c.hmu.Lock()
	c.history = append(c.history, HistoryItem{At: time.Now(), Identity: identity, Text: text})
	if len(c.history) > max {
		c.history = c.history[len(c.history)-max:]
	}
	c.hmu.Unlock()
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1; the delay is for the next attempt.
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	// Jitter 0.7..1.3
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d < 0 {
		return 0
	}
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}
