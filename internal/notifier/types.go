package notifier

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDisabled        = errors.New("notifier disabled")
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrEmptyMessage    = errors.New("empty message")
)

// Config controls delivery pacing.
type Config struct {
	Enabled       bool
	RatePerSec    int
	SendTimeout   time.Duration
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	HistorySize   int
}

// DeliveryError reports a message that did not reach Identity.
type DeliveryError struct {
	Identity string
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Identity, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsDeliveryError reports whether err carries a *DeliveryError.
func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

type HistoryItem struct {
	At       time.Time
	Identity string
	Text     string
}

// NotificationEvent is the Data of notifier events on the bus.
type NotificationEvent struct {
	Identity string    `json:"identity"`
	ChatID   int64     `json:"chat_id"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}
