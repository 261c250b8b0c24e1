package storage

import (
	"context"
	"errors"
	"time"

	"habitbot/internal/habit"
)

var (
	ErrNotFound = errors.New("not found")
	ErrDisabled = errors.New("storage disabled")
)

// Config selects and configures a driver.
type Config struct {
	Driver      string
	Path        string        // sqlite, file
	DSN         string        // postgres
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the scheduler, the bot and the CLI.
// Habits returned by Store carry a resolved Owner.
type Store interface {
	ListAll(ctx context.Context) ([]habit.Habit, error)
	// Save persists only h.Time for the record h.ID; other columns are left as stored.
	Save(ctx context.Context, h habit.Habit) error
	// ReplaceHabit overwrites every column of the record h.ID without validation.
	ReplaceHabit(ctx context.Context, h habit.Habit) error

	GetHabit(ctx context.Context, id int64) (habit.Habit, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]habit.Habit, error)
	ListByTelegramID(ctx context.Context, telegramID int64) ([]habit.Habit, error)
	ListPublic(ctx context.Context) ([]habit.Habit, error)
	InsertHabit(ctx context.Context, h habit.Habit) (habit.Habit, error)
	// DeleteHabit removes a habit and clears links that point to it.
	DeleteHabit(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, name string, telegramID *int64) (habit.Owner, error)
	GetUser(ctx context.Context, id int64) (habit.Owner, error)
	ListUsers(ctx context.Context) ([]habit.Owner, error)
	LinkTelegram(ctx context.Context, userID int64, telegramID *int64) error

	Close() error
}
