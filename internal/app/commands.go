package app

import (
	"context"
	"fmt"
	"strings"

	"habitbot/internal/habit"
	"habitbot/internal/storage"
	"habitbot/internal/transport/telegram/router"
)

const maxListed = 50

// registerCommands wires the chat commands onto r.
func registerCommands(r *router.Router, store storage.Store) {
	r.Register(router.Command{
		Name:        "start",
		Description: "Show the chat id to link with your account",
		Handler: func(ctx context.Context, req *router.Request) error {
			return r.Reply(ctx, req, fmt.Sprintf(
				"Hi! Your chat id is %d.\nLink it to your account with:\nhabitbot user link <user-id> %d",
				req.ChatID, req.ChatID))
		},
	})
	r.Register(router.Command{
		Name:        "habits",
		Description: "List your habits",
		Handler: func(ctx context.Context, req *router.Request) error {
			hs, err := store.ListByTelegramID(ctx, req.ChatID)
			if err != nil {
				return err
			}
			if len(hs) == 0 {
				return r.Reply(ctx, req, "You have no habits yet.")
			}
			return r.Reply(ctx, req, formatHabits("Your habits:", hs))
		},
	})
	r.Register(router.Command{
		Name:        "public",
		Description: "List public habits",
		Handler: func(ctx context.Context, req *router.Request) error {
			hs, err := store.ListPublic(ctx)
			if err != nil {
				return err
			}
			if len(hs) == 0 {
				return r.Reply(ctx, req, "No public habits.")
			}
			return r.Reply(ctx, req, formatHabits("Public habits:", hs))
		},
	})
	r.Register(router.Command{
		Name:        "help",
		Description: "Show available commands",
		Handler: func(ctx context.Context, req *router.Request) error {
			var b strings.Builder
			b.WriteString("Commands:")
			for _, c := range r.Commands() {
				fmt.Fprintf(&b, "\n/%s - %s", c.Name, c.Description)
			}
			return r.Reply(ctx, req, b.String())
		},
	})
}

func formatHabits(title string, hs []habit.Habit) string {
	var b strings.Builder
	b.WriteString(title)
	for i, h := range hs {
		if i == maxListed {
			fmt.Fprintf(&b, "\n... and %d more", len(hs)-maxListed)
			break
		}
		fmt.Fprintf(&b, "\n#%d %s", h.ID, formatHabit(h))
	}
	return b.String()
}

func formatHabit(h habit.Habit) string {
	s := fmt.Sprintf("%s at %s in %s, every %d day(s)", h.Action, h.Time.HHMM(), h.Place, h.Periodicity)
	switch {
	case h.IsNice:
		s += " [pleasant]"
	case h.Reward != "":
		s += ", reward: " + h.Reward
	case h.LinkedHabitID != nil:
		s += fmt.Sprintf(", then #%d", *h.LinkedHabitID)
	}
	return s
}
