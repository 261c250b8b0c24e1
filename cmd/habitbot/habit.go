package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"habitbot/internal/app"
	"habitbot/internal/config"
	"habitbot/internal/habit"
	"habitbot/internal/storage"
	"habitbot/pkg/logx"
)

const newHabitNotice = "New habit created!"

func habitCmd() *cobra.Command {
	h := &cobra.Command{Use: "habit", Short: "Manage habits"}
	h.AddCommand(habitAddCmd())
	h.AddCommand(habitListCmd())
	h.AddCommand(habitEditCmd())
	h.AddCommand(habitShowCmd())
	h.AddCommand(habitRemoveCmd())
	return h
}

func habitAddCmd() *cobra.Command {
	var (
		userID  int64
		clock   string
		link    int64
		noticed bool
		h       habit.Habit
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a habit",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := habit.ParseClock(clock)
			if err != nil {
				return fmt.Errorf("--time: %w", err)
			}
			h.OwnerID = userID
			h.Time = t
			if cmd.Flags().Changed("link") {
				h.LinkedHabitID = &link
			}

			var created habit.Habit
			err = withStore(cmd.Context(), func(ctx context.Context, st storage.Store, cfg *config.Config) error {
				created, err = storage.CreateHabit(ctx, st, h)
				if err != nil {
					return err
				}
				noticed = noticed && cfg.Telegram.Token != "" && created.Owner.Identity() != ""
				return nil
			})
			if err != nil {
				return err
			}
			renderHabit(cmd.OutOrStdout(), created)

			if !noticed {
				return nil
			}
			// Sent through the full app so it honors notifier pacing and retries.
			return withApp(func(a *app.App) error {
				if err := a.Notifier().Send(cmd.Context(), created.Owner.Identity(), newHabitNotice); err != nil {
					a.Log().Warn("new habit notice not delivered", logx.Int64("habit_id", created.ID), logx.Err(err))
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.Int64Var(&userID, "user", 0, "owner user id")
	f.StringVar(&h.Place, "place", "", "where the action happens")
	f.StringVar(&h.Action, "action", "", "what to do")
	f.StringVar(&clock, "time", "", "time of day, HH:MM or HH:MM:SS")
	f.IntVar(&h.Periodicity, "every", 1, "periodicity in days (1..7)")
	f.IntVar(&h.Duration, "duration", 60, "seconds needed to perform the action (1..120)")
	f.BoolVar(&h.IsNice, "nice", false, "mark as a pleasant habit")
	f.StringVar(&h.Reward, "reward", "", "reward text")
	f.Int64Var(&link, "link", 0, "id of a pleasant habit to do afterwards")
	f.BoolVar(&h.IsPublic, "public", false, "share in the public list")
	f.BoolVar(&noticed, "notify", true, "send a Telegram notice to the owner")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

func habitListCmd() *cobra.Command {
	var (
		userID int64
		public bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List habits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st storage.Store, _ *config.Config) error {
				var (
					hs  []habit.Habit
					err error
				)
				switch {
				case public:
					hs, err = st.ListPublic(ctx)
				case userID != 0:
					hs, err = st.ListByOwner(ctx, userID)
				default:
					hs, err = st.ListAll(ctx)
				}
				if err != nil {
					return err
				}
				renderHabits(cmd.OutOrStdout(), hs)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "only habits of this user")
	cmd.Flags().BoolVar(&public, "public", false, "only public habits")
	return cmd
}

func habitEditCmd() *cobra.Command {
	var (
		clock  string
		link   int64
		unlink bool
		upd    habit.Habit
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a habit; only the given flags are applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			f := cmd.Flags()
			return withStore(cmd.Context(), func(ctx context.Context, st storage.Store, _ *config.Config) error {
				h, err := st.GetHabit(ctx, id)
				if err != nil {
					return fmt.Errorf("habit %d: %w", id, err)
				}
				if f.Changed("time") {
					if h.Time, err = habit.ParseClock(clock); err != nil {
						return fmt.Errorf("--time: %w", err)
					}
				}
				if f.Changed("place") {
					h.Place = upd.Place
				}
				if f.Changed("action") {
					h.Action = upd.Action
				}
				if f.Changed("every") {
					h.Periodicity = upd.Periodicity
				}
				if f.Changed("duration") {
					h.Duration = upd.Duration
				}
				if f.Changed("nice") {
					h.IsNice = upd.IsNice
				}
				if f.Changed("reward") {
					h.Reward = upd.Reward
				}
				if f.Changed("public") {
					h.IsPublic = upd.IsPublic
				}
				switch {
				case unlink:
					h.LinkedHabitID = nil
				case f.Changed("link"):
					h.LinkedHabitID = &link
				}
				if err := storage.UpdateHabit(ctx, st, h); err != nil {
					return err
				}
				updated, err := st.GetHabit(ctx, id)
				if err != nil {
					return err
				}
				renderHabit(cmd.OutOrStdout(), updated)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&upd.Place, "place", "", "where the action happens")
	f.StringVar(&upd.Action, "action", "", "what to do")
	f.StringVar(&clock, "time", "", "time of day, HH:MM or HH:MM:SS")
	f.IntVar(&upd.Periodicity, "every", 1, "periodicity in days (1..7)")
	f.IntVar(&upd.Duration, "duration", 60, "seconds needed to perform the action (1..120)")
	f.BoolVar(&upd.IsNice, "nice", false, "mark as a pleasant habit")
	f.StringVar(&upd.Reward, "reward", "", "reward text; empty clears it")
	f.Int64Var(&link, "link", 0, "id of a pleasant habit to do afterwards")
	f.BoolVar(&unlink, "unlink", false, "clear the linked habit")
	f.BoolVar(&upd.IsPublic, "public", false, "share in the public list")
	return cmd
}

func habitShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, st storage.Store, _ *config.Config) error {
				h, err := st.GetHabit(ctx, id)
				if err != nil {
					return fmt.Errorf("habit %d: %w", id, err)
				}
				renderHabit(cmd.OutOrStdout(), h)
				return nil
			})
		},
	}
}

func habitRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a habit; links to it are cleared",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, st storage.Store, _ *config.Config) error {
				if err := st.DeleteHabit(ctx, id); err != nil {
					return fmt.Errorf("habit %d: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "habit %d deleted\n", id)
				return nil
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
