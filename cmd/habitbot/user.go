package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"habitbot/internal/config"
	"habitbot/internal/storage"
)

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "Manage users"}
	u.AddCommand(userAddCmd())
	u.AddCommand(userLinkCmd())
	u.AddCommand(userListCmd())
	return u
}

func userAddCmd() *cobra.Command {
	var (
		name string
		tgID int64
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var tg *int64
			if cmd.Flags().Changed("telegram-id") {
				tg = &tgID
			}
			return withStore(cmd.Context(), func(ctx context.Context, st storage.Store, _ *config.Config) error {
				u, err := st.CreateUser(ctx, name, tg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %d created\n", u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().Int64Var(&tgID, "telegram-id", 0, "Telegram chat id (see /start)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func userLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <user-id> <telegram-id|none>",
		Short: "Set or clear a user's Telegram chat id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var tg *int64
			if !strings.EqualFold(args[1], "none") {
				v, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil || v == 0 {
					return fmt.Errorf("invalid telegram id %q", args[1])
				}
				tg = &v
			}
			return withStore(cmd.Context(), func(ctx context.Context, st storage.Store, _ *config.Config) error {
				if err := st.LinkTelegram(ctx, id, tg); err != nil {
					return fmt.Errorf("user %d: %w", id, err)
				}
				if tg == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "user %d unlinked\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "user %d linked to %d\n", id, *tg)
				}
				return nil
			})
		},
	}
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st storage.Store, _ *config.Config) error {
				us, err := st.ListUsers(ctx)
				if err != nil {
					return err
				}
				renderUsers(cmd.OutOrStdout(), us)
				return nil
			})
		},
	}
}
