package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"habitbot/internal/app"
)

func passCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "pass",
		Short: "Run one reminder pass now and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			var when time.Time
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				when = t
			}
			return withApp(func(a *app.App) error {
				r := a.Runner()
				if when.IsZero() {
					when = time.Now()
				}
				rep := r.RunAt(cmd.Context(), when)
				renderReport(cmd.OutOrStdout(), rep)
				return rep.Err
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate as if the clock read this RFC3339 time")
	return cmd
}
