package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"habitbot/internal/app"
	"habitbot/internal/config"
	"habitbot/internal/storage"
	"habitbot/pkg/logx"
)

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "habitbot",
	Short: "Habit reminders over Telegram",
	Long: `habitbot keeps a list of recurring habits and reminds their owners on Telegram
when a habit is due. Run it as a service with "habitbot run"; the other
commands manage users and habits in the configured store.`,
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to config (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "console log level for management commands")
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(passCmd())
	rootCmd.AddCommand(habitCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(configCmd())
}

func runCmd() *cobra.Command {
	var stopTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reminder service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigs)

			a, err := app.NewApp(cfgPath)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
				_ = a.Stop(stopCtx, app.StopFatalError)
				stopCancel()
				return err
			}

			var reason app.StopReason
			select {
			case s := <-sigs:
				reason = app.StopSIGTERM
				if s == os.Interrupt {
					reason = app.StopSIGINT
				}
			case <-a.Done():
				reason = app.StopFatalError
			}

			stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
			defer stopCancel()
			runErr := a.Err()
			if err := a.Stop(stopCtx, reason); err != nil {
				return err
			}
			if reason == app.StopFatalError {
				return runErr
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second, "upper bound for graceful shutdown")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := app.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if err := app.CheckConfig(c); err != nil {
				return err
			}
			renderConfigSummary(cmd.OutOrStdout(), c)
			return nil
		},
	})
	return cfg
}

// withStore opens the configured store for a management command.
func withStore(ctx context.Context, fn func(ctx context.Context, st storage.Store, cfg *config.Config) error) error {
	_, cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	st, err := app.OpenStore(cfg, logx.NewConsole(logLevel))
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st, cfg)
}

// withApp builds the full app (store, notifier, reminder runner) without starting it.
func withApp(fn func(a *app.App) error) error {
	a, err := app.NewApp(cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
