package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"FeedAggregator/internal/app"
	"FeedAggregator/internal/infrastructure/scheduler"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var failOnError bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync every enabled feed once and print the run summary as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := ctx.load()

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			result := application.RunOnce(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encode run summary: %w", err)
			}

			if result.Err != "" {
				return fmt.Errorf("run failed: %s", result.Err)
			}
			if failOnError && result.FailedSources > 0 {
				return fmt.Errorf("%d feed(s) failed", result.FailedSources)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit non-zero when any feed fails")
	return cmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run syncs on the configured cron schedule and expose metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := ctx.load()

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Serve(cmd.Context(), runOnStart)
		},
	}

	cmd.Flags().BoolVar(&runOnStart, "run-on-start", true, "Run one sync immediately instead of waiting for the first tick")
	return cmd
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := ctx.load()
			if err := app.Migrate(cmd.Context(), cfg); err != nil {
				return err
			}
			logger.Info("schema applied")
			return nil
		},
	}
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration without touching any store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := ctx.load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if _, err := scheduler.ParseSpec(cfg.Scheduler.CronExpression); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration ok: %d seeded feed(s), database driver %s\n", len(cfg.Feeds), cfg.Database.Driver)
			return nil
		},
	}
}
