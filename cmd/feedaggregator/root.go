package main

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"FeedAggregator/internal/config"
	"FeedAggregator/internal/logging"
)

type commandContext struct {
	configFlag *string
	levelFlag  *string

	once   sync.Once
	config config.Config
	logger *slog.Logger
}

func (c *commandContext) load() (config.Config, *slog.Logger) {
	c.once.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			c.config = config.Load()
		} else {
			c.config = config.LoadFile(path)
		}
		if level := strings.TrimSpace(*c.levelFlag); level != "" {
			c.config.Logging.Level = level
		}
		c.logger = logging.NewWriter(os.Stderr, c.config.Logging.Level, c.config.Logging.Format)
	})
	return c.config, c.logger
}

func newRootCommand() *cobra.Command {
	var configFlag, levelFlag string
	ctx := &commandContext{configFlag: &configFlag, levelFlag: &levelFlag}

	rootCmd := &cobra.Command{
		Use:           "feedaggregator",
		Short:         "Ingest release feeds and associate updates with known tools and models",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (defaults to $FEED_AGGREGATOR_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&levelFlag, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newValidateCommand(ctx))

	return rootCmd
}
