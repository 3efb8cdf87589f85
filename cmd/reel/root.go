package main

import (
	"github.com/hbomb79/Reel/internal"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag   string
	logLevelFlag string
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "reel",
		Short:         "Reel media catalogue server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", internal.DefaultConfigPath, "Configuration file path (empty to read only from the environment)")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevelFlag, "log-level", "", "Overrides the configured log level (verbose, debug, info, warning, error)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))

	return rootCmd
}

// loadConfig reads the configuration and applies the logging level
// from either the flag or the configuration.
func (ctx *commandContext) loadConfig() (*internal.ReelConfig, error) {
	config, err := internal.LoadConfig(ctx.configFlag)
	if err != nil {
		return nil, err
	}

	levelName := config.LogLevel
	if ctx.logLevelFlag != "" {
		levelName = ctx.logLevelFlag
	}

	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logger.SetMinLoggingLevel(level)

	return config, nil
}
