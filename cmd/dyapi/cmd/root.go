package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/waploaj/DyAPI/internal/config"
	"github.com/waploaj/DyAPI/internal/logger"
	"github.com/waploaj/DyAPI/internal/util"
)

var (
	cfg      config.Config
	log      *slog.Logger
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "dyapi",
	Short: "Configuration-driven API gateway",
	Long: `dyapi resolves versioned request paths to handlers configured in a
relational store, validates parameters against stored rules and dispatches
the request to a gRPC or HTTP upstream.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		log = newLogger(cfg)
		slog.SetDefault(log)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides LOG_LEVEL (debug, info, warn, error)")
}

func newLogger(c config.Config) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(c.AppEnv, c.Service),
		logger.WithLevel(logger.ParseLevel(c.LogLevel)),
		logger.WithContextExtractors(util.RequestIDAttr),
	}
	if c.LogFormat != "" {
		opts = append(opts, logger.WithFormat(logger.Format(c.LogFormat)))
	}
	return logger.New(opts...)
}
