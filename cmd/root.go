// Package cmd defines and implements the CLI commands for the bidwatch executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatch/internal/app"
	"github.com/JakeFAU/bidwatch/internal/bid"
	"github.com/JakeFAU/bidwatch/internal/config"
	"github.com/JakeFAU/bidwatch/internal/logging"
)

// App is what the subcommands need from the application. Tests swap in a mock.
type App interface {
	Run(ctx context.Context) error
	Search(ctx context.Context, keyword string) ([]bid.Record, error)
	Close()
}

// newApp is the application factory, replaceable in tests.
var newApp = func(cfg config.Config, keywords bid.KeywordSet, logger *zap.Logger) (App, error) {
	return app.New(cfg, keywords, logger)
}

// settings is what the root command loads before any subcommand runs.
type settings struct {
	cfg      config.Config
	keywords bid.KeywordSet
	logger   *zap.Logger
}

type settingsKey struct{}

type rootFlags struct {
	configFile   string
	keywordsFile string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "bidwatch",
		Short: "Polls procurement portals for keyword matches and posts them to WeCom.",
		Long: `bidwatch queries procurement-announcement portals for a configured keyword
set, drops stale, excluded and already-seen announcements, and posts the rest
to a WeCom group robot, one message per keyword.`,
		SilenceUsage: true,

		// Runs after flag parsing and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(flags)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), settingsKey{}, s))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if s, ok := cmd.Context().Value(settingsKey{}).(*settings); ok {
				_ = s.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&flags.keywordsFile, "keywords", "", "keyword file, overrides the configured path")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level, overrides logging.level")

	cmd.AddCommand(newWatchCmd(), newSearchCmd())
	return cmd
}

func loadSettings(flags *rootFlags) (*settings, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.keywordsFile != "" {
		cfg.Keywords = flags.keywordsFile
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}

	logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, err
	}
	keywords, err := config.LoadKeywords(cfg.Keywords)
	if err != nil {
		return nil, err
	}
	return &settings{cfg: cfg, keywords: keywords, logger: logger}, nil
}

func resolveSettings(ctx context.Context) (*settings, error) {
	s, ok := ctx.Value(settingsKey{}).(*settings)
	if !ok || s == nil {
		return nil, errors.New("settings not initialized")
	}
	return s, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
