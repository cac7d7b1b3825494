package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/bidwatch/internal/scheduler"
)

func newWatchCmd() *cobra.Command {
	var (
		mode     string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Runs the polling scheduler",
		Long: `Runs polling cycles over every keyword and enabled portal. With --mode once
a single cycle runs; duration repeats cycles until --duration has elapsed;
forever runs until interrupted. Startup and shutdown are announced on the ops
webhook.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveSettings(cmd.Context())
			if err != nil {
				return err
			}
			cfg := s.cfg
			if cmd.Flags().Changed("mode") {
				cfg.Scheduler.Mode = mode
			}
			if cmd.Flags().Changed("duration") {
				cfg.Scheduler.Duration = duration
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := newApp(cfg, s.keywords, s.logger)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = a.Run(ctx)
			var failure *scheduler.Failure
			if errors.As(err, &failure) {
				fmt.Fprintln(cmd.OutOrStdout(), string(failure.JSON()))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "run mode: once, duration or forever")
	cmd.Flags().DurationVar(&duration, "duration", 0, "run length in duration mode")
	return cmd
}
