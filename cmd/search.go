package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search KEYWORD",
		Short: "Queries every enabled portal once and prints the matches",
		Long: `Queries every enabled portal for KEYWORD using the configured lookback
windows and exclusion terms, then prints the matching records as JSON lines.
Nothing is sent to the webhooks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveSettings(cmd.Context())
			if err != nil {
				return err
			}
			keyword := strings.TrimSpace(args[0])
			if keyword == "" {
				return fmt.Errorf("keyword must not be empty")
			}

			a, err := newApp(s.cfg, s.keywords, s.logger)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			defer a.Close()

			records, err := a.Search(cmd.Context(), keyword)
			if err != nil {
				// Partial results are still printed.
				s.logger.Warn("some sources failed", zap.Error(err))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			for _, r := range records {
				if err := enc.Encode(r); err != nil {
					return fmt.Errorf("write record: %w", err)
				}
			}
			return nil
		},
	}
}
