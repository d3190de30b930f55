package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openlocal/bizdir-ingest/internal/enrichment"
)

// newEnrichCmd creates the 'enrich' subcommand: one bounded
// submit-and-poll pass over the current enrichment candidates.
func newEnrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Backfill reviews for businesses that have none stored",
		Long: `Selects businesses whose discovery run reported reviews but which
own none, submits asynchronous review-fetch tasks and polls for
results within a fixed attempt budget. Tasks still pending at the
budget are abandoned for this run and re-derived by a later one.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()

			worker := enrichment.New(
				appInstance.Directory(),
				appInstance.Provider(),
				enrichment.Config{
					BatchSize:    cfg.Enrichment.BatchSize,
					ReviewLimit:  cfg.Enrichment.ReviewLimit,
					PollInterval: cfg.PollInterval(),
					MaxAttempts:  cfg.Enrichment.MaxPollAttempts,
				},
				appInstance.Logger(),
			)

			batch, err := worker.RunOnce(cmd.Context())
			if err != nil {
				appInstance.Logger().Error("enrichment run failed", zap.Error(err))
			}
			if batch != nil && batch.Len() > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), batch.Summary())
			}
			return nil
		},
	}

	return cmd
}
