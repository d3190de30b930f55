package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openlocal/bizdir-ingest/internal/discovery"
	"github.com/openlocal/bizdir-ingest/internal/report"
)

// newDiscoverCmd creates the 'discover' subcommand. One invocation
// claims and processes a single work item; --all drains the queue
// with bounded concurrency.
func newDiscoverCmd() *cobra.Command {
	var all bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Claim queued (locality, category) work and discover listings",
		Long: `Claims one pending work item, searches the provider for matching
listings and upserts them into the directory. An empty queue is a
clean no-op. With --all the queue is drained, running searches
concurrently up to the admission ceiling.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()

			worker := discovery.New(
				appInstance.Queue(),
				appInstance.Directory(),
				appInstance.Provider(),
				discovery.Config{
					MinRating:  cfg.Discovery.MinRating,
					MaxResults: cfg.Discovery.MaxResults,
				},
				appInstance.Logger(),
			)

			if concurrency <= 0 {
				concurrency = cfg.Discovery.Concurrency
			}

			var batch *report.Batch
			var runErr error
			if all {
				batch, runErr = worker.RunAll(cmd.Context(), concurrency)
			} else {
				batch, runErr = worker.RunOnce(cmd.Context())
			}
			if runErr != nil {
				// Not a setup failure: log it and exit clean so the
				// scheduler keeps its cadence; the queue holds state.
				appInstance.Logger().Error("discovery run failed", zap.Error(runErr))
			}
			if batch != nil && batch.Len() > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), batch.Summary())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "drain the queue instead of claiming one item")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max simultaneous search requests (defaults to config)")

	return cmd
}
