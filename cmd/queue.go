package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newQueueCmd groups the operator actions on the work queue.
func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Operator actions on the discovery work queue",
	}
	cmd.AddCommand(newQueueSeedCmd())
	cmd.AddCommand(newQueueRetryCmd())
	return cmd
}

// newQueueSeedCmd enqueues the cross product of the given localities
// and categories. Enqueue is idempotent, so re-seeding is safe.
func newQueueSeedCmd() *cobra.Command {
	var localities, categories []string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Enqueue (locality, category) discovery work items",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if len(localities) == 0 || len(categories) == 0 {
				return fmt.Errorf("at least one --locality and one --category are required")
			}

			seeded := 0
			for _, loc := range localities {
				for _, cat := range categories {
					if err := appInstance.Queue().Enqueue(cmd.Context(), loc, cat); err != nil {
						return fmt.Errorf("enqueue %s/%s: %w", loc, cat, err)
					}
					seeded++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d work item(s)\n", seeded)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&localities, "locality", nil, "locality to seed (repeatable)")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "category to seed (repeatable)")

	return cmd
}

// newQueueRetryCmd returns failed items to pending. This is the only
// path back from failed; workers never retry on their own.
func newQueueRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Return all failed work items to pending",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			n, err := appInstance.Queue().Retry(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "returned %d failed item(s) to pending\n", n)
			return nil
		},
	}
}
