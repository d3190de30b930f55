package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openlocal/bizdir-ingest/internal/directory"
)

// newListingCmd groups operator actions on directory listings.
func newListingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listing",
		Short: "Operator actions on directory listings",
	}
	cmd.AddCommand(newListingUpdateCmd())
	return cmd
}

// newListingUpdateCmd is the explicit field-level correction path for
// identity fields. Discovery never overwrites these on conflict; this
// command is how a deliberate correction lands.
func newListingUpdateCmd() *cobra.Command {
	var name, category string
	var verified bool

	cmd := &cobra.Command{
		Use:   "update <source-id>",
		Short: "Correct identity fields of one listing",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			update := directory.ListingUpdate{}
			if cmd.Flags().Changed("name") {
				update.Name = &name
			}
			if cmd.Flags().Changed("category") {
				update.Category = &category
			}
			if cmd.Flags().Changed("verified") {
				update.Verified = &verified
			}
			if update.Name == nil && update.Category == nil && update.Verified == nil {
				return fmt.Errorf("nothing to update: pass --name, --category or --verified")
			}

			if err := appInstance.Directory().UpdateListing(cmd.Context(), args[0], update); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated listing %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "corrected business name")
	cmd.Flags().StringVar(&category, "category", "", "corrected category")
	cmd.Flags().BoolVar(&verified, "verified", false, "verification flag")

	return cmd
}
