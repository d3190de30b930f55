// Package cmd defines and implements the CLI commands for the bizdir
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openlocal/bizdir-ingest/internal/app"
	"github.com/openlocal/bizdir-ingest/internal/config"
	"github.com/openlocal/bizdir-ingest/internal/directory"
	"github.com/openlocal/bizdir-ingest/internal/provider"
	"github.com/openlocal/bizdir-ingest/internal/queue"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface that commands use. This allows
// injecting a mock app during tests.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Queue() queue.Store
	Directory() directory.Store
	Provider() *provider.Client
}

// newApp is the application factory. It's a variable so tests can
// replace it with a mock factory.
var newApp = func(ctx context.Context) (App, error) {
	return app.New(ctx, cfgFile)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bizdir",
		Short: "Business directory discovery and enrichment pipeline.",
		Long: `bizdir populates a business directory from an external listing
search API and backfills reviews through the provider's asynchronous
task API. Each subcommand is a single-shot batch run driven by an
external scheduler; coordination happens entirely through the
Postgres work queue.`,

		SilenceUsage: true,

		// Build and inject the application after config is resolved
		// but before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml if present)")

	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newEnrichCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newQueueCmd())
	cmd.AddCommand(newListingCmd())

	return cmd
}

// resolveApp fetches the injected App from the command context.
func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. The only non-zero exits are setup
// failures surfaced before any work was claimed; worker-level errors
// are recorded as queue state and logged instead.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
