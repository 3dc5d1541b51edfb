package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/docstream/ocrkit/internal/bootstrap"
	"github.com/docstream/ocrkit/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "ocrctl",
		Short: "OCR processing with provider fallback, cost tracking and a credential vault",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is the normal case outside development.
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default $OCRKIT_CONFIG_DIR/config.yaml)")

	root.AddCommand(
		newProcessCmd(),
		newCredsCmd(),
		newReportCmd(),
		newBudgetCmd(),
		newProvidersCmd(),
		newCleanupCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	return config.Load(configPath)
}

// newApp builds the fully wired application for commands that need providers
// or the ledger. Commands that only touch the vault open it directly so a
// broken ledger cannot block credential management.
func newApp(ctx context.Context) (*bootstrap.App, error) {
	app, err := bootstrap.New(ctx, loadConfig())
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return app, nil
}
