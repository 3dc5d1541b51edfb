package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docstream/ocrkit/internal/bootstrap"
	"github.com/docstream/ocrkit/internal/infrastructure/ledger/advisor"
	"github.com/docstream/ocrkit/internal/infrastructure/ledger/report"
)

func newReportCmd() *cobra.Command {
	var (
		days       int
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a usage and cost report with optimization recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.Ledger.UsageStats(ctx, days)
			if err != nil {
				return fmt.Errorf("load usage stats: %w", err)
			}
			costs, err := app.Ledger.CostByProvider(ctx, days)
			if err != nil {
				return fmt.Errorf("load provider costs: %w", err)
			}
			budgets, err := app.Ledger.Budgets(ctx)
			if err != nil {
				return fmt.Errorf("load budgets: %w", err)
			}

			recs := advisor.Recommendations(stats, bootstrap.FreeTiers())
			alerts := advisor.BudgetAlerts(costs, budgets)
			rep := report.Build(stats, recs, alerts, time.Now().UTC())

			if outputPath != "" {
				if err := report.Write(outputPath, rep); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", outputPath)
				return nil
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "reporting window in days")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write to file (.xlsx for a spreadsheet, anything else for JSON)")
	return cmd
}
