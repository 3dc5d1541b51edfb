package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/docstream/ocrkit/internal/infrastructure/ledger/advisor"
)

func newBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage monthly per-provider budgets",
	}
	cmd.AddCommand(newBudgetSetCmd(), newBudgetAlertsCmd())
	return cmd
}

func newBudgetSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider> <monthly-limit>",
		Short: "Set the monthly budget ceiling for a provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("parse limit %q: %w", args[1], err)
			}

			app, err := newApp(context.Background())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Ledger.SetBudget(context.Background(), args[0], limit); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "budget for %s set to $%.2f/month\n", args[0], limit)
			return nil
		},
	}
}

func newBudgetAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "Show budgets that are close to or past their monthly ceiling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			costs, err := app.Ledger.CostByProvider(ctx, 30)
			if err != nil {
				return err
			}
			budgets, err := app.Ledger.Budgets(ctx)
			if err != nil {
				return err
			}

			alerts := advisor.BudgetAlerts(costs, budgets)
			if len(alerts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "all providers within budget")
				return nil
			}
			sort.Slice(alerts, func(i, j int) bool { return alerts[i].Provider < alerts[j].Provider })

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tLEVEL\tSPENT\tBUDGET\tUSAGE")
			for _, a := range alerts {
				fmt.Fprintf(w, "%s\t%s\t$%.2f\t$%.2f\t%.1f%%\n",
					a.Provider, a.Level, a.CurrentCost, a.Budget, a.UsagePercent)
			}
			return w.Flush()
		},
	}
}
