package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove usage records and credential backups older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			removed, err := app.Ledger.CleanupOlderThan(ctx, days)
			if err != nil {
				return fmt.Errorf("cleanup usage records: %w", err)
			}
			backups, err := app.Vault.CleanupBackups(days)
			if err != nil {
				return fmt.Errorf("cleanup credential backups: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d usage record(s) and %d credential backup(s) older than %d days\n",
				removed, backups, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 365, "retention window in days")
	return cmd
}
