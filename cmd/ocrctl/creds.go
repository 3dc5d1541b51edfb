package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/docstream/ocrkit/internal/infrastructure/vault"
	"github.com/docstream/ocrkit/internal/observability/logging"
)

func newVault() (*vault.Vault, error) {
	cfg := loadConfig()
	return vault.New(vault.Options{
		Dir:          cfg.ConfigDir,
		MasterSecret: cfg.MasterKey,
		Logger:       logging.NewJSONLogger("ocrctl", cfg.LogLevel),
	})
}

func newCredsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Manage provider credentials in the encrypted vault",
	}
	cmd.AddCommand(
		newCredsStoreCmd(),
		newCredsListCmd(),
		newCredsDeleteCmd(),
		newCredsRotateCmd(),
		newCredsValidateCmd(),
		newCredsAuditCmd(),
	)
	return cmd
}

// parseSecrets turns key=value arguments into a credentials map. Values may
// contain '='; only the first one splits.
func parseSecrets(args []string) (map[string]string, error) {
	secrets := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		secrets[key] = value
	}
	return secrets, nil
}

func newCredsStoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "store <provider> <key=value>...",
		Short: "Store credentials for a provider",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newVault()
			if err != nil {
				return err
			}
			secrets, err := parseSecrets(args[1:])
			if err != nil {
				return err
			}
			if err := v.Store(args[0], secrets); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d credential(s) for %s\n", len(secrets), args[0])
			return nil
		},
	}
}

func newCredsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List services with stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newVault()
			if err != nil {
				return err
			}
			services, err := v.ListServices()
			if err != nil {
				return err
			}
			if len(services) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no stored credentials")
				return nil
			}
			for _, s := range services {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func newCredsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider>",
		Short: "Delete stored credentials for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newVault()
			if err != nil {
				return err
			}
			if err := v.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted credentials for %s\n", args[0])
			return nil
		},
	}
}

func newCredsRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate <provider> <key=value>...",
		Short: "Replace credentials, keeping a backup of the previous version",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newVault()
			if err != nil {
				return err
			}
			secrets, err := parseSecrets(args[1:])
			if err != nil {
				return err
			}
			if err := v.Rotate(args[0], secrets); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rotated credentials for %s\n", args[0])
			return nil
		},
	}
}

func newCredsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <provider>",
		Short: "Check that stored credentials have the shape the provider needs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newVault()
			if err != nil {
				return err
			}
			if !v.Validate(args[0]) {
				return fmt.Errorf("credentials for %s are missing or incomplete", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "credentials for %s look valid\n", args[0])
			return nil
		},
	}
}

func newCredsAuditCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent credential access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newVault()
			if err != nil {
				return err
			}
			entries, err := v.AuditLog(days)
			if err != nil {
				return err
			}
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Timestamp.Before(entries[j].Timestamp)
			})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tSERVICE\tOK\tDETAIL")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.Service, e.Success, e.Detail)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "how far back to look")
	return cmd
}
