package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show configured providers, availability and per-request cost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(context.Background())
			if err != nil {
				return err
			}
			defer app.Close()

			descriptors := app.Orchestrator.Registry().Descriptors()
			if len(descriptors) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no providers configured")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tKIND\tPRIORITY\tAVAILABLE\tCOST/REQ\tLANGUAGES")
			for _, d := range descriptors {
				languages := ""
				if p, ok := app.Orchestrator.Registry().Provider(d.Name); ok {
					languages = strings.Join(p.SupportedLanguages(), ",")
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%v\t$%.4f\t%s\n",
					d.Name, d.Kind, d.Priority, d.Available, d.CostPerRequest, languages)
			}
			return w.Flush()
		},
	}
}
