package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docstream/ocrkit/internal/core/domain"
)

func newProcessCmd() *cobra.Command {
	var (
		language       string
		accuracy       string
		speed          string
		costPreference string
		offlineOnly    bool
		cloudPreferred bool
		outputPath     string
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Extract text from an image or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			req := domain.Requirements{
				Accuracy:       domain.Accuracy(accuracy),
				Speed:          domain.Speed(speed),
				CostPreference: domain.CostPreference(costPreference),
				OfflineOnly:    offlineOnly,
				CloudPreferred: cloudPreferred,
			}
			result := app.Orchestrator.Process(ctx, args[0], language, req)

			if outputPath != "" {
				if err := app.Validator.ValidateOutputPath(outputPath); err != nil {
					return err
				}
				if err := os.WriteFile(outputPath, []byte(result.Text), 0o600); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return printResult(cmd, result)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "en", "document language code")
	cmd.Flags().StringVar(&accuracy, "accuracy", "", "required accuracy: low, medium or high")
	cmd.Flags().StringVar(&speed, "speed", "", "required speed: slow, medium or fast")
	cmd.Flags().StringVar(&costPreference, "cost", "", "cost preference: minimize, balanced or premium")
	cmd.Flags().BoolVar(&offlineOnly, "offline", false, "never send the document to a cloud provider")
	cmd.Flags().BoolVar(&cloudPreferred, "cloud", false, "prefer cloud providers over local OCR")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write extracted text to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func printResult(cmd *cobra.Command, result domain.Result) error {
	out := cmd.OutOrStdout()
	if !result.Success {
		fmt.Fprintf(cmd.ErrOrStderr(), "extraction failed: %s\n", result.ErrorMessage)
		for _, s := range result.Suggestions {
			fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", s)
		}
		return fmt.Errorf("no provider produced an acceptable result")
	}

	fmt.Fprintf(out, "provider:    %s\n", result.Provider)
	fmt.Fprintf(out, "confidence:  %.1f%%\n", result.Confidence)
	fmt.Fprintf(out, "duration:    %.2fs\n", result.DurationSeconds)
	if result.UsedFallback {
		fmt.Fprintf(out, "fallback:    yes (attempt %d)\n", result.FallbackAttempt)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, result.Text)
	return nil
}
