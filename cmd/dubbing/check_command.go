package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dubbing/internal/ledger"
	"dubbing/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var skipLLM bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, external tools and the translation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{CheckLLM: !skipLLM})

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := ledger.StatusSucceeded
				label := "ok"
				if !r.Passed {
					status = ledger.StatusFailed
					label = "missing"
				}
				cell := label
				if colorize {
					cell = statusColors(status).Sprint(label)
				}
				rows = append(rows, []string{r.Name, cell, r.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil, colorize))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "Do not contact the translation API")
	return cmd
}
