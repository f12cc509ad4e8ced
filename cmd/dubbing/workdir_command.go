package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dubbing/internal/logging"
	"dubbing/internal/workdir"
)

func newWorkdirCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workdir",
		Short: "Inspect and prune intermediate work directories",
	}
	cmd.AddCommand(newWorkdirListCommand(ctx))
	cmd.AddCommand(newWorkdirCleanCommand(ctx))
	return cmd
}

func newWorkdirListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List per-file work directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := workdir.List(cfg.Paths.WorkDir)
			if err != nil {
				return fmt.Errorf("list work directories: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No work directories found")
				return nil
			}

			var total int64
			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				total += dir.Size
				rows = append(rows, []string{dir.Name, humanize.Time(dir.ModTime), humanize.Bytes(uint64(dir.Size))})
			}
			fmt.Fprintf(out, "Work directory: %s\n\n", cfg.Paths.WorkDir)
			fmt.Fprintln(out, renderTable(
				[]string{"Directory", "Last written", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
				shouldColorize(out),
			))
			fmt.Fprintf(out, "\nTotal: %d directories, %s\n", len(dirs), humanize.Bytes(uint64(total)))
			return nil
		},
	}
}

func newWorkdirCleanCommand(ctx *commandContext) *cobra.Command {
	var (
		all     bool
		olderBy int
	)
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale work directories",
		Long: `Remove work directories left behind by failed or interrupted files.

By default only directories untouched for workflow.work_retention_days are
removed. Use --all to also discard cached speech from recent runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			days := cfg.Workflow.WorkRetentionDays
			if cmd.Flags().Changed("older-than") {
				days = olderBy
			}
			if !all && days <= 0 {
				return fmt.Errorf("no retention configured; pass --older-than or --all")
			}
			maxAge := time.Duration(days) * 24 * time.Hour
			if all {
				maxAge = 0
			}

			unlock, err := workdir.Lock(cfg.Paths.WorkDir)
			if err != nil {
				return err
			}
			defer unlock()

			result := workdir.Prune(cmd.Context(), cfg.Paths.WorkDir, maxAge, logging.NewNop())
			out := cmd.OutOrStdout()
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Err)
			}
			if len(result.Removed) == 0 && len(result.Errors) == 0 {
				fmt.Fprintln(out, "No work directories to clean")
				return nil
			}
			fmt.Fprintf(out, "Removed %d work directories (%s)\n", len(result.Removed), humanize.Bytes(uint64(result.Reclaimed())))
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d directories could not be removed", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove every work directory regardless of age")
	cmd.Flags().IntVar(&olderBy, "older-than", 0, "Remove directories untouched for this many days")
	return cmd
}
