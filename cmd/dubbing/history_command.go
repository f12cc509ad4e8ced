package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dubbing/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or the files of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg.Paths.StateDir)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				return showRun(cmd, out, store, strings.TrimSpace(args[0]))
			}
			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintf(out, "No runs recorded in %s\n", store.Path())
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					humanize.Time(run.StartedAt),
					formatDuration(run.Duration()),
					strconv.Itoa(run.FileCount),
					strconv.Itoa(run.FailedCount),
					statusCell(run.Status, colorize),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Time", "Files", "Failed", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				colorize,
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to list")
	return cmd
}

// showRun prints the files of run id, which may be a prefix of a recent
// run's ID.
func showRun(cmd *cobra.Command, out io.Writer, store *ledger.Store, id string) error {
	if id == "" {
		return fmt.Errorf("run id required")
	}
	run, err := store.GetRun(cmd.Context(), id)
	if errors.Is(err, ledger.ErrRunNotFound) {
		run, err = findRunByPrefix(cmd, store, id)
	}
	if err != nil {
		return err
	}
	files, err := store.FileResults(cmd.Context(), run.ID)
	if err != nil {
		return err
	}

	colorize := shouldColorize(out)
	fmt.Fprintf(out, "Run %s started %s (%s)\n", run.ID, humanize.Time(run.StartedAt), run.Status)
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		detail := f.Error
		if detail == "" {
			detail = strings.Join(f.Outputs, ", ")
		}
		rows = append(rows, []string{f.Name, statusCell(f.Status, colorize), f.Stage, formatDuration(f.Duration), detail})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"File", "Status", "Failed stage", "Time", "Outputs / error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		colorize,
	))
	return nil
}

const prefixSearchRuns = 200

func findRunByPrefix(cmd *cobra.Command, store *ledger.Store, prefix string) (ledger.Run, error) {
	runs, err := store.RecentRuns(cmd.Context(), prefixSearchRuns)
	if err != nil {
		return ledger.Run{}, err
	}
	var matches []ledger.Run
	for _, run := range runs {
		if strings.HasPrefix(run.ID, prefix) {
			matches = append(matches, run)
		}
	}
	switch len(matches) {
	case 0:
		return ledger.Run{}, fmt.Errorf("no run matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return ledger.Run{}, fmt.Errorf("run id %q is ambiguous", prefix)
	}
}
