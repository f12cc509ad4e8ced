package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"dubbing/internal/pipeline"
)

func renderReport(w io.Writer, report pipeline.Report, colorize bool) {
	rows := make([][]string, 0, len(report.Files))
	for _, f := range report.Files {
		detail := outputSummary(f.Outputs)
		if f.Err != nil {
			detail = f.Err.Error()
		}
		rows = append(rows, []string{
			f.Name,
			statusCell(f.Status, colorize),
			f.Stage,
			formatDuration(f.Duration),
			detail,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"File", "Status", "Failed stage", "Time", "Outputs / error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		colorize,
	))

	failed := len(report.Failures())
	fmt.Fprintf(w, "Run %s: %d of %d files succeeded in %s\n",
		shortID(report.RunID), len(report.Files)-failed, len(report.Files), formatDuration(report.Duration()))
}

// outputSummary names the outputs and their combined size.
func outputSummary(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	var total uint64
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
		if info, err := os.Stat(p); err == nil {
			total += uint64(info.Size())
		}
	}
	return fmt.Sprintf("%s (%s)", strings.Join(names, ", "), humanize.Bytes(total))
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
