package main

import (
	"fmt"
	"io"

	"mcs-go/internal/app"
	"mcs-go/internal/mcs"
)

// maxErrorLines caps the per-record error lines printed after a migration.
const maxErrorLines = 10

// renderReport prints the non-zero counters of report followed by its errors.
func renderReport(w io.Writer, report *mcs.Report) {
	fmt.Fprintf(w, "Examined %d record(s)\n", report.Total)

	counters := []struct {
		label string
		n     int
	}{
		{"migrated", report.Migrated},
		{"skipped, not a local URL", report.SkippedNotLocalURL},
		{"skipped, no URL or already in cloud", report.SkippedNoURLOrCloud},
		{"skipped, file not found", report.SkippedFileNotFound},
		{"skipped, other", report.SkippedOther},
		{"failed", len(report.Errors)},
	}
	for _, c := range counters {
		if c.n > 0 {
			fmt.Fprintf(w, "  %-36s %d\n", c.label, c.n)
		}
	}

	if len(report.Errors) == 0 {
		return
	}
	fmt.Fprintln(w, "\nErrors:")
	for i, e := range report.Errors {
		if i == maxErrorLines {
			fmt.Fprintf(w, "  ... and %d more\n", len(report.Errors)-maxErrorLines)
			break
		}
		fmt.Fprintf(w, "  %s: %s\n", e.File, e.Error)
	}
}

// renderUpload prints the outcome of a single-record upload.
func renderUpload(w io.Writer, res *app.UploadResult) {
	if res.Uploaded {
		fmt.Fprintf(w, "Uploaded %s\n  %s\n", res.ID, res.URL)
		return
	}
	fmt.Fprintf(w, "Left %s in place (%s)\n", res.ID, res.Reason)
}
