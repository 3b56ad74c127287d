package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cgast/veriq/internal/history"
	"github.com/cgast/veriq/pkg/verify"
)

// printReport writes the requirement tree with outcomes, root first.
func printReport(w io.Writer, r *verify.Report) {
	s := r.Summary()
	verdict := "VERIFIED"
	if !r.Verified() {
		verdict = "NOT VERIFIED"
	}
	title := r.Model
	if r.Source != "" {
		title += " (" + r.Source + ")"
	}
	fmt.Fprintf(w, "%s: %s  %d passed, %d failed, %d errored\n", title, verdict, s.Passed, s.Failed, s.Errored)

	for _, c := range r.Calculations {
		if c.Error != "" {
			fmt.Fprintf(w, "  calc %s: error: %s\n", c.Name, c.Error)
		} else {
			fmt.Fprintf(w, "  calc %s = %v\n", c.Name, c.Value)
		}
	}

	_ = r.Walk(func(n *verify.NodeReport, depth int) error {
		line := fmt.Sprintf("%s[%s] %s", strings.Repeat("  ", depth+1), n.Status, n.ID)
		if n.Message != "" {
			line += ": " + n.Message
		}
		fmt.Fprintln(w, line)
		return nil
	})
}

// printRuns writes a run listing, oldest first.
func printRuns(w io.Writer, runs []history.Info) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECORDED\tMODEL\tSOURCE\tRESULT\tPASSED\tFAILED\tERRORED")
	for _, r := range runs {
		result := "verified"
		if !r.Verified {
			result = "not verified"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.RecordedAt.Local().Format("2006-01-02 15:04:05"), r.Model, r.Source, result,
			r.Summary.Passed, r.Summary.Failed, r.Summary.Errored)
	}
	tw.Flush()
}
