package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/coursewatch/pkg/failure"
	"github.com/entrhq/coursewatch/pkg/watch"
)

// Remediation is printed when a run fails for a reason the operator can fix.
var Remediation = []string{
	"Check the portal and target settings in the config file (list URL, URL pattern, selectors)",
	"Make sure the credentials file exists",
	"Make sure the saved session is still valid; log in interactively to refresh it",
	"Check the network connection",
}

const (
	statusSuccess = "success"
	statusStopped = "stopped"
	statusFailed  = "failed"
)

// RunInfo is the context printed alongside a report.
type RunInfo struct {
	RunID   string
	LogPath string
}

// Summary prints the final run summary. It is shown at every level.
func (c *Console) Summary(r *watch.Report, info RunInfo) {
	c.closeProgress()
	fmt.Fprintln(c.writer)
	c.boldWhite.Fprintln(c.writer, strings.Repeat("=", 70))
	c.boldWhite.Fprintln(c.writer, "  RUN SUMMARY")
	c.boldWhite.Fprintln(c.writer, strings.Repeat("=", 70))

	status := runStatus(r)
	fmt.Fprint(c.writer, "  Status: ")
	switch status {
	case statusSuccess:
		c.boldGreen.Fprintln(c.writer, "✓ SUCCESS")
	case statusStopped:
		c.yellow.Fprintln(c.writer, "■ STOPPED")
	default:
		c.boldRed.Fprintln(c.writer, "✗ FAILED")
	}

	fmt.Fprintf(c.writer, "  Completed: %s\n", r.Summary())
	if skipped := r.Skipped(); skipped > 0 {
		fmt.Fprintf(c.writer, "  Skipped (nothing to wait for): %d\n", skipped)
	}
	if !r.Started.IsZero() && !r.Finished.IsZero() {
		fmt.Fprintf(c.writer, "  Duration: %s\n", r.Finished.Sub(r.Started).Round(time.Second))
	}
	if info.RunID != "" {
		fmt.Fprintf(c.writer, "  Run ID: %s\n", info.RunID)
	}
	if info.LogPath != "" {
		fmt.Fprintf(c.writer, "  Log: %s\n", info.LogPath)
	}

	c.printStop(r)
	c.boldWhite.Fprintln(c.writer, strings.Repeat("=", 70))
	fmt.Fprintln(c.writer)
}

func runStatus(r *watch.Report) string {
	switch r.Stop {
	case failure.KindNone:
		return statusSuccess
	case failure.KindSurfaceClosed, failure.KindInterrupted:
		return statusStopped
	default:
		return statusFailed
	}
}

func (c *Console) printStop(r *watch.Report) {
	var at string
	if r.Failed != nil {
		at = fmt.Sprintf(" at target %d (%s)", r.Failed.Index, r.Failed.URL)
	}

	switch r.Stop {
	case failure.KindNone:
	case failure.KindSurfaceClosed:
		fmt.Fprintf(c.writer, "\n  The browser was closed%s; the run stopped.\n", at)
	case failure.KindInterrupted:
		fmt.Fprintf(c.writer, "\n  Interrupted%s.\n", at)
	case failure.KindSessionInvalid:
		fmt.Fprintln(c.writer)
		c.boldRed.Fprintf(c.writer, "  The site no longer accepts the session%s.\n", at)
		fmt.Fprintln(c.writer, "  Log in again (interactive mode) to save a fresh session, then rerun.")
	default:
		fmt.Fprintln(c.writer)
		c.boldRed.Fprintln(c.writer, "  Error Details:")
		if step := failure.FailedStep(r.Err); step != "" {
			c.red.Fprintf(c.writer, "    step: %s%s\n", step, at)
		}
		if r.Err != nil {
			c.red.Fprintf(c.writer, "    %v\n", r.Err)
		}
		c.PrintRemediation()
	}
}

// PrintRemediation prints the troubleshooting checklist.
func (c *Console) PrintRemediation() {
	fmt.Fprintln(c.writer)
	c.yellow.Fprintln(c.writer, "  Troubleshooting:")
	for i, hint := range Remediation {
		fmt.Fprintf(c.writer, "    %d. %s\n", i+1, hint)
	}
}
