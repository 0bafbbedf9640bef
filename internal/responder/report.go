package responder

import (
	"fmt"
	"io"

	"github.com/nhle/autoreply/internal/theme"
)

// report writes the human-readable progress of a run.
type report struct {
	w io.Writer
}

func (r report) line(s string) {
	fmt.Fprintln(r.w, s)
}

func (r report) noMail() {
	r.line("No new emails.")
}

func (r report) banner(count int, dryRun bool) {
	action := "Sending auto-replies..."
	if dryRun {
		action = "Dry run, no replies will be sent..."
	}
	r.line(theme.HeaderStyle.Render(
		fmt.Sprintf("You have %d unread email(s). %s", count, action),
	))
	r.line("")
}

func (r report) debugResult(result fmt.Stringer) {
	r.line(theme.DebugStyle.Render("DEBUG result: " + result.String()))
}

func (r report) agentFailed(err error) {
	r.line(theme.WarningStyle.Render(fmt.Sprintf("Agent failed: %v", err)))
}

func (r report) summary(s string) {
	r.line(theme.LabelStyle.Render("Summary:") + " " + s)
}

func (r report) summaryFailed(err error) {
	r.line(theme.WarningStyle.Render(fmt.Sprintf("Failed to extract summary: %v", err)))
}

func (r report) message(index int, from string) {
	r.line(theme.HeaderStyle.Render(fmt.Sprintf("Email #%d", index)))
	r.line(theme.LabelStyle.Render("From:") + " " + from)
}

func (r report) skipped(from string) {
	r.line(theme.DebugStyle.Render("Already replied to " + from + ", skipping"))
}

func (r report) replyFailed(err error) {
	r.line(theme.ErrorStyle.Render(fmt.Sprintf("Reply failed: %v", err)))
}

func (r report) done(res *Result, dryRun bool) {
	switch {
	case dryRun:
		r.line(theme.SuccessStyle.Render("Dry run complete, nothing sent."))
	case res.Failed > 0:
		r.line(theme.ErrorStyle.Render(fmt.Sprintf(
			"%d auto-replies sent, %d failed.", res.Replied, res.Failed,
		)))
	default:
		r.line(theme.SuccessStyle.Render("All auto-replies sent..."))
	}
}
