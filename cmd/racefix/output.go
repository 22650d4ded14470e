package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/metalagman/racefix/internal/model"
	"github.com/metalagman/racefix/internal/run"
)

const previewLimit = 500

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// console prints run progress for humans.
type console struct {
	mu          sync.Mutex
	out         io.Writer
	maxAttempts int
	agents      int
	renderer    *glamour.TermRenderer
}

func newConsole(out io.Writer, agents, maxAttempts int) *console {
	c := &console{out: out, agents: agents, maxAttempts: maxAttempts}
	if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100)); err == nil {
		c.renderer = r
	}
	return c
}

func (c *console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// Notify implements run.Observer.
func (c *console) Notify(_ context.Context, ev run.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case run.EventRunStarted:
		c.printf("%s\n", titleStyle.Render(fmt.Sprintf("Found %d failing test(s)", ev.Total)))
	case run.EventTestStarted:
		c.printf("\n%s %s\n", titleStyle.Render("▶"), ev.Test.Identifier)
		c.printf("  %s\n", dimStyle.Render(ev.Test.SourceFile))
	case run.EventAttemptStarted:
		c.printf("  attempt %d/%d: generating %d candidate(s)\n", ev.Attempt+1, c.maxAttempts, c.agents)
	case run.EventCandidatesGenerated:
		if len(ev.Candidates) == 0 {
			c.printf("  %s\n", warnStyle.Render("no usable candidates"))
		}
	case run.EventCandidateVerdict:
		c.printf("  %s\n", verdictLine(ev))
	case run.EventRevertFailed:
		c.printf("  %s\n", failStyle.Render("revert failed: "+ev.Path))
	case run.EventDryRun:
		c.printf("%s", c.preview(ev.Candidates))
	case run.EventTestFinished:
		c.printf("  %s\n", outcomeLine(*ev.Outcome))
	}
}

func verdictLine(ev run.Event) string {
	who := "candidate"
	if ev.Candidate != nil {
		who = fmt.Sprintf("producer %d → %s", ev.Candidate.ProducerID, ev.Candidate.TargetFile)
	}
	switch ev.Verdict {
	case model.VerdictAccepted:
		return okStyle.Render("✓ " + who + ": accepted")
	case model.VerdictInconclusive:
		return warnStyle.Render("? " + who + ": test run inconclusive, reverted")
	case model.VerdictApplyFailed:
		return failStyle.Render("✗ " + who + ": could not be applied")
	default:
		return dimStyle.Render("✗ " + who + ": rejected, reverted")
	}
}

func outcomeLine(o model.TestOutcome) string {
	switch o.Reason {
	case model.ReasonFixed:
		return okStyle.Render(fmt.Sprintf("fixed on attempt %d", o.Attempts))
	case model.ReasonNoContext:
		return warnStyle.Render("skipped: test source not found")
	case model.ReasonDryRun:
		return dimStyle.Render("dry run: nothing applied")
	case model.ReasonCanceled:
		return warnStyle.Render("canceled")
	default:
		return failStyle.Render(fmt.Sprintf("not fixed after %d attempt(s)", o.Attempts))
	}
}

// previewMarkdown lists candidates with the first previewLimit characters of their content.
func previewMarkdown(cands []model.Candidate) string {
	var b strings.Builder
	for _, cand := range cands {
		content := cand.Content
		if r := []rune(content); len(r) > previewLimit {
			content = string(r[:previewLimit]) + "\n..."
		}
		fmt.Fprintf(&b, "### Producer %d\n\n", cand.ProducerID)
		fmt.Fprintf(&b, "**File:** `%s`\n\n", cand.TargetFile)
		if cand.Rationale != "" {
			fmt.Fprintf(&b, "**Rationale:** %s\n\n", cand.Rationale)
		}
		fmt.Fprintf(&b, "```\n%s\n```\n\n", content)
	}
	return b.String()
}

func (c *console) preview(cands []model.Candidate) string {
	md := previewMarkdown(cands)
	if c.renderer == nil {
		return md
	}
	out, err := c.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// summary prints the final tally.
func (c *console) summary(report model.RunReport, dryRun bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.printf("\n")
	switch {
	case report.TotalFailing == 0:
		c.printf("%s\n", okStyle.Render("All tests passing"))
		return
	case dryRun:
		c.printf("%s\n", titleStyle.Render(fmt.Sprintf("Dry run: %d failing test(s), no changes applied", report.TotalFailing)))
	case report.FixedCount == report.TotalFailing:
		c.printf("%s\n", okStyle.Render(fmt.Sprintf("Fixed %d/%d tests", report.FixedCount, report.TotalFailing)))
	case report.FixedCount > 0:
		c.printf("%s\n", warnStyle.Render(fmt.Sprintf("Fixed %d/%d tests (partial)", report.FixedCount, report.TotalFailing)))
	default:
		c.printf("%s\n", failStyle.Render(fmt.Sprintf("Fixed 0/%d tests", report.TotalFailing)))
	}
	if report.StateSuspect {
		c.printf("%s\n", failStyle.Render("Warning: some files could not be restored; the project tree may contain rejected edits:"))
		for _, p := range report.RevertFailures {
			c.printf("  %s\n", p)
		}
	}
}
