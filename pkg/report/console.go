// Package report prints run progress and the final summary for the operator.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/entrhq/coursewatch/pkg/types"
)

// Level represents the console verbosity level
type Level int

const (
	// LevelQuiet shows only warnings, errors and the final summary
	LevelQuiet Level = iota
	// LevelNormal shows per-target progress (default)
	LevelNormal
	// LevelVerbose adds session checks and every poll tick
	LevelVerbose
	// LevelDebug shows everything
	LevelDebug
)

// ParseLevel converts a level name; unknown names are LevelNormal.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "quiet":
		return LevelQuiet
	case "verbose":
		return LevelVerbose
	case "debug":
		return LevelDebug
	default:
		return LevelNormal
	}
}

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
)

// Console renders run events for a human. It implements types.Sink.
type Console struct {
	level  Level
	writer io.Writer

	green     *color.Color
	cyan      *color.Color
	salmon    *color.Color
	yellow    *color.Color
	red       *color.Color
	gray      *color.Color
	boldGreen *color.Color
	boldRed   *color.Color
	boldWhite *color.Color

	// progressOpen is set while a carriage-return progress line is on screen.
	progressOpen bool
	stepCount    int
}

// NewConsole creates a console printing to w (os.Stdout when nil).
func NewConsole(level Level, w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{
		level:     level,
		writer:    w,
		green:     color.New(color.FgGreen),
		cyan:      color.New(color.FgCyan),
		salmon:    color.New(color.FgHiRed),
		yellow:    color.New(color.FgYellow),
		red:       color.New(color.FgRed),
		gray:      color.New(color.FgHiBlack),
		boldGreen: color.New(color.FgGreen, color.Bold),
		boldRed:   color.New(color.FgRed, color.Bold),
		boldWhite: color.New(color.FgWhite, color.Bold),
	}
}

// DisableColor turns off ANSI sequences, for log files and tests.
func (c *Console) DisableColor() {
	for _, col := range []*color.Color{c.green, c.cyan, c.salmon, c.yellow, c.red, c.gray, c.boldGreen, c.boldRed, c.boldWhite} {
		col.DisableColor()
	}
}

// Banner prints the start-up box.
func (c *Console) Banner(title string, lines ...string) {
	if c.level < LevelNormal {
		return
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Foreground(salmonPink).Render(title),
		lipgloss.NewStyle().Foreground(mintGreen).Render(strings.Join(lines, "\n")),
	)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(salmonPink).
		Padding(0, 2).
		Render(body)
	c.println(box)
}

// Section prints a section divider
func (c *Console) Section(title string) {
	if c.level >= LevelNormal {
		c.closeProgress()
		fmt.Fprintln(c.writer)
		c.cyan.Fprintf(c.writer, "▶ %s\n", title)
		c.gray.Fprintln(c.writer, strings.Repeat("─", 50))
	}
}

// Step prints a numbered step
func (c *Console) Step(message string) {
	if c.level >= LevelNormal {
		c.closeProgress()
		c.stepCount++
		c.cyan.Fprintf(c.writer, "\n[%d] %s\n", c.stepCount, message)
	}
}

// Successf prints a success message with checkmark
func (c *Console) Successf(format string, args ...interface{}) {
	if c.level >= LevelNormal {
		c.closeProgress()
		c.boldGreen.Fprintf(c.writer, "✓ %s\n", fmt.Sprintf(format, args...))
	}
}

// Infof prints an informational message
func (c *Console) Infof(format string, args ...interface{}) {
	if c.level >= LevelNormal {
		c.closeProgress()
		c.salmon.Fprintf(c.writer, "%s\n", fmt.Sprintf(format, args...))
	}
}

// Warningf prints a warning message
func (c *Console) Warningf(format string, args ...interface{}) {
	c.closeProgress()
	c.yellow.Fprintf(c.writer, "⚠ Warning: %s\n", fmt.Sprintf(format, args...))
}

// Errorf prints an error message
func (c *Console) Errorf(format string, args ...interface{}) {
	c.closeProgress()
	c.boldRed.Fprintf(c.writer, "✗ Error: %s\n", fmt.Sprintf(format, args...))
}

// Verbosef prints detailed information (verbose and up)
func (c *Console) Verbosef(format string, args ...interface{}) {
	if c.level >= LevelVerbose {
		c.closeProgress()
		c.gray.Fprintf(c.writer, "→ %s\n", fmt.Sprintf(format, args...))
	}
}

// Debugf prints debug information (debug only)
func (c *Console) Debugf(format string, args ...interface{}) {
	if c.level >= LevelDebug {
		c.closeProgress()
		c.gray.Fprintf(c.writer, "[DEBUG] %s\n", fmt.Sprintf(format, args...))
	}
}

// Links echoes the first few discovered targets.
func (c *Console) Links(links []string, pattern string) {
	if len(links) == 0 {
		c.Warningf("no links matching %q were found", pattern)
		return
	}
	if c.level < LevelNormal {
		return
	}
	c.Successf("found %d matching link(s)", len(links))
	shown := links
	if len(shown) > 5 {
		shown = shown[:5]
	}
	for i, link := range shown {
		fmt.Fprintf(c.writer, "  %d. %s\n", i+1, link)
	}
	if more := len(links) - len(shown); more > 0 {
		c.gray.Fprintf(c.writer, "  ... and %d more\n", more)
	}
}

// Emit implements types.Sink.
func (c *Console) Emit(e types.Event) {
	switch e.Type {
	case types.EventTypeRunStarted:
		if e.Run != nil {
			c.Section(fmt.Sprintf("Watching %d target(s)", e.Run.Total))
		}
	case types.EventTypeTargetStarted:
		if e.Target != nil {
			c.Step(fmt.Sprintf("%d/%d %s", e.Target.Index, e.Target.Total, e.Target.URL))
		}
	case types.EventTypeTargetSkipped:
		c.Infof("  ↷ skipped: %s", e.Reason)
	case types.EventTypeTargetFinished:
		c.Successf("done: %s", e.Reason)
	case types.EventTypePlaybackProgress:
		c.progress(e.Playback)
	case types.EventTypePlaybackResumed:
		c.Verbosef("playback was paused, resumed")
	case types.EventTypeSessionCheck:
		switch {
		case e.Session == nil:
		case e.Session.ProbeFailed:
			c.Debugf("session probe failed, assuming valid")
		case !e.Session.Valid:
			c.Errorf("session is no longer accepted by the site")
		default:
			c.Debugf("session valid")
		}
	case types.EventTypeSessionRefreshed:
		c.Verbosef("session extended, credentials saved")
	case types.EventTypeRunFinished:
		c.closeProgress()
	}
}

func (c *Console) progress(p *types.PlaybackProgress) {
	if p == nil || c.level < LevelNormal {
		return
	}
	line := fmt.Sprintf("  ⏳ waited %s of %s%s", p.Elapsed.Round(time.Second), p.Budget.Round(time.Second), percent(p.Elapsed, p.Budget))
	if p.Duration != nil {
		line += fmt.Sprintf(" · player %.0fs/%.0fs", p.CurrentTime, *p.Duration)
	}

	if c.level >= LevelVerbose {
		c.gray.Fprintln(c.writer, line)
		return
	}
	c.gray.Fprintf(c.writer, "\r%s", line)
	c.progressOpen = true
}

func percent(elapsed, budget time.Duration) string {
	if budget <= 0 {
		return ""
	}
	p := float64(elapsed) / float64(budget) * 100
	if p > 100 {
		p = 100
	}
	return fmt.Sprintf(" (%.0f%%)", p)
}

func (c *Console) closeProgress() {
	if c.progressOpen {
		fmt.Fprintln(c.writer)
		c.progressOpen = false
	}
}

func (c *Console) println(s string) {
	c.closeProgress()
	fmt.Fprintln(c.writer, s)
}
