package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/entrhq/coursewatch/pkg/failure"
	"github.com/entrhq/coursewatch/pkg/types"
	"github.com/entrhq/coursewatch/pkg/watch"
	"github.com/stretchr/testify/assert"
)

func newTestConsole(level Level) (*Console, *bytes.Buffer) {
	var buf bytes.Buffer
	c := NewConsole(level, &buf)
	c.DisableColor()
	return c, &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"quiet":   LevelQuiet,
		"normal":  LevelNormal,
		"VERBOSE": LevelVerbose,
		"debug":   LevelDebug,
		"":        LevelNormal,
		"loud":    LevelNormal,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestConsole_LevelFiltering(t *testing.T) {
	tests := []struct {
		level       Level
		wantInfo    bool
		wantVerbose bool
		wantDebug   bool
	}{
		{level: LevelQuiet},
		{level: LevelNormal, wantInfo: true},
		{level: LevelVerbose, wantInfo: true, wantVerbose: true},
		{level: LevelDebug, wantInfo: true, wantVerbose: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.level), func(t *testing.T) {
			c, buf := newTestConsole(tt.level)
			c.Infof("info line")
			c.Verbosef("verbose line")
			c.Debugf("debug line")
			c.Warningf("warn line")
			c.Errorf("error line")

			out := buf.String()
			assert.Equal(t, tt.wantInfo, strings.Contains(out, "info line"))
			assert.Equal(t, tt.wantVerbose, strings.Contains(out, "verbose line"))
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug line"))
			assert.Contains(t, out, "⚠ Warning: warn line")
			assert.Contains(t, out, "✗ Error: error line")
		})
	}
}

func TestConsole_ProgressLineIsClosed(t *testing.T) {
	c, buf := newTestConsole(LevelNormal)
	d := 120.0
	c.Emit(types.Event{Type: types.EventTypePlaybackProgress, Playback: &types.PlaybackProgress{
		Tick: 1, Elapsed: 30 * time.Second, Budget: 120 * time.Second, CurrentTime: 30, Duration: &d,
	}})
	c.Emit(types.Event{Type: types.EventTypeTargetFinished, Reason: "completed"})

	out := buf.String()
	assert.Contains(t, out, "\r  ⏳ waited 30s of 2m0s (25%) · player 30s/120s\n")
	assert.Contains(t, out, "✓ done: completed")
}

func TestConsole_EmitTargets(t *testing.T) {
	c, buf := newTestConsole(LevelNormal)
	c.Emit(types.Event{Type: types.EventTypeRunStarted, Run: &types.RunTally{Total: 2}})
	c.Emit(types.Event{Type: types.EventTypeTargetStarted, Target: &types.TargetRef{Index: 1, Total: 2, URL: "https://x/1"}})
	c.Emit(types.Event{Type: types.EventTypeTargetSkipped, Reason: "marked completed by the portal"})
	c.Emit(types.Event{Type: types.EventTypeSessionCheck, Session: &types.SessionStatus{Valid: false}})

	out := buf.String()
	assert.Contains(t, out, "▶ Watching 2 target(s)")
	assert.Contains(t, out, "[1] 1/2 https://x/1")
	assert.Contains(t, out, "skipped: marked completed by the portal")
	assert.Contains(t, out, "session is no longer accepted")
}

func TestConsole_Links(t *testing.T) {
	c, buf := newTestConsole(LevelNormal)
	links := []string{"a", "b", "c", "d", "e", "f", "g"}
	c.Links(links, "view.php")

	out := buf.String()
	assert.Contains(t, out, "found 7 matching link(s)")
	assert.Contains(t, out, "  5. e\n")
	assert.NotContains(t, out, "  6. f")
	assert.Contains(t, out, "... and 2 more")

	buf.Reset()
	c.Links(nil, "view.php")
	assert.Contains(t, buf.String(), `no links matching "view.php" were found`)
}

func TestConsole_Banner(t *testing.T) {
	c, buf := newTestConsole(LevelNormal)
	c.Banner("coursewatch", "browser: msedge")
	assert.Contains(t, buf.String(), "coursewatch")
	assert.Contains(t, buf.String(), "browser: msedge")

	q, qbuf := newTestConsole(LevelQuiet)
	q.Banner("coursewatch")
	assert.Empty(t, qbuf.String())
}

func TestConsole_Summary(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	failed := &types.TargetRef{Index: 3, Total: 4, URL: "https://x/3"}

	tests := []struct {
		name     string
		report   *watch.Report
		want     []string
		dontWant []string
	}{
		{
			name:     "success",
			report:   &watch.Report{Total: 4, Completed: 4, Started: start, Finished: start.Add(90 * time.Minute)},
			want:     []string{"✓ SUCCESS", "4 of 4 targets completed", "Duration: 1h30m0s"},
			dontWant: []string{"Troubleshooting"},
		},
		{
			name:     "browser closed",
			report:   &watch.Report{Total: 4, Completed: 2, Stop: failure.KindSurfaceClosed, Err: failure.ErrSurfaceClosed, Failed: failed},
			want:     []string{"■ STOPPED", "2 of 4 targets completed", "browser was closed at target 3"},
			dontWant: []string{"Troubleshooting", "Error Details"},
		},
		{
			name:   "session invalid",
			report: &watch.Report{Total: 4, Completed: 2, Stop: failure.KindSessionInvalid, Err: failure.ErrSessionInvalid, Failed: failed},
			want:   []string{"✗ FAILED", "no longer accepts the session at target 3", "Log in again"},
		},
		{
			name: "step failure",
			report: &watch.Report{
				Total: 4, Completed: 2, Stop: failure.KindStep, Failed: failed,
				Err: &failure.StepError{Step: "read media state", Err: errors.New("boom")},
			},
			want: []string{"✗ FAILED", "step: read media state at target 3", "read media state failed: boom", "Troubleshooting", "Check the network connection"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, buf := newTestConsole(LevelQuiet)
			c.Summary(tt.report, RunInfo{RunID: "run-1", LogPath: "/tmp/run-1.log"})

			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.dontWant {
				assert.NotContains(t, out, w)
			}
			assert.Contains(t, out, "Run ID: run-1")
		})
	}
}
