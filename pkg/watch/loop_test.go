package watch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/entrhq/coursewatch/pkg/browser/browsertest"
	"github.com/entrhq/coursewatch/pkg/failure"
	"github.com/entrhq/coursewatch/pkg/playback"
	"github.com/entrhq/coursewatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var targets = []string{
	"https://portal.example.edu/v/1",
	"https://portal.example.edu/v/2",
	"https://portal.example.edu/v/3",
	"https://portal.example.edu/v/4",
}

type step struct {
	result *playback.Result
	err    error
}

type fakeWatcher struct {
	steps   []step
	visited []types.TargetRef
}

func (w *fakeWatcher) Watch(ctx context.Context, target types.TargetRef) (*playback.Result, error) {
	w.visited = append(w.visited, target)
	s := w.steps[len(w.visited)-1]
	return s.result, s.err
}

type liveness struct {
	closed bool
}

func (l *liveness) IsClosed() bool { return l.closed }

type recorder struct {
	events []types.Event
}

func (r *recorder) Emit(e types.Event) { r.events = append(r.events, e) }

func (r *recorder) last() types.Event { return r.events[len(r.events)-1] }

func (r *recorder) kinds() []types.EventType {
	out := make([]types.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func completed() step {
	return step{result: &playback.Result{Outcome: playback.OutcomeCompleted}}
}

func TestLoop_VisitsAllTargetsInOrder(t *testing.T) {
	watcher := &fakeWatcher{steps: []step{
		completed(),
		{result: &playback.Result{Outcome: playback.OutcomeAlreadyCompleted, Reason: "marked completed by the portal"}},
		completed(),
		{result: &playback.Result{Outcome: playback.OutcomeFallbackWait}},
	}}
	sleeper := &browsertest.Sleeper{}
	rec := &recorder{}
	loop := NewLoop(&liveness{}, watcher, WithSleeper(sleeper.Sleep), WithSink(rec))

	report := loop.Run(context.Background(), targets)

	assert.True(t, report.OK())
	assert.Equal(t, 4, report.Completed)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 1, report.Skipped())
	assert.Equal(t, "4 of 4 targets completed", report.Summary())
	assert.Equal(t, failure.KindNone, report.Stop)
	assert.Nil(t, report.Failed)

	require.Len(t, watcher.visited, 4)
	for i, ref := range watcher.visited {
		assert.Equal(t, i+1, ref.Index)
		assert.Equal(t, 4, ref.Total)
		assert.Equal(t, targets[i], ref.URL)
	}

	assert.Equal(t, []time.Duration{DefaultPause, DefaultPause, DefaultPause}, sleeper.Waits, "pause between targets only")
	assert.Equal(t, types.EventTypeRunStarted, rec.events[0].Type)
	assert.Contains(t, rec.kinds(), types.EventTypeTargetSkipped)
	assert.Equal(t, types.EventTypeRunFinished, rec.last().Type)
	assert.Equal(t, &types.RunTally{Completed: 4, Total: 4, Stop: "none"}, rec.last().Run)
}

func TestLoop_StopsOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantStop failure.Kind
		wantErr  bool
	}{
		{
			name:     "surface closed",
			err:      failure.ErrSurfaceClosed,
			wantStop: failure.KindSurfaceClosed,
		},
		{
			name:     "session invalid",
			err:      errors.Join(errors.New("keepalive"), failure.ErrSessionInvalid),
			wantStop: failure.KindSessionInvalid,
			wantErr:  true,
		},
		{
			name:     "step failure",
			err:      &failure.StepError{Step: "read media state", Err: errors.New("boom")},
			wantStop: failure.KindStep,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			watcher := &fakeWatcher{steps: []step{completed(), completed(), {err: tt.err}, completed()}}
			rec := &recorder{}
			loop := NewLoop(&liveness{}, watcher, WithSleeper((&browsertest.Sleeper{}).Sleep), WithSink(rec))

			report := loop.Run(context.Background(), targets)

			assert.False(t, report.OK())
			assert.Equal(t, 2, report.Completed)
			assert.Equal(t, "2 of 4 targets completed", report.Summary())
			assert.Equal(t, tt.wantStop, report.Stop)
			require.NotNil(t, report.Failed)
			assert.Equal(t, 3, report.Failed.Index)
			assert.Len(t, watcher.visited, 3, "run stops, later targets untouched")

			last := rec.last()
			assert.Equal(t, types.EventTypeRunFinished, last.Type)
			assert.Equal(t, tt.wantStop.String(), last.Run.Stop)
			assert.Equal(t, tt.wantErr, last.Error != nil)
		})
	}
}

func TestLoop_ChecksLivenessBeforeEachTarget(t *testing.T) {
	live := &liveness{}
	watcher := &fakeWatcher{steps: []step{completed(), completed(), completed(), completed()}}
	sleeper := &browsertest.Sleeper{OnSleep: func(n int, d time.Duration) error {
		if n == 1 {
			live.closed = true
		}
		return nil
	}}
	loop := NewLoop(live, watcher, WithSleeper(sleeper.Sleep))

	report := loop.Run(context.Background(), targets)

	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, failure.KindSurfaceClosed, report.Stop)
	assert.Len(t, watcher.visited, 1)
	require.NotNil(t, report.Failed)
	assert.Equal(t, 2, report.Failed.Index)
}

func TestLoop_InterruptedDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := &fakeWatcher{steps: []step{completed(), completed(), completed(), completed()}}
	sleeper := &browsertest.Sleeper{OnSleep: func(n int, d time.Duration) error {
		cancel()
		return ctx.Err()
	}}
	loop := NewLoop(&liveness{}, watcher, WithSleeper(sleeper.Sleep))

	report := loop.Run(ctx, targets)

	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, failure.KindInterrupted, report.Stop)
	assert.Nil(t, report.Failed)
}

func TestLoop_EmptyTargetList(t *testing.T) {
	loop := NewLoop(&liveness{}, &fakeWatcher{})
	report := loop.Run(context.Background(), nil)

	assert.True(t, report.OK())
	assert.Equal(t, "0 of 0 targets completed", report.Summary())
}

// The tests below drive the real monitor over a scripted tab.

type session struct {
	keepalives int
	rejectAt   int
}

func (s *session) CheckValidity(ctx context.Context) bool { return true }

func (s *session) Keepalive(ctx context.Context) error {
	s.keepalives++
	if s.rejectAt > 0 && s.keepalives >= s.rejectAt {
		return failure.ErrSessionInvalid
	}
	return nil
}

// endlessVideo reports a 50s video that never finishes, 0 seconds watched.
func endlessVideo() *browsertest.Surface {
	return &browsertest.Surface{
		Attached: map[string]bool{"video": true},
		Texts:    map[string]string{".num-gksc > span": "0"},
		EvaluateFunc: func(expression string, arg interface{}) (interface{}, error) {
			switch {
			case strings.Contains(expression, "currentTime"):
				return map[string]interface{}{"paused": false, "ended": false, "currentTime": 5.0, "duration": 50.0}, nil
			case strings.Contains(expression, "play()"):
				return true, nil
			default:
				return 50.0, nil
			}
		},
	}
}

func TestLoop_SurfaceClosedMidPoll(t *testing.T) {
	surface := endlessVideo()
	completedAt := map[string]bool{targets[0]: true, targets[1]: true}
	surface.Texts[".tips-completion"] = ""
	surface.OnNavigate = func(s *browsertest.Surface, url string) {
		if completedAt[url] {
			s.Texts[".tips-completion"] = "已完成"
			return
		}
		s.Texts[".tips-completion"] = ""
		// Three liveness checks precede this target's ticks; the third
		// tick finds the tab closed.
		s.ClosedAfter = 3 + 3
	}
	sleeper := &browsertest.Sleeper{}
	monitor := playback.NewMonitor(surface, &session{}, playback.DefaultRules(), playback.WithSleeper(sleeper.Sleep))
	rec := &recorder{}
	loop := NewLoop(surface, monitor, WithSleeper(sleeper.Sleep), WithSink(rec))

	report := loop.Run(context.Background(), targets)

	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, failure.KindSurfaceClosed, report.Stop)
	assert.Nil(t, rec.last().Error, "closing the browser is not reported as an error")
	assert.Equal(t, 3, surface.CallCount("Navigate"))
}

func TestLoop_SessionRejectedMidPoll(t *testing.T) {
	surface := endlessVideo()
	sess := &session{rejectAt: 2}
	sleeper := &browsertest.Sleeper{}
	monitor := playback.NewMonitor(surface, sess, playback.DefaultRules(), playback.WithSleeper(sleeper.Sleep))
	loop := NewLoop(surface, monitor, WithSleeper(sleeper.Sleep))

	report := loop.Run(context.Background(), targets)

	assert.Equal(t, 0, report.Completed)
	assert.Equal(t, failure.KindSessionInvalid, report.Stop)
	require.NotNil(t, report.Failed)
	assert.Equal(t, targets[0], report.Failed.URL)
	assert.Equal(t, 1, surface.CallCount("Navigate"))
}

func TestLoop_PageShapeProblemsDoNotStopRun(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(s *browsertest.Surface, rules *playback.Rules)
		wantSkipped int
	}{
		{
			name: "hidden play control",
			setup: func(s *browsertest.Surface, rules *playback.Rules) {
				rules.PlayButtonSelector = ".vjs-big-play-button"
				s.Attached[".vjs-big-play-button"] = true
				s.Errors = map[string]error{"Click": errors.New("Timeout 5000ms exceeded. element is not visible")}
			},
			wantSkipped: len(targets),
		},
		{
			name: "media state unreadable",
			setup: func(s *browsertest.Surface, rules *playback.Rules) {
				next := s.EvaluateFunc
				s.EvaluateFunc = func(expression string, arg interface{}) (interface{}, error) {
					if strings.Contains(expression, "currentTime") {
						return nil, nil
					}
					return next(expression, arg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := endlessVideo()
			rules := playback.DefaultRules()
			tt.setup(surface, &rules)
			sleeper := &browsertest.Sleeper{}
			monitor := playback.NewMonitor(surface, &session{}, rules, playback.WithSleeper(sleeper.Sleep))
			loop := NewLoop(surface, monitor, WithSleeper(sleeper.Sleep))

			report := loop.Run(context.Background(), targets)

			assert.Equal(t, failure.KindNone, report.Stop)
			assert.NoError(t, report.Err)
			assert.Equal(t, len(targets), report.Completed)
			assert.Equal(t, tt.wantSkipped, report.Skipped())
			assert.Equal(t, len(targets), surface.CallCount("Navigate"))
		})
	}
}
