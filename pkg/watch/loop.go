// Package watch runs the monitor over an ordered list of targets.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/coursewatch/pkg/clock"
	"github.com/entrhq/coursewatch/pkg/failure"
	"github.com/entrhq/coursewatch/pkg/logging"
	"github.com/entrhq/coursewatch/pkg/playback"
	"github.com/entrhq/coursewatch/pkg/types"
)

// DefaultPause separates consecutive targets.
const DefaultPause = 2 * time.Second

// Watcher processes one target.
type Watcher interface {
	Watch(ctx context.Context, target types.TargetRef) (*playback.Result, error)
}

// Liveness reports whether the browser tab is gone.
type Liveness interface {
	IsClosed() bool
}

// TargetResult is the outcome of one visited target.
type TargetResult struct {
	Target types.TargetRef
	Result *playback.Result
}

// Report summarises a run. When Stop is not failure.KindNone the run ended
// early; Failed is the target that was being processed, if any.
type Report struct {
	Total     int
	Completed int
	Results   []TargetResult

	Stop   failure.Kind
	Err    error
	Failed *types.TargetRef

	Started  time.Time
	Finished time.Time
}

// OK reports whether every target was visited.
func (r *Report) OK() bool {
	return r.Stop == failure.KindNone && r.Completed == r.Total
}

// Skipped counts targets that needed no waiting.
func (r *Report) Skipped() int {
	n := 0
	for _, tr := range r.Results {
		if tr.Result != nil && tr.Result.Outcome.Skipped() {
			n++
		}
	}
	return n
}

// Summary is the one-line "N of M" tally.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d of %d targets completed", r.Completed, r.Total)
}

// Option configures a Loop.
type Option func(*Loop)

// WithPause sets the wait between targets.
func WithPause(d time.Duration) Option {
	return func(l *Loop) { l.pause = d }
}

// WithSleeper replaces the real-time sleeper.
func WithSleeper(s clock.Sleeper) Option {
	return func(l *Loop) { l.sleep = clock.OrDefault(s) }
}

// WithSink sets where run events go.
func WithSink(sink types.Sink) Option {
	return func(l *Loop) { l.sink = sink }
}

// WithLogger sets the loop's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// Loop visits targets in order with a single watcher over a single tab.
// It is the only place a run is terminated.
type Loop struct {
	surface Liveness
	watcher Watcher

	pause  time.Duration
	sleep  clock.Sleeper
	sink   types.Sink
	logger *logging.Logger
	now    func() time.Time
}

// NewLoop creates a loop.
func NewLoop(surface Liveness, watcher Watcher, opts ...Option) *Loop {
	l := &Loop{
		surface: surface,
		watcher: watcher,
		pause:   DefaultPause,
		sleep:   clock.Sleep,
		sink:    types.Discard,
		logger:  logging.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run visits every target in order and stops at the first closed tab,
// rejected session, cancellation or step failure. It always returns a report.
func (l *Loop) Run(ctx context.Context, targets []string) *Report {
	report := &Report{Total: len(targets), Started: l.now()}
	l.logger.Infof("starting run over %d target(s)", len(targets))
	l.sink.Emit(types.Event{
		Time: report.Started,
		Type: types.EventTypeRunStarted,
		Run:  &types.RunTally{Total: len(targets), Stop: failure.KindNone.String()},
	})

	for i, url := range targets {
		ref := types.TargetRef{Index: i + 1, Total: len(targets), URL: url}

		if err := l.visit(ctx, ref, report); err != nil {
			l.stop(report, ref, err)
			break
		}

		if i < len(targets)-1 {
			if err := l.sleep(ctx, l.pause); err != nil {
				l.stop(report, types.TargetRef{}, err)
				break
			}
		}
	}

	report.Finished = l.now()
	l.finish(report)
	return report
}

func (l *Loop) visit(ctx context.Context, ref types.TargetRef, report *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.surface.IsClosed() {
		return fmt.Errorf("before target %d: %w", ref.Index, failure.ErrSurfaceClosed)
	}

	l.logger.Infof("[%d/%d] %s", ref.Index, ref.Total, ref.URL)
	l.sink.Emit(types.Event{Time: l.now(), Type: types.EventTypeTargetStarted, Target: &ref})

	result, err := l.watcher.Watch(ctx, ref)
	if err != nil {
		return err
	}

	report.Completed++
	report.Results = append(report.Results, TargetResult{Target: ref, Result: result})

	typ := types.EventTypeTargetFinished
	if result.Outcome.Skipped() {
		typ = types.EventTypeTargetSkipped
	}
	reason := result.Reason
	if reason == "" {
		reason = result.Outcome.String()
	}
	l.logger.Infof("[%d/%d] done: %s", ref.Index, ref.Total, reason)
	l.sink.Emit(types.Event{Time: l.now(), Type: typ, Target: &ref, Reason: reason})
	return nil
}

func (l *Loop) stop(report *Report, ref types.TargetRef, err error) {
	report.Err = err
	report.Stop = failure.Classify(err)
	if ref.URL != "" {
		report.Failed = &ref
	}

	switch report.Stop {
	case failure.KindSurfaceClosed:
		l.logger.Infof("browser closed, stopping run")
	case failure.KindSessionInvalid:
		l.logger.Errorf("session rejected, stopping run: %v", err)
	case failure.KindInterrupted:
		l.logger.Warnf("run interrupted: %v", err)
	default:
		l.logger.Errorf("run failed at step %q: %v", failure.FailedStep(err), err)
	}
}

func (l *Loop) finish(report *Report) {
	l.logger.Infof("run finished: %s (stop: %s)", report.Summary(), report.Stop)
	ev := types.Event{
		Time: report.Finished,
		Type: types.EventTypeRunFinished,
		Run: &types.RunTally{
			Completed: report.Completed,
			Total:     report.Total,
			Stop:      report.Stop.String(),
		},
		Target: report.Failed,
	}
	if report.Stop != failure.KindSurfaceClosed {
		ev.Error = report.Err
	}
	l.sink.Emit(ev)
}
