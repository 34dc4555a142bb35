// Package playback waits out the media on one target page.
//
// The Monitor opens the page, skips it when the portal already marks it as
// completed or it has no play control, works out how much playback is left,
// and then polls the media element on a fixed tick until it ends or a ceiling
// of remaining+slack is reached. Every tick checks the tab is still open and
// runs a session keepalive before touching the media element, and resumes the
// player when the page has paused it.
package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/coursewatch/pkg/browser"
	"github.com/entrhq/coursewatch/pkg/clock"
	"github.com/entrhq/coursewatch/pkg/failure"
	"github.com/entrhq/coursewatch/pkg/logging"
	"github.com/entrhq/coursewatch/pkg/types"
)

const (
	durationScript = `(selector) => {
	const el = document.querySelector(selector);
	if (!el || !isFinite(el.duration) || el.duration <= 0) return null;
	return el.duration;
}`

	mediaStateScript = `(selector) => {
	const el = document.querySelector(selector);
	if (!el) return null;
	return {
		paused: el.paused,
		ended: el.ended,
		currentTime: el.currentTime,
		duration: isFinite(el.duration) ? el.duration : null,
	};
}`

	resumeScript = `(selector) => {
	const el = document.querySelector(selector);
	if (!el) return false;
	const p = el.play();
	if (p && p.catch) p.catch(() => {});
	return true;
}`
)

// Surface is the part of the browser tab the monitor drives.
type Surface interface {
	Navigate(url string, opts browser.NavigateOptions) error
	TextContent(selector string) (string, bool, error)
	WaitForSelector(selector string, timeout time.Duration) (bool, error)
	Evaluate(expression string, arg interface{}) (interface{}, error)
	Click(selector string, timeout time.Duration) error
	IsClosed() bool
}

// Session is the session check run alongside the wait.
type Session interface {
	CheckValidity(ctx context.Context) bool
	Keepalive(ctx context.Context) error
}

// Outcome says how the monitor reached done.
type Outcome int

const (
	// OutcomeCompleted: the media element reported the end of playback.
	OutcomeCompleted Outcome = iota
	// OutcomeAlreadyCompleted: the page carried the completion marker.
	OutcomeAlreadyCompleted
	// OutcomeNotPlayable: a play control was configured but the page has none.
	OutcomeNotPlayable
	// OutcomeNoWaitNeeded: the portal reports nothing left to watch.
	OutcomeNoWaitNeeded
	// OutcomeFallbackWait: no duration was available so the default wait was served.
	OutcomeFallbackWait
	// OutcomeCeilingReached: polling ran out its ceiling without an end signal.
	OutcomeCeilingReached
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeAlreadyCompleted:
		return "already_completed"
	case OutcomeNotPlayable:
		return "not_playable"
	case OutcomeNoWaitNeeded:
		return "no_wait_needed"
	case OutcomeFallbackWait:
		return "fallback_wait"
	case OutcomeCeilingReached:
		return "ceiling_reached"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Skipped reports whether the target needed no waiting at all.
func (o Outcome) Skipped() bool {
	return o == OutcomeAlreadyCompleted || o == OutcomeNotPlayable || o == OutcomeNoWaitNeeded
}

// Result describes a finished target.
type Result struct {
	Outcome  Outcome
	Progress WatchProgress

	// Ticks is the number of poll ticks (or fallback slices) served.
	Ticks   int
	Resumes int
	Waited  time.Duration

	// Unread counts ticks with no media reading.
	Unread int

	// Reason explains skips and fallbacks.
	Reason string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSleeper replaces the real-time sleeper.
func WithSleeper(s clock.Sleeper) Option {
	return func(m *Monitor) { m.sleep = clock.OrDefault(s) }
}

// WithSink sets where progress events go.
func WithSink(sink types.Sink) Option {
	return func(m *Monitor) { m.sink = sink }
}

// WithLogger sets the monitor's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// Monitor waits out playback on target pages. It borrows the surface and
// never closes it.
type Monitor struct {
	surface Surface
	session Session
	rules   Rules

	sleep  clock.Sleeper
	sink   types.Sink
	logger *logging.Logger
	now    func() time.Time
}

// NewMonitor creates a monitor. session may be nil to disable session checks.
func NewMonitor(surface Surface, session Session, rules Rules, opts ...Option) *Monitor {
	m := &Monitor{
		surface: surface,
		session: session,
		rules:   rules,
		sleep:   clock.Sleep,
		sink:    types.Discard,
		logger:  logging.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Watch processes one target and returns once it is done. Errors are
// classified with failure.Classify; a closed tab or a rejected session
// should end the run.
func (m *Monitor) Watch(ctx context.Context, target types.TargetRef) (*Result, error) {
	if err := failure.Wrap("open target page", func() error {
		return m.surface.Navigate(target.URL, browser.NavigateOptions{WaitUntil: browser.WaitNetworkIdle})
	}); err != nil {
		return nil, err
	}
	if err := m.sleep(ctx, m.rules.SettleDelay); err != nil {
		return nil, err
	}

	if m.session != nil && !m.session.CheckValidity(ctx) {
		return nil, fmt.Errorf("after opening %s: %w", target.URL, failure.ErrSessionInvalid)
	}

	done, err := m.alreadyCompleted()
	if err != nil {
		return nil, err
	}
	if done {
		m.logger.Infof("%s is marked completed, skipping", target.URL)
		return &Result{Outcome: OutcomeAlreadyCompleted, Reason: "marked completed by the portal"}, nil
	}

	if m.rules.PlayButtonSelector != "" {
		playable, err := m.startPlayback()
		if err != nil {
			return nil, err
		}
		if !playable {
			m.logger.Warnf("no usable play control on %s, treating it as a non-media page", target.URL)
			return &Result{Outcome: OutcomeNotPlayable, Reason: "no usable play control, not a media page"}, nil
		}
	}

	progress, err := m.measure()
	if err != nil {
		return nil, err
	}

	remaining, known := progress.RemainingDuration()
	if !known {
		return m.fallbackWait(ctx, target, progress)
	}
	if remaining <= 0 {
		m.logger.Infof("nothing left to watch on %s", target.URL)
		return &Result{Outcome: OutcomeNoWaitNeeded, Progress: progress, Reason: "nothing left to watch"}, nil
	}
	return m.poll(ctx, target, progress, remaining)
}

func (m *Monitor) alreadyCompleted() (bool, error) {
	if m.rules.CompletionSelector == "" {
		return false, nil
	}
	text, present, err := m.textContent("read completion marker", m.rules.CompletionSelector)
	if err != nil {
		return false, m.degrade(err, "completion marker")
	}
	return present && strings.Contains(strings.TrimSpace(text), m.rules.CompletionText), nil
}

func (m *Monitor) startPlayback() (bool, error) {
	present, err := failure.Do("find play control", func() (bool, error) {
		return m.surface.WaitForSelector(m.rules.PlayButtonSelector, m.rules.PlayButtonTimeout)
	})
	if err != nil {
		return false, m.degrade(err, "play control lookup")
	}
	if !present {
		return false, nil
	}
	if err := failure.Wrap("click play control", func() error {
		return m.surface.Click(m.rules.PlayButtonSelector, m.rules.PlayButtonTimeout)
	}); err != nil {
		return false, m.degrade(err, "play control click")
	}
	m.logger.Debugf("play control clicked")
	return true, nil
}

// measure reads the total and watched seconds. Missing or unreadable values
// are left unknown, except that a known total with an unreadable watched
// value assumes nothing has been watched.
func (m *Monitor) measure() (WatchProgress, error) {
	var progress WatchProgress

	present, err := failure.Do("wait for media element", func() (bool, error) {
		return m.surface.WaitForSelector(m.rules.MediaSelector, m.rules.ElementTimeout)
	})
	if err := m.degrade(err, "media element lookup"); err != nil {
		return progress, err
	}
	if !present {
		m.logger.Warnf("media element %q not found", m.rules.MediaSelector)
		return progress, nil
	}

	raw, err := failure.Do("read media duration", func() (interface{}, error) {
		return m.surface.Evaluate(durationScript, m.rules.MediaSelector)
	})
	if err := m.degrade(err, "media duration"); err != nil {
		return progress, err
	}
	progress.Total = positiveDuration(raw)
	if progress.Total == nil {
		m.logger.Warnf("media element reports no duration")
		return progress, nil
	}

	watched := 0.0
	progress.Watched = &watched
	if m.rules.WatchedSelector == "" {
		return progress, nil
	}

	text, present, err := m.textContent("read watched time", m.rules.WatchedSelector)
	if err := m.degrade(err, "watched time"); err != nil {
		return progress, err
	}
	switch {
	case !present:
		m.logger.Infof("no watched-time indicator, using full duration")
	default:
		if v, ok := ParseWatched(text); ok {
			watched = v
		} else {
			m.logger.Warnf("unparsable watched time %q, using full duration", text)
		}
	}

	remaining, _ := progress.Remaining()
	m.logger.Infof("duration %.1fs, watched %.1fs, remaining %.1fs", *progress.Total, watched, remaining)
	return progress, nil
}

// degrade swallows a probe error unless it means the tab is gone.
func (m *Monitor) degrade(err error, what string) error {
	if err == nil {
		return nil
	}
	if failure.IsSurfaceClosed(err) || errors.Is(err, context.Canceled) {
		return err
	}
	m.logger.Warnf("%s unavailable: %v", what, err)
	return nil
}

func (m *Monitor) poll(ctx context.Context, target types.TargetRef, progress WatchProgress, remaining time.Duration) (*Result, error) {
	ceiling := remaining + m.rules.CeilingSlack
	result := &Result{Outcome: OutcomeCeilingReached, Progress: progress}
	m.logger.Infof("polling %s every %s for up to %s", target.URL, m.rules.PollInterval, ceiling)

	for result.Waited < ceiling {
		if err := m.tick(ctx, result); err != nil {
			return nil, err
		}

		state, ok, err := m.readState()
		if err != nil {
			return nil, err
		}
		if !ok {
			result.Unread++
			m.emit(target, types.EventTypePlaybackProgress, result, remaining, MediaState{})
			continue
		}

		if state.Paused && !state.Ended {
			if err := m.resume(); err != nil {
				return nil, err
			}
			result.Resumes++
			m.emit(target, types.EventTypePlaybackResumed, result, remaining, state)
		}

		m.emit(target, types.EventTypePlaybackProgress, result, remaining, state)
		if state.Finished(m.rules.EndTolerance) {
			result.Outcome = OutcomeCompleted
			m.logger.Infof("playback ended on %s after %d tick(s)", target.URL, result.Ticks)
			return result, nil
		}
	}

	result.Reason = fmt.Sprintf("no end signal within %s", ceiling)
	if result.Unread > 0 {
		result.Reason += fmt.Sprintf(", media unreadable on %d tick(s)", result.Unread)
	}
	m.logger.Warnf("%s: %s, moving on", target.URL, result.Reason)
	return result, nil
}

// fallbackWait serves the default wait in tick-sized slices without reading
// the media element.
func (m *Monitor) fallbackWait(ctx context.Context, target types.TargetRef, progress WatchProgress) (*Result, error) {
	result := &Result{
		Outcome:  OutcomeFallbackWait,
		Progress: progress,
		Reason:   fmt.Sprintf("no duration available, waited default %s", m.rules.DefaultWait),
	}
	m.logger.Warnf("no duration for %s, waiting the default %s", target.URL, m.rules.DefaultWait)

	for result.Waited < m.rules.DefaultWait {
		slice := m.rules.PollInterval
		if left := m.rules.DefaultWait - result.Waited; left < slice {
			slice = left
		}
		if err := m.wait(ctx, result, slice); err != nil {
			return nil, err
		}
		m.sink.Emit(types.Event{
			Time:   m.now(),
			Type:   types.EventTypePlaybackProgress,
			Target: &target,
			Playback: &types.PlaybackProgress{
				Tick:    result.Ticks,
				Elapsed: result.Waited,
				Budget:  m.rules.DefaultWait,
			},
		})
	}
	return result, nil
}

func (m *Monitor) tick(ctx context.Context, result *Result) error {
	return m.wait(ctx, result, m.rules.PollInterval)
}

// wait sleeps one slice then checks liveness and the session, in that order.
func (m *Monitor) wait(ctx context.Context, result *Result, d time.Duration) error {
	if err := m.sleep(ctx, d); err != nil {
		return err
	}
	result.Waited += d
	result.Ticks++

	if m.surface.IsClosed() {
		return fmt.Errorf("tick %d: %w", result.Ticks, failure.ErrSurfaceClosed)
	}
	if m.session != nil {
		if err := m.session.Keepalive(ctx); err != nil {
			return err
		}
	}
	return nil
}

// readState reports false when this tick has no usable reading, e.g. the
// element is missing while the player re-renders.
func (m *Monitor) readState() (MediaState, bool, error) {
	raw, err := failure.Do("read media state", func() (interface{}, error) {
		return m.surface.Evaluate(mediaStateScript, m.rules.MediaSelector)
	})
	if err != nil {
		return MediaState{}, false, m.degrade(err, "media state")
	}
	state, ok := decodeMediaState(raw)
	if !ok {
		m.logger.Warnf("media element %q not readable this tick", m.rules.MediaSelector)
		return MediaState{}, false, nil
	}
	return state, true, nil
}

func (m *Monitor) resume() error {
	m.logger.Infof("playback paused, resuming")
	return failure.Wrap("resume playback", func() error {
		_, err := m.surface.Evaluate(resumeScript, m.rules.MediaSelector)
		return err
	})
}

func (m *Monitor) textContent(step, selector string) (string, bool, error) {
	type read struct {
		text    string
		present bool
	}
	r, err := failure.Do(step, func() (read, error) {
		text, present, err := m.surface.TextContent(selector)
		return read{text, present}, err
	})
	return r.text, r.present, err
}

func (m *Monitor) emit(target types.TargetRef, typ types.EventType, result *Result, budget time.Duration, state MediaState) {
	m.sink.Emit(types.Event{
		Time:   m.now(),
		Type:   typ,
		Target: &target,
		Playback: &types.PlaybackProgress{
			Tick:        result.Ticks,
			Elapsed:     result.Waited,
			Budget:      budget,
			CurrentTime: state.CurrentTime,
			Duration:    state.Duration,
		},
	})
}
