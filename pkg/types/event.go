package types

import "time"

// EventType defines the kind of progress event emitted during a run.
type EventType string

const (
	EventTypeRunStarted       EventType = "run_started"       // EventTypeRunStarted indicates the watch loop accepted its target list.
	EventTypeTargetStarted    EventType = "target_started"    // EventTypeTargetStarted indicates a target page is about to be opened.
	EventTypeTargetSkipped    EventType = "target_skipped"    // EventTypeTargetSkipped indicates a target needed no waiting (already completed, not playable, nothing remaining).
	EventTypePlaybackProgress EventType = "playback_progress" // EventTypePlaybackProgress reports elapsed/total seconds on a poll tick.
	EventTypePlaybackResumed  EventType = "playback_resumed"  // EventTypePlaybackResumed indicates a paused media element was told to play again.
	EventTypeSessionCheck     EventType = "session_check"     // EventTypeSessionCheck reports the outcome of a validity probe.
	EventTypeSessionRefreshed EventType = "session_refreshed" // EventTypeSessionRefreshed indicates the extend-session control was used and credentials re-saved.
	EventTypeTargetFinished   EventType = "target_finished"   // EventTypeTargetFinished indicates the monitor returned done for a target.
	EventTypeRunFinished      EventType = "run_finished"      // EventTypeRunFinished carries the final N-of-M tally and stop classification.
)

// Event is a structured progress record. Only the fields relevant to Type are set.
type Event struct {
	// Time is when the event was produced.
	Time time.Time

	// Type indicates the kind of event.
	Type EventType

	// Target identifies the target being processed, if any.
	Target *TargetRef

	// Playback carries poll-tick progress (progress and resume events).
	Playback *PlaybackProgress

	// Session carries a validity probe outcome (session events).
	Session *SessionStatus

	// Run carries the run tally (run events).
	Run *RunTally

	// Reason is a short human-readable explanation (skips, fallbacks, stops).
	Reason string

	// Error is set when the event reports a failure.
	Error error
}

// TargetRef locates a target within the run.
type TargetRef struct {
	// Index is 1-based.
	Index int
	Total int
	URL   string
}

// PlaybackProgress is the elapsed/total view of one poll tick.
type PlaybackProgress struct {
	Tick int

	// Elapsed is how long the monitor has been waiting on this target.
	Elapsed time.Duration

	// Budget is the wait the monitor expects to need (remaining playback).
	Budget time.Duration

	// CurrentTime and Duration are the media element's own clock, in seconds.
	// Duration is nil when the element does not report one.
	CurrentTime float64
	Duration    *float64
}

// SessionStatus is the outcome of a session check.
type SessionStatus struct {
	Valid bool

	// ProbeFailed is true when the probe itself errored and validity was assumed.
	ProbeFailed bool
}

// RunTally counts how far a run got.
type RunTally struct {
	Completed int
	Total     int

	// Stop is the failure classification that ended the run ("none" when it ran to the end).
	Stop string
}

// Sink consumes events. Implementations must not block the caller for long:
// the watch loop emits from its only thread of control.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) {
	f(e)
}

// MultiSink fans an event out to every non-nil sink, in order.
type MultiSink []Sink

// Emit forwards e to every sink.
func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(Event) {})
