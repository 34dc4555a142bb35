// Package failure classifies everything that can go wrong while driving the
// remote page.
//
// Every externally observable step (navigation, element query, click,
// evaluation) is run through Wrap or Do, which attach the step name to the
// error and recognise a closed browser tab no matter how deep in the chain the
// evidence sits. Classify then sorts the result into one of four buckets:
//
//   - KindSurfaceClosed: the operator closed the tab; stop cleanly, no trace.
//   - KindSessionInvalid: the site stopped accepting the session.
//   - KindInterrupted: the run context was cancelled (Ctrl+C).
//   - KindStep: anything else; report the failing step and stop.
//
// Anticipated absences (a missing play button, an unrendered progress
// indicator) never reach this package. Callers model them as ordinary
// (value, present) results.
package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSurfaceClosed reports that the controlled browser tab is gone.
	ErrSurfaceClosed = errors.New("remote surface closed")

	// ErrSessionInvalid reports that the remote site no longer accepts the
	// authenticated session.
	ErrSessionInvalid = errors.New("session no longer accepted")
)

// closedMarkers are lowercase fragments of the messages Playwright and the
// browser produce when the page, context or browser went away underneath a call.
var closedMarkers = []string{
	"target closed",
	"has been closed",
	"browser has disconnected",
	"browser has been disconnected",
	"browser closed",
	"page closed",
}

// Kind is the classification of an error.
type Kind int

const (
	KindNone Kind = iota
	KindSurfaceClosed
	KindSessionInvalid
	KindInterrupted
	KindStep
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSurfaceClosed:
		return "surface_closed"
	case KindSessionInvalid:
		return "session_invalid"
	case KindInterrupted:
		return "interrupted"
	case KindStep:
		return "step_failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StepError attaches the name of the failing step to its cause.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Wrap runs fn as the named step.
func Wrap(step string, fn func() error) error {
	_, err := Do(step, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Do runs fn as the named step and returns its value. On failure the error is
// wrapped in a *StepError; if it indicates a closed surface it additionally
// matches ErrSurfaceClosed under errors.Is. The original cause stays reachable
// through Unwrap.
func Do[T any](step string, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil {
		return v, nil
	}
	return v, annotate(step, err)
}

func annotate(step string, err error) error {
	if !errors.Is(err, ErrSurfaceClosed) && looksClosed(err) {
		err = fmt.Errorf("%w: %w", ErrSurfaceClosed, err)
	}
	return &StepError{Step: step, Err: err}
}

// IsSurfaceClosed reports whether err means the browser tab is gone.
func IsSurfaceClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrSurfaceClosed) || looksClosed(err)
}

func looksClosed(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range closedMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Classify sorts err into the taxonomy. Surface closure wins over every other
// kind because once the tab is gone nothing else about the failure matters.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case IsSurfaceClosed(err):
		return KindSurfaceClosed
	case errors.Is(err, ErrSessionInvalid):
		return KindSessionInvalid
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindInterrupted
	default:
		return KindStep
	}
}

// FailedStep returns the innermost step name recorded on err, or "".
func FailedStep(err error) string {
	step := ""
	for err != nil {
		var se *StepError
		if !errors.As(err, &se) {
			break
		}
		step = se.Step
		err = se.Err
	}
	return step
}
