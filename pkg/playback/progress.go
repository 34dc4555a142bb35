package playback

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MediaState is one reading of the media element. Values come from the page
// unchecked; Duration is nil when the element reports none.
type MediaState struct {
	Paused      bool
	Ended       bool
	CurrentTime float64
	Duration    *float64
}

// Finished reports whether playback has reached its end, allowing tolerance
// for players that stop just short of duration.
func (s MediaState) Finished(tolerance time.Duration) bool {
	if s.Ended {
		return true
	}
	if s.Duration == nil {
		return false
	}
	return s.CurrentTime >= *s.Duration-tolerance.Seconds()
}

// WatchProgress is the per-target view of how much playback is left.
// Nil fields are unknown.
type WatchProgress struct {
	Total   *float64
	Watched *float64
}

// Remaining returns max(Total-Watched, 0) in seconds. ok is false unless both
// values are known.
func (p WatchProgress) Remaining() (seconds float64, ok bool) {
	if p.Total == nil || p.Watched == nil {
		return 0, false
	}
	return math.Max(*p.Total-*p.Watched, 0), true
}

// RemainingDuration is Remaining as a time.Duration.
func (p WatchProgress) RemainingDuration() (time.Duration, bool) {
	seconds, ok := p.Remaining()
	if !ok {
		return 0, false
	}
	return seconds2duration(seconds), true
}

// ParseWatched reads the portal's watched-seconds indicator. It accepts a
// bare number with an optional seconds unit.
func ParseWatched(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "秒")
	text = strings.TrimSuffix(text, "s")
	text = strings.TrimSpace(text)

	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

func seconds2duration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// toFloat converts a value decoded from the page into a finite number.
func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

// positiveDuration treats zero, negative and non-numeric durations as unknown.
func positiveDuration(v interface{}) *float64 {
	f, ok := toFloat(v)
	if !ok || f <= 0 {
		return nil
	}
	return &f
}

func decodeMediaState(v interface{}) (MediaState, bool) {
	m, ok := v.(map[string]interface{})
	if !ok || m == nil {
		return MediaState{}, false
	}
	current, _ := toFloat(m["currentTime"])
	return MediaState{
		Paused:      toBool(m["paused"]),
		Ended:       toBool(m["ended"]),
		CurrentTime: current,
		Duration:    positiveDuration(m["duration"]),
	}, true
}
