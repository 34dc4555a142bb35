package playback

import (
	"fmt"
	"time"
)

// Rules locate the parts of a target page the monitor reads and set its
// pacing. Selectors are CSS.
type Rules struct {
	// MediaSelector finds the media element whose clock is polled.
	MediaSelector string `yaml:"media_selector"`

	// PlayButtonSelector, when set, must be present and is clicked to start
	// playback. Pages without it are treated as non-media resources.
	PlayButtonSelector string `yaml:"play_button_selector"`

	// CompletionSelector and CompletionText detect a target the portal
	// already marks as finished.
	CompletionSelector string `yaml:"completion_selector"`
	CompletionText     string `yaml:"completion_text"`

	// WatchedSelector holds the seconds already watched, as reported by the portal.
	WatchedSelector string `yaml:"watched_selector"`

	// DefaultWait is the flat wait used when no duration can be determined.
	DefaultWait time.Duration `yaml:"default_wait"`

	// PollInterval is the length of one tick.
	PollInterval time.Duration `yaml:"poll_interval"`

	// CeilingSlack is added to the remaining playback time to bound polling.
	CeilingSlack time.Duration `yaml:"ceiling_slack"`

	// SettleDelay is waited after navigation for late DOM mutations.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// ElementTimeout bounds the wait for the media element.
	ElementTimeout time.Duration `yaml:"element_timeout"`

	// PlayButtonTimeout bounds the wait for the play button.
	PlayButtonTimeout time.Duration `yaml:"play_button_timeout"`

	// EndTolerance: currentTime within this of duration counts as ended.
	EndTolerance time.Duration `yaml:"end_tolerance"`
}

// DefaultRules returns the rules for the course portal.
func DefaultRules() Rules {
	return Rules{
		MediaSelector:      "video",
		CompletionSelector: ".tips-completion",
		CompletionText:     "已完成",
		WatchedSelector:    ".num-gksc > span",
		DefaultWait:        60 * time.Second,
		PollInterval:       5 * time.Second,
		CeilingSlack:       60 * time.Second,
		SettleDelay:        2 * time.Second,
		ElementTimeout:     10 * time.Second,
		PlayButtonTimeout:  5 * time.Second,
		EndTolerance:       time.Second,
	}
}

// Validate checks the rules are usable.
func (r Rules) Validate() error {
	if r.MediaSelector == "" {
		return fmt.Errorf("media_selector is required")
	}
	if r.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if r.DefaultWait < 0 {
		return fmt.Errorf("default_wait must not be negative")
	}
	if r.CeilingSlack < 0 {
		return fmt.Errorf("ceiling_slack must not be negative")
	}
	if (r.CompletionSelector == "") != (r.CompletionText == "") {
		return fmt.Errorf("completion_selector and completion_text must be set together")
	}
	return nil
}
