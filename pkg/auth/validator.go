// Package auth keeps the run's authenticated session alive.
//
// The Validator probes whether the site still accepts the session (denial
// text on the loaded document, landing-URL redirects), presses the site's
// "extend session" control while the run waits, and re-acquires a session
// either from the saved cookie snapshot or interactively with the operator.
//
// State moves Unknown → Valid/Invalid on a probe or landing check,
// Invalid → Valid on a successful login, Valid → Invalid when a keepalive
// finds the denial text, and ends in Abandoned when the operator declines to
// retry an interactive login.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/coursewatch/pkg/browser"
	"github.com/entrhq/coursewatch/pkg/clock"
	"github.com/entrhq/coursewatch/pkg/credentials"
	"github.com/entrhq/coursewatch/pkg/failure"
	"github.com/entrhq/coursewatch/pkg/logging"
	"github.com/entrhq/coursewatch/pkg/types"
	"golang.org/x/time/rate"
)

// State is the validator's view of the session.
type State int

const (
	StateUnknown State = iota
	StateValid
	StateInvalid
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	case StateAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Surface is the part of the browser tab the validator drives.
type Surface interface {
	Navigate(url string, opts browser.NavigateOptions) error
	Content() (string, error)
	CurrentURL() string
	ClickButton(name string) (bool, error)
	Cookies() ([]credentials.Cookie, error)
	AddCookies(cookies []credentials.Cookie) error
}

// Prompter is the operator interaction needed for interactive login.
type Prompter interface {
	WaitForEnter(ctx context.Context, message string) error
	Confirm(ctx context.Context, message string) (bool, error)
}

// Config holds the site-specific knobs of the validator.
type Config struct {
	// LandingURL is an authenticated page; reaching it unredirected proves the session.
	LandingURL string

	// LoginURL is where interactive login starts.
	LoginURL string

	// DenialText appears on pages the site serves to unauthenticated visitors.
	DenialText string

	// ExtendButton is the accessible name of the "extend session" button.
	ExtendButton string

	// SettleDelay is waited after navigating to the landing page.
	SettleDelay time.Duration

	// RefreshSettle is waited after pressing the extend button so the new
	// credential is issued before the cookies are snapshotted.
	RefreshSettle time.Duration

	// RefreshInterval throttles Keepalive's refreshes; zero refreshes every call.
	RefreshInterval time.Duration
}

// Option configures a Validator.
type Option func(*Validator)

// WithSleeper replaces the real-time sleeper.
func WithSleeper(s clock.Sleeper) Option {
	return func(v *Validator) { v.sleep = clock.OrDefault(s) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithSink sets where session events go.
func WithSink(sink types.Sink) Option {
	return func(v *Validator) { v.sink = sink }
}

// WithLogger sets the validator's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

// Validator owns the session state and the credential store handle.
// It borrows the surface and never closes it.
type Validator struct {
	surface Surface
	store   credentials.Store
	cfg     Config

	sink    types.Sink
	logger  *logging.Logger
	sleep   clock.Sleeper
	now     func() time.Time
	limiter *rate.Limiter

	state           State
	lastRefreshedAt time.Time
	cached          []credentials.Cookie
}

// NewValidator creates a validator over surface and store.
func NewValidator(surface Surface, store credentials.Store, cfg Config, opts ...Option) *Validator {
	v := &Validator{
		surface: surface,
		store:   store,
		cfg:     cfg,
		sink:    types.Discard,
		logger:  logging.Discard(),
		sleep:   clock.Sleep,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	limit := rate.Inf
	if cfg.RefreshInterval > 0 {
		limit = rate.Every(cfg.RefreshInterval)
	}
	v.limiter = rate.NewLimiter(limit, 1)
	return v
}

// State returns the current session state.
func (v *Validator) State() State {
	return v.state
}

// LastRefreshedAt returns when credentials were last re-snapshotted.
func (v *Validator) LastRefreshedAt() time.Time {
	return v.lastRefreshedAt
}

// Cached returns the credential snapshot most recently loaded or saved.
func (v *Validator) Cached() []credentials.Cookie {
	return v.cached
}

// CheckValidity probes the loaded document for the denial text. A probe that
// fails (the tab is mid-navigation, say) counts as valid.
func (v *Validator) CheckValidity(ctx context.Context) bool {
	content, err := failure.Do("read page for denial text", v.surface.Content)
	if err != nil {
		v.logger.Warnf("session probe failed, assuming valid: %v", err)
		v.emitCheck(true, true)
		return true
	}

	if v.cfg.DenialText != "" && strings.Contains(content, v.cfg.DenialText) {
		v.logger.Errorf("session rejected: page shows %q", v.cfg.DenialText)
		v.state = StateInvalid
		v.emitCheck(false, false)
		return false
	}

	v.state = StateValid
	v.emitCheck(true, false)
	return true
}

// Refresh presses the extend-session control if the page renders one, waits
// for the new credential, then saves and reloads the snapshot. Without the
// control it does nothing.
func (v *Validator) Refresh(ctx context.Context) error {
	if v.cfg.ExtendButton == "" {
		return nil
	}

	found, err := failure.Do("press extend-session control", func() (bool, error) {
		return v.surface.ClickButton(v.cfg.ExtendButton)
	})
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	v.logger.Infof("extend-session control pressed, refreshing credentials")
	if err := v.sleep(ctx, v.cfg.RefreshSettle); err != nil {
		return err
	}
	if err := v.snapshot(); err != nil {
		return err
	}

	v.sink.Emit(types.Event{Time: v.now(), Type: types.EventTypeSessionRefreshed})
	return nil
}

// Keepalive is the per-tick check: probe validity, then refresh if the
// throttle allows. It returns an error matching failure.ErrSessionInvalid when
// the site has rejected the session.
func (v *Validator) Keepalive(ctx context.Context) error {
	if !v.CheckValidity(ctx) {
		return fmt.Errorf("keepalive: %w", failure.ErrSessionInvalid)
	}
	if v.limiter.AllowN(v.now(), 1) {
		return v.Refresh(ctx)
	}
	return nil
}

// LoginWithCredentials loads the saved snapshot into the browser and checks
// that the landing page is reachable without a redirect. A missing or
// unreadable snapshot is reported as false, not as an error.
func (v *Validator) LoginWithCredentials(ctx context.Context) (bool, error) {
	cookies, err := v.store.Load()
	if err != nil {
		v.logger.Warnf("credential snapshot unavailable: %v", err)
		v.state = StateInvalid
		return false, nil
	}

	if err := failure.Wrap("load credentials into browser", func() error {
		return v.surface.AddCookies(cookies)
	}); err != nil {
		return false, err
	}
	v.cached = cookies
	v.logger.Infof("loaded %d cookies from snapshot", len(cookies))

	return v.verifyLanding(ctx)
}

// LoginInteractive opens the login page and waits for the operator to log in,
// re-checking the landing page each time they confirm. On success the new
// session is saved. Declining a retry leaves the validator Abandoned.
func (v *Validator) LoginInteractive(ctx context.Context, prompter Prompter) (bool, error) {
	for attempt := 1; ; attempt++ {
		if err := v.navigate("open login page", v.cfg.LoginURL); err != nil {
			return false, err
		}

		if err := prompter.WaitForEnter(ctx, "Log in in the browser window, then press Enter"); err != nil {
			return false, err
		}

		ok, err := v.verifyLanding(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			if err := v.snapshot(); err != nil {
				return false, err
			}
			v.logger.Infof("interactive login succeeded after %d attempt(s)", attempt)
			return true, nil
		}

		retry, err := prompter.Confirm(ctx, "Login was not detected. Try again")
		if err != nil {
			return false, err
		}
		if !retry {
			v.state = StateAbandoned
			v.logger.Warnf("operator abandoned interactive login after %d attempt(s)", attempt)
			return false, nil
		}
	}
}

func (v *Validator) verifyLanding(ctx context.Context) (bool, error) {
	if err := v.navigate("open landing page", v.cfg.LandingURL); err != nil {
		return false, err
	}
	if err := v.sleep(ctx, v.cfg.SettleDelay); err != nil {
		return false, err
	}

	current := v.surface.CurrentURL()
	if err := CompareLanding(v.cfg.LandingURL, current); err != nil {
		v.logger.Warnf("landing check failed: %v", err)
		v.state = StateInvalid
		return false, nil
	}

	v.logger.Infof("landing check passed: %s", current)
	v.state = StateValid
	return true, nil
}

func (v *Validator) navigate(step, url string) error {
	return failure.Wrap(step, func() error {
		return v.surface.Navigate(url, browser.NavigateOptions{WaitUntil: browser.WaitNetworkIdle})
	})
}

// snapshot saves the browser's cookies and reloads them as the local cache.
func (v *Validator) snapshot() error {
	cookies, err := failure.Do("read browser cookies", v.surface.Cookies)
	if err != nil {
		return err
	}
	if err := failure.Wrap("save credential snapshot", func() error {
		return v.store.Save(cookies)
	}); err != nil {
		return err
	}

	reloaded, err := failure.Do("reload credential snapshot", v.store.Load)
	if err != nil {
		return err
	}

	v.cached = reloaded
	v.lastRefreshedAt = v.now()
	v.logger.Infof("credential snapshot saved (%d cookies)", len(reloaded))
	return nil
}

func (v *Validator) emitCheck(valid, probeFailed bool) {
	v.sink.Emit(types.Event{
		Time:    v.now(),
		Type:    types.EventTypeSessionCheck,
		Session: &types.SessionStatus{Valid: valid, ProbeFailed: probeFailed},
	})
}
