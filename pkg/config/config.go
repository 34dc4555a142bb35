// Package config loads the run configuration: a YAML file over built-in
// defaults, then the environment (and an optional dotenv file), then flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/coursewatch/pkg/playback"
)

// Config represents the configuration for a watch run
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Auth     AuthConfig     `yaml:"auth"`
	Targets  TargetsConfig  `yaml:"targets"`
	Playback playback.Rules `yaml:"playback"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	// HoldOnExit keeps the browser open until the operator presses Enter.
	HoldOnExit bool `yaml:"hold_on_exit"`
}

// BrowserConfig selects and shapes the controlled browser
type BrowserConfig struct {
	// Channel is a Chromium-family channel: msedge, chrome or chromium.
	Channel        string        `yaml:"channel"`
	ExecutablePath string        `yaml:"executable_path"`
	Headless       bool          `yaml:"headless"`
	Timeout        time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"user_agent"`
}

// AuthConfig defines how the session is acquired and kept alive
type AuthConfig struct {
	// LoginMode is interactive or credential-file. Empty asks at start-up.
	LoginMode string `yaml:"login_mode"`

	LoginURL   string `yaml:"login_url"`
	LandingURL string `yaml:"landing_url"`
	DenialText string `yaml:"denial_text"`

	// ExtendButton is the accessible name of the extend-session button.
	ExtendButton string `yaml:"extend_button"`

	CredentialsFile string `yaml:"credentials_file"`

	// ExportFile, when set, is a browser-extension cookie export imported
	// into CredentialsFile before a credential-file login.
	ExportFile string `yaml:"export_file"`

	SettleDelay     time.Duration `yaml:"settle_delay"`
	RefreshSettle   time.Duration `yaml:"refresh_settle"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// TargetsConfig lists targets directly or describes how to discover them
type TargetsConfig struct {
	URLs []string `yaml:"urls"`

	ListURL    string   `yaml:"list_url"`
	URLPattern string   `yaml:"url_pattern"`
	Exclude    []string `yaml:"exclude"`

	// Pause separates consecutive targets.
	Pause time.Duration `yaml:"pause"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls console output: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity"`

	// Dir holds the per-run log files.
	Dir string `yaml:"dir"`
}

// MetricsConfig enables the Prometheus endpoint
type MetricsConfig struct {
	// Addr is host:port for /metrics; empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// Login modes accepted in AuthConfig.LoginMode.
const (
	LoginModeInteractive    = "interactive"
	LoginModeCredentialFile = "credential-file"
)

var validChannels = map[string]bool{
	"msedge":   true,
	"chrome":   true,
	"chromium": true,
}

// DefaultConfig returns the configuration for the university course portal.
func DefaultConfig() *Config {
	rules := playback.DefaultRules()
	rules.PlayButtonSelector = ".vjs-big-play-button"

	return &Config{
		Browser: BrowserConfig{
			Channel: "msedge",
			Timeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			LoginURL:        "https://sso.scnu.edu.cn/AccountService/user/login.html",
			LandingURL:      "https://moodle.scnu.edu.cn/my/",
			DenialText:      "访客不能访问此课程",
			ExtendButton:    "延长会话",
			CredentialsFile: "cookies.json",
			SettleDelay:     2 * time.Second,
			RefreshSettle:   3 * time.Second,
			RefreshInterval: time.Minute,
		},
		Targets: TargetsConfig{
			URLPattern: "https://moodle.scnu.edu.cn/mod/fsresource/view.php?id=",
			Pause:      2 * time.Second,
		},
		Playback: rules,
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Browser.ExecutablePath == "" && !validChannels[c.Browser.Channel] {
		errs = append(errs, fmt.Errorf("invalid browser channel: %s (must be 'msedge', 'chrome' or 'chromium')", c.Browser.Channel))
	}
	if c.Browser.Timeout < 0 {
		errs = append(errs, fmt.Errorf("browser timeout cannot be negative"))
	}

	switch c.Auth.LoginMode {
	case "", LoginModeInteractive, LoginModeCredentialFile:
	default:
		errs = append(errs, fmt.Errorf("invalid login mode: %s (must be '%s' or '%s')", c.Auth.LoginMode, LoginModeInteractive, LoginModeCredentialFile))
	}
	if err := requireURL("auth.landing_url", c.Auth.LandingURL); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.LoginMode != LoginModeCredentialFile {
		if err := requireURL("auth.login_url", c.Auth.LoginURL); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Auth.CredentialsFile == "" {
		errs = append(errs, fmt.Errorf("auth.credentials_file is required"))
	}
	if c.Auth.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("auth.refresh_interval cannot be negative"))
	}

	if len(c.Targets.URLs) == 0 {
		if err := requireURL("targets.list_url", c.Targets.ListURL); err != nil {
			errs = append(errs, fmt.Errorf("either targets.urls or targets.list_url is required: %w", err))
		}
		if c.Targets.URLPattern == "" {
			errs = append(errs, fmt.Errorf("targets.url_pattern is required for discovery"))
		}
	}
	for _, u := range c.Targets.URLs {
		if err := requireURL("targets.urls", u); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Targets.Pause < 0 {
		errs = append(errs, fmt.Errorf("targets.pause cannot be negative"))
	}

	if err := c.Playback.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("playback: %w", err))
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		errs = append(errs, fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity))
	}

	return errors.Join(errs...)
}

func requireURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL: %s", field, raw)
	}
	return nil
}
