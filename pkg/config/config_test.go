package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Targets.ListURL = "https://moodle.scnu.edu.cn/course/view.php?id=1"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "msedge", cfg.Browser.Channel)
	assert.Equal(t, "cookies.json", cfg.Auth.CredentialsFile)
	assert.Equal(t, time.Minute, cfg.Auth.RefreshInterval)
	assert.Equal(t, 5*time.Second, cfg.Playback.PollInterval)
	assert.Equal(t, ".vjs-big-play-button", cfg.Playback.PlayButtonSelector)

	// The list URL is site specific and has no default.
	assert.ErrorContains(t, cfg.Validate(), "targets.list_url")
	assert.NoError(t, validConfig().Validate())
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "coursewatch.yaml", `
browser:
  channel: chrome
  headless: true
auth:
  login_mode: credential-file
  refresh_interval: 90s
targets:
  urls:
    - https://moodle.scnu.edu.cn/mod/fsresource/view.php?id=1
    - https://moodle.scnu.edu.cn/mod/fsresource/view.php?id=2
playback:
  poll_interval: 10s
  default_wait: 2m
logging:
  verbosity: verbose
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "chrome", cfg.Browser.Channel)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, LoginModeCredentialFile, cfg.Auth.LoginMode)
	assert.Equal(t, 90*time.Second, cfg.Auth.RefreshInterval)
	assert.Len(t, cfg.Targets.URLs, 2)
	assert.Equal(t, 10*time.Second, cfg.Playback.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Playback.DefaultWait)
	assert.Equal(t, "verbose", cfg.Logging.Verbosity)

	// Untouched keys keep their defaults.
	assert.Equal(t, "video", cfg.Playback.MediaSelector)
	assert.Equal(t, "延长会话", cfg.Auth.ExtendButton)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	path := writeFile(t, "bad.yaml", "playback: [")
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad channel", mutate: func(c *Config) { c.Browser.Channel = "firefox" }, wantErr: "invalid browser channel"},
		{name: "executable path skips channel check", mutate: func(c *Config) {
			c.Browser.Channel = ""
			c.Browser.ExecutablePath = "/opt/edge/msedge"
		}},
		{name: "bad login mode", mutate: func(c *Config) { c.Auth.LoginMode = "sso" }, wantErr: "invalid login mode"},
		{name: "relative landing url", mutate: func(c *Config) { c.Auth.LandingURL = "/my/" }, wantErr: "auth.landing_url must be an absolute"},
		{name: "login url not needed for credential file", mutate: func(c *Config) {
			c.Auth.LoginMode = LoginModeCredentialFile
			c.Auth.LoginURL = ""
		}},
		{name: "login url needed for interactive", mutate: func(c *Config) { c.Auth.LoginURL = "" }, wantErr: "auth.login_url is required"},
		{name: "explicit urls replace discovery", mutate: func(c *Config) {
			c.Targets.ListURL = ""
			c.Targets.URLPattern = ""
			c.Targets.URLs = []string{"https://moodle.scnu.edu.cn/mod/fsresource/view.php?id=9"}
		}},
		{name: "bad target url", mutate: func(c *Config) { c.Targets.URLs = []string{"ftp://x/1"} }, wantErr: "targets.urls must be an absolute"},
		{name: "missing pattern", mutate: func(c *Config) { c.Targets.URLPattern = "" }, wantErr: "targets.url_pattern is required"},
		{name: "bad playback", mutate: func(c *Config) { c.Playback.PollInterval = 0 }, wantErr: "playback: poll_interval"},
		{name: "bad verbosity", mutate: func(c *Config) { c.Logging.Verbosity = "loud" }, wantErr: "invalid logging verbosity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidate_DefaultsVerbosity(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Verbosity = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "normal", cfg.Logging.Verbosity)
}

func TestApplyEnv(t *testing.T) {
	dotenv := writeFile(t, ".env", "BROWSER=chrome\nVIDEO_LIST_URL=https://moodle.scnu.edu.cn/course/view.php?id=7\nHEADLESS=false\n")
	t.Setenv("HEADLESS", "true")
	t.Setenv("COURSEWATCH_CREDENTIALS_FILE", "/tmp/session.json")

	v, err := NewEnv(dotenv)
	require.NoError(t, err)

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(v))

	assert.Equal(t, "chrome", cfg.Browser.Channel)
	assert.Equal(t, "https://moodle.scnu.edu.cn/course/view.php?id=7", cfg.Targets.ListURL)
	assert.True(t, cfg.Browser.Headless, "process environment wins over the dotenv file")
	assert.Equal(t, "/tmp/session.json", cfg.Auth.CredentialsFile)
	assert.Equal(t, "normal", cfg.Logging.Verbosity)
}

func TestApplyEnv_MissingDotenvAndBadBool(t *testing.T) {
	t.Setenv("HEADLESS", "sometimes")

	v, err := NewEnv(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)

	cfg := DefaultConfig()
	assert.ErrorContains(t, cfg.ApplyEnv(v), "invalid HEADLESS value")
}
