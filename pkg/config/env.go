package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Environment keys. BROWSER, HEADLESS and VIDEO_LIST_URL keep the names
// existing .env files use.
const (
	EnvBrowser         = "browser"
	EnvHeadless        = "headless"
	EnvVideoListURL    = "video_list_url"
	EnvCredentialsFile = "coursewatch_credentials_file"
	EnvExportFile      = "coursewatch_export_file"
	EnvLoginMode       = "coursewatch_login_mode"
	EnvURLPattern      = "coursewatch_url_pattern"
	EnvLogDir          = "coursewatch_log_dir"
	EnvVerbosity       = "coursewatch_verbosity"
	EnvMetricsAddr     = "coursewatch_metrics_addr"
)

// NewEnv returns a viper instance reading the process environment and, when
// present, the dotenv file. Process variables win over the file.
func NewEnv(dotenv string) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()

	if dotenv == "" {
		return v, nil
	}
	if _, err := os.Stat(dotenv); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to stat dotenv file: %w", err)
	}

	v.SetConfigFile(dotenv)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read dotenv file %s: %w", dotenv, err)
	}
	return v, nil
}

// ApplyEnv overlays environment settings onto c. Unset keys leave c alone.
func (c *Config) ApplyEnv(v *viper.Viper) error {
	str := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}

	str(EnvBrowser, &c.Browser.Channel)
	str(EnvVideoListURL, &c.Targets.ListURL)
	str(EnvCredentialsFile, &c.Auth.CredentialsFile)
	str(EnvExportFile, &c.Auth.ExportFile)
	str(EnvLoginMode, &c.Auth.LoginMode)
	str(EnvURLPattern, &c.Targets.URLPattern)
	str(EnvLogDir, &c.Logging.Dir)
	str(EnvVerbosity, &c.Logging.Verbosity)
	str(EnvMetricsAddr, &c.Metrics.Addr)

	if s := v.GetString(EnvHeadless); s != "" {
		headless, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid HEADLESS value %q: %w", s, err)
		}
		c.Browser.Headless = headless
	}
	return nil
}
