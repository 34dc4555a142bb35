// Package main provides coursewatch, which keeps a course-portal session
// alive while it plays through a list of lecture videos in a real browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/entrhq/coursewatch/pkg/config"
)

const version = "0.1.0"

// options holds command-line configuration
type options struct {
	configFile string
	envFile    string
	verbosity  string
	logDir     string

	browser      string
	headless     bool
	loginMode    string
	credentials  string
	metricsAddr  string
	holdOnExit   bool
	exportFile   string
	siteURL      string
	listURL      string
	urlPattern   string
	skipValidate bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "✗ Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

// errReported marks failures the console has already explained.
var errReported = errors.New("run failed")

func newRootCommand() *cobra.Command {
	return buildRootCommand(&options{})
}

func buildRootCommand(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "coursewatch",
		Short:         "Watch course videos in a browser while keeping the session alive",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with BROWSER, HEADLESS and VIDEO_LIST_URL")
	root.PersistentFlags().StringVar(&opts.verbosity, "verbosity", "", "console verbosity: quiet, normal, verbose, debug")
	root.PersistentFlags().StringVar(&opts.logDir, "log-dir", "", "directory for per-run log files")
	root.PersistentFlags().StringVar(&opts.credentials, "credentials", "", "credential snapshot file")
	addBrowserFlags(root, opts)

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newImportCommand(opts))
	root.AddCommand(newDiscoverCommand(opts))
	return root
}

func addBrowserFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVar(&opts.browser, "browser", "", "browser channel: msedge, chrome, chromium")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "run the browser without a window")
	cmd.Flags().StringVar(&opts.loginMode, "login", "", "login mode: interactive or credential-file (asked when empty)")
	cmd.Flags().StringVar(&opts.listURL, "list-url", "", "listing page to discover targets on")
	cmd.Flags().StringVar(&opts.urlPattern, "pattern", "", "substring or glob that target links match")
}

func newRunCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in, discover targets and watch them (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}
	addBrowserFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.holdOnExit, "hold", false, "keep the browser open until Enter is pressed")
	return cmd
}

func newImportCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-cookies <export.json>",
		Short: "Convert a browser-extension cookie export into the credential snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.exportFile = args[0]
			return runImport(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.siteURL, "site", "", "keep only cookies for this site's registrable domain (default: the landing URL)")
	return cmd
}

func newDiscoverCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Log in and print the targets a run would visit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd, opts)
		},
	}
	addBrowserFlags(cmd, opts)
	return cmd
}

// loadConfig layers defaults, the YAML file, the environment and changed flags.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	env, err := config.NewEnv(opts.envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return nil, err
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("verbosity") {
		cfg.Logging.Verbosity = opts.verbosity
	}
	if changed("log-dir") {
		cfg.Logging.Dir = opts.logDir
	}
	if changed("credentials") {
		cfg.Auth.CredentialsFile = opts.credentials
	}
	if changed("browser") {
		cfg.Browser.Channel = opts.browser
	}
	if changed("headless") {
		cfg.Browser.Headless = opts.headless
	}
	if changed("login") {
		cfg.Auth.LoginMode = opts.loginMode
	}
	if changed("list-url") {
		cfg.Targets.ListURL = opts.listURL
	}
	if changed("pattern") {
		cfg.Targets.URLPattern = opts.urlPattern
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if changed("hold") {
		cfg.HoldOnExit = opts.holdOnExit
	}

	if opts.skipValidate {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}
