package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entrhq/coursewatch/pkg/auth"
	"github.com/entrhq/coursewatch/pkg/browser"
	"github.com/entrhq/coursewatch/pkg/clock"
	"github.com/entrhq/coursewatch/pkg/config"
	"github.com/entrhq/coursewatch/pkg/credentials"
	"github.com/entrhq/coursewatch/pkg/discovery"
	"github.com/entrhq/coursewatch/pkg/logging"
	"github.com/entrhq/coursewatch/pkg/operator"
	"github.com/entrhq/coursewatch/pkg/report"
	"github.com/entrhq/coursewatch/pkg/types"
)

// app is everything a command needs once the configuration is settled.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	console  *report.Console
	prompter operator.Prompter
	store    *credentials.FileStore

	interactive bool
	sink        types.Sink

	manager   *browser.Manager
	session   *browser.Session
	validator *auth.Validator
}

func newApp(cmd *cobra.Command, opts *options) (*app, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	if cfg.Logging.Dir != "" {
		logging.SetLogDirectory(cfg.Logging.Dir)
	}
	logger, err := logging.NewLogger("coursewatch")
	if err != nil {
		return nil, err
	}

	terminal := operator.NewTerminal()
	a := &app{
		cfg:         cfg,
		logger:      logger,
		console:     report.NewConsole(report.ParseLevel(cfg.Logging.Verbosity), cmd.OutOrStdout()),
		store:       credentials.NewFileStore(cfg.Auth.CredentialsFile),
		interactive: terminal.Interactive(),
	}
	if a.interactive {
		a.prompter = terminal
	} else {
		mode, _ := operator.ParseLoginMode(cfg.Auth.LoginMode)
		a.prompter = operator.Fixed{Mode: mode}
	}
	a.sink = a.console
	return a, nil
}

func (a *app) close() {
	if a.manager != nil {
		if err := a.manager.Shutdown(); err != nil {
			a.logger.Warnf("browser shutdown: %v", err)
		}
	}
	a.logger.Close()
}

// launch starts the browser and builds the session validator over it.
func (a *app) launch() error {
	a.manager = browser.NewManager(a.logger.With("browser"))
	if err := a.manager.Initialize(a.cfg.Browser.Channel); err != nil {
		return err
	}

	session, err := a.manager.Launch(browser.SessionOptions{
		Channel:        a.cfg.Browser.Channel,
		ExecutablePath: a.cfg.Browser.ExecutablePath,
		Headless:       a.cfg.Browser.Headless,
		UserAgent:      a.cfg.Browser.UserAgent,
		Timeout:        float64(a.cfg.Browser.Timeout.Milliseconds()),
	})
	if err != nil {
		return err
	}
	a.session = session

	a.validator = auth.NewValidator(session, a.store, auth.Config{
		LandingURL:      a.cfg.Auth.LandingURL,
		LoginURL:        a.cfg.Auth.LoginURL,
		DenialText:      a.cfg.Auth.DenialText,
		ExtendButton:    a.cfg.Auth.ExtendButton,
		SettleDelay:     a.cfg.Auth.SettleDelay,
		RefreshSettle:   a.cfg.Auth.RefreshSettle,
		RefreshInterval: a.cfg.Auth.RefreshInterval,
	},
		auth.WithSink(a.sink),
		auth.WithLogger(a.logger.With("auth")),
	)
	return nil
}

// loginMode resolves the configured mode, asking the operator when unset.
func (a *app) loginMode(ctx context.Context) (operator.LoginMode, error) {
	if a.cfg.Auth.LoginMode != "" {
		return operator.ParseLoginMode(a.cfg.Auth.LoginMode)
	}
	if !a.interactive {
		return operator.LoginCredentialFile, nil
	}
	a.console.Infof("💡 Press Ctrl+C at any time to stop")
	return a.prompter.ChooseLogin(ctx)
}

// login acquires a session. A false result has already been explained on
// the console.
func (a *app) login(ctx context.Context) (bool, error) {
	mode, err := a.loginMode(ctx)
	if err != nil {
		return false, err
	}
	a.logger.Infof("login mode: %s", mode)

	switch mode {
	case operator.LoginCredentialFile:
		if a.cfg.Auth.ExportFile != "" {
			n, err := credentials.ImportFile(a.cfg.Auth.ExportFile, a.store, credentials.ImportOptions{SiteURL: a.cfg.Auth.LandingURL})
			if err != nil {
				a.console.Errorf("could not convert %s: %v", a.cfg.Auth.ExportFile, err)
				return false, nil
			}
			a.console.Successf("imported %d cookies from %s", n, a.cfg.Auth.ExportFile)
		}
		ok, err := a.validator.LoginWithCredentials(ctx)
		if err != nil || ok {
			return ok, err
		}
		a.console.Errorf("the saved session in %s was not accepted", a.store.Path())
		return false, nil

	default:
		if !a.interactive {
			return false, fmt.Errorf("interactive login needs a terminal, use --login credential-file: %w", operator.ErrNotInteractive)
		}
		a.console.Infof("A login page will open in the browser")
		ok, err := a.validator.LoginInteractive(ctx, a.prompter)
		if err != nil {
			if errors.Is(err, operator.ErrAborted) {
				a.console.Warningf("login interrupted")
			}
			return false, err
		}
		if !ok {
			a.console.Errorf("login was abandoned")
		}
		return ok, nil
	}
}

// targets returns the configured URLs, or discovers them on the listing page.
func (a *app) targets(ctx context.Context) ([]string, error) {
	if len(a.cfg.Targets.URLs) > 0 {
		a.console.Infof("using %d configured target(s)", len(a.cfg.Targets.URLs))
		return a.cfg.Targets.URLs, nil
	}

	matcher, err := discovery.NewMatcher(a.cfg.Targets.URLPattern, a.cfg.Targets.Exclude...)
	if err != nil {
		return nil, err
	}
	a.console.Infof("extracting links matching %s", matcher.Pattern())
	links, err := discovery.FromSurface(ctx, a.session, a.cfg.Targets.ListURL, matcher, a.cfg.Auth.SettleDelay, clock.Sleep)
	if err != nil {
		return nil, err
	}
	a.logger.Infof("discovered %d link(s) on %s", len(links), a.cfg.Targets.ListURL)
	a.console.Links(links, matcher.Pattern())
	return links, nil
}

// hold waits for Enter before the browser is closed.
func (a *app) hold(ctx context.Context) {
	if !a.cfg.HoldOnExit || !a.interactive {
		return
	}
	if err := a.prompter.WaitForEnter(ctx, "Press Enter to close the browser"); err != nil {
		a.logger.Debugf("hold prompt ended: %v", err)
	}
}

func (a *app) banner(title string) {
	mode := a.cfg.Auth.LoginMode
	if mode == "" {
		mode = "ask"
	}
	a.console.Banner(title,
		"browser:  "+a.cfg.Browser.Channel+headlessNote(a.cfg.Browser.Headless),
		"login:    "+mode,
		"session:  "+a.store.Path(),
		"log:      "+a.logger.LogPath(),
	)
}

func headlessNote(headless bool) string {
	if headless {
		return " (headless)"
	}
	return ""
}
