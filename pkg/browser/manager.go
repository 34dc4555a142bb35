package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/entrhq/coursewatch/pkg/logging"
	"github.com/playwright-community/playwright-go"
)

// Manager owns the Playwright driver and the single browser tab of a run.
type Manager struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	session     *Session
	initialized bool
	logger      *logging.Logger
}

// NewManager creates a new browser manager.
func NewManager(logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{logger: logger}
}

// Initialize installs (if needed) and starts the Playwright driver.
// When a system browser channel is used the bundled browsers are not downloaded.
func (m *Manager) Initialize(channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
		Browsers:            []string{"chromium"},
		SkipInstallBrowsers: usesSystemBrowser(channel),
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	return nil
}

func usesSystemBrowser(channel string) bool {
	return channel != "" && channel != "chromium"
}

// Launch starts the browser and opens the run's only tab.
func (m *Manager) Launch(opts SessionOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}
	if m.session != nil {
		return nil, fmt.Errorf("browser already launched")
	}

	// Set defaults
	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     append(append([]string{}, defaultArgs...), opts.ExtraArgs...),
	}
	if opts.ExecutablePath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ExecutablePath)
	} else if usesSystemBrowser(opts.Channel) {
		launchOpts.Channel = playwright.String(opts.Channel)
	}

	browser, err := m.playwright.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser (channel %q): %w", opts.Channel, err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
		UserAgent: playwright.String(opts.UserAgent),
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(opts.Timeout)

	m.session = &Session{
		Browser: browser,
		Context: context,
		Page:    page,
	}
	m.logger.Infof("browser launched (channel=%q headless=%t muted)", opts.Channel, opts.Headless)
	return m.session, nil
}

// Shutdown closes the tab, browser and Playwright driver. Errors from an
// already-closed browser are ignored.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		_ = m.session.Page.Close()    // Ignore errors, continue cleanup
		_ = m.session.Context.Close() // Ignore errors, continue cleanup
		_ = m.session.Browser.Close() // Ignore errors, continue cleanup
		m.session = nil
		m.logger.Infof("browser closed")
	}

	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
	}

	return nil
}
