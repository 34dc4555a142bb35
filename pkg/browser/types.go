package browser

// SessionOptions configures the browser launched for a run.
type SessionOptions struct {
	// Channel selects an installed Chromium-family browser: "msedge", "chrome",
	// or "" / "chromium" for Playwright's bundled Chromium.
	Channel string

	// ExecutablePath overrides Channel with an explicit browser binary.
	ExecutablePath string

	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// UserAgent replaces the default automation user agent.
	UserAgent string

	// Timeout sets the default timeout for operations (in milliseconds)
	Timeout float64

	// ExtraArgs are appended to the default launch arguments.
	ExtraArgs []string
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// WaitUntil specifies when to consider navigation successful.
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
)

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	WaitUntil WaitUntil

	// Timeout in milliseconds (0 means default)
	Timeout float64
}

// Default values for the launched browser.
const (
	DefaultTimeout        = 30000.0 // 30 seconds in milliseconds
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// defaultArgs hide the automation flag from page scripts and keep the
// unattended run silent.
var defaultArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--mute-audio",
}
