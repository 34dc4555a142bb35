package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/coursewatch/pkg/credentials"
	"github.com/entrhq/coursewatch/pkg/failure"
	"github.com/playwright-community/playwright-go"
)

// Session is the run's single controlled tab. It is not safe for concurrent
// use: Playwright serialises commands per page and the watch loop never issues
// two at once.
type Session struct {
	// Browser is the Playwright browser instance
	Browser playwright.Browser

	// Context is the browser context holding the cookie jar
	Context playwright.BrowserContext

	// Page is the controlled tab
	Page playwright.Page
}

// IsClosed reports whether the tab or the whole browser has gone away.
func (s *Session) IsClosed() bool {
	return s.Page.IsClosed() || !s.Browser.IsConnected()
}

// CurrentURL returns the URL of the loaded document.
func (s *Session) CurrentURL() string {
	return s.Page.URL()
}

// Navigate navigates the tab to url.
func (s *Session) Navigate(url string, opts NavigateOptions) error {
	playwrightOpts := playwright.PageGotoOptions{}

	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if _, err := s.Page.Goto(url, playwrightOpts); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, mapError(err))
	}
	return nil
}

// Content returns the serialized document.
func (s *Session) Content() (string, error) {
	html, err := s.Page.Content()
	if err != nil {
		return "", fmt.Errorf("content read failed: %w", mapError(err))
	}
	return html, nil
}

// TextContent returns the text of the first element matching selector.
// present is false, with a nil error, when nothing matches.
func (s *Session) TextContent(selector string) (text string, present bool, err error) {
	locator := s.Page.Locator(selector)

	count, err := locator.Count()
	if err != nil {
		return "", false, fmt.Errorf("selector query failed: %w", mapError(err))
	}
	if count == 0 {
		return "", false, nil
	}

	text, err = locator.First().TextContent()
	if err != nil {
		return "", false, fmt.Errorf("text extraction failed: %w", mapError(err))
	}
	return text, true, nil
}

// WaitForSelector waits up to timeout for selector to be attached.
// Running out of time is reported as present == false, not as an error.
func (s *Session) WaitForSelector(selector string, timeout time.Duration) (present bool, err error) {
	ms := float64(timeout.Milliseconds())
	_, err = s.Page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: &ms,
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return false, nil
		}
		return false, fmt.Errorf("wait for %s failed: %w", selector, mapError(err))
	}
	return true, nil
}

// Evaluate runs a JavaScript function expression with a single argument and
// returns its JSON-decoded result (nil for null/undefined).
func (s *Session) Evaluate(expression string, arg interface{}) (interface{}, error) {
	result, err := s.Page.Evaluate(expression, arg)
	if err != nil {
		return nil, fmt.Errorf("JavaScript execution failed: %w", mapError(err))
	}
	return result, nil
}

// Click clicks the element matching selector.
func (s *Session) Click(selector string, timeout time.Duration) error {
	ms := float64(timeout.Milliseconds())
	if err := s.Page.Click(selector, playwright.PageClickOptions{Timeout: &ms}); err != nil {
		return fmt.Errorf("click failed: %w", mapError(err))
	}
	return nil
}

// ClickButton clicks the first button whose accessible name is name.
// found is false, with a nil error, when no such button is rendered.
func (s *Session) ClickButton(name string) (found bool, err error) {
	locator := s.Page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
		Name: name,
	})

	count, err := locator.Count()
	if err != nil {
		return false, fmt.Errorf("button lookup failed: %w", mapError(err))
	}
	if count == 0 {
		return false, nil
	}

	if err := locator.First().Click(); err != nil {
		return true, fmt.Errorf("button click failed: %w", mapError(err))
	}
	return true, nil
}

// Cookies snapshots the context's cookie jar.
func (s *Session) Cookies() ([]credentials.Cookie, error) {
	raw, err := s.Context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("cookie read failed: %w", mapError(err))
	}

	cookies := make([]credentials.Cookie, 0, len(raw))
	for _, c := range raw {
		sameSite := credentials.SameSiteLax
		if c.SameSite != nil {
			sameSite = credentials.NormalizeSameSite(string(*c.SameSite))
		}
		cookies = append(cookies, credentials.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
			SameSite: sameSite,
		})
	}
	return cookies, nil
}

// AddCookies loads a snapshot into the context's cookie jar.
func (s *Session) AddCookies(cookies []credentials.Cookie) error {
	optional := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		sameSite := playwright.SameSiteAttribute(credentials.NormalizeSameSite(string(c.SameSite)))
		optional = append(optional, playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   playwright.String(c.Domain),
			Path:     playwright.String(c.Path),
			Expires:  playwright.Float(c.Expires),
			HttpOnly: playwright.Bool(c.HTTPOnly),
			Secure:   playwright.Bool(c.Secure),
			SameSite: &sameSite,
		})
	}

	if err := s.Context.AddCookies(optional); err != nil {
		return fmt.Errorf("cookie load failed: %w", mapError(err))
	}
	return nil
}

// mapError tags Playwright's closed-target errors with failure.ErrSurfaceClosed.
func mapError(err error) error {
	if errors.Is(err, playwright.ErrTargetClosed) && !errors.Is(err, failure.ErrSurfaceClosed) {
		return fmt.Errorf("%w: %w", failure.ErrSurfaceClosed, err)
	}
	return err
}
