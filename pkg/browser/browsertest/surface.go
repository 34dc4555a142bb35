// Package browsertest provides a scripted stand-in for browser.Session.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/coursewatch/pkg/browser"
	"github.com/entrhq/coursewatch/pkg/credentials"
)

// Surface is a scripted remote surface. Zero value is an empty, open tab.
// Every method records a call in Calls ("Navigate <url>", "Evaluate",
// "Click <selector>", ...).
type Surface struct {
	// URL is what CurrentURL returns. Navigate sets it to the target, or to
	// Redirects[target] when present.
	URL       string
	Redirects map[string]string

	// HTML is returned by Content.
	HTML string

	// Texts maps selectors to the text of their first match. Missing
	// selectors are absent.
	Texts map[string]string

	// Attached maps selectors to WaitForSelector results. Missing selectors
	// are absent.
	Attached map[string]bool

	// Buttons maps accessible names to whether ClickButton finds them.
	Buttons map[string]bool

	// EvaluateFunc answers Evaluate; nil returns (nil, nil).
	EvaluateFunc func(expression string, arg interface{}) (interface{}, error)

	// Closed is what IsClosed returns. ClosedAfter, when positive, flips
	// Closed to true once IsClosed has been called that many times.
	Closed      bool
	ClosedAfter int

	// Jar is the cookie jar read by Cookies and extended by AddCookies.
	Jar []credentials.Cookie

	// Errors injects failures by method name ("Navigate", "Content", ...).
	Errors map[string]error

	// OnNavigate runs after every successful Navigate.
	OnNavigate func(s *Surface, url string)

	Calls []string

	isClosedCalls int
}

func (s *Surface) record(format string, args ...interface{}) {
	s.Calls = append(s.Calls, fmt.Sprintf(format, args...))
}

func (s *Surface) fail(method string) error {
	if s.Errors == nil {
		return nil
	}
	return s.Errors[method]
}

// CallCount counts recorded calls starting with prefix.
func (s *Surface) CallCount(prefix string) int {
	n := 0
	for _, c := range s.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Navigate implements the surface contract.
func (s *Surface) Navigate(url string, opts browser.NavigateOptions) error {
	s.record("Navigate %s", url)
	if err := s.fail("Navigate"); err != nil {
		return err
	}
	s.URL = url
	if to, ok := s.Redirects[url]; ok {
		s.URL = to
	}
	if s.OnNavigate != nil {
		s.OnNavigate(s, url)
	}
	return nil
}

// Content implements the surface contract.
func (s *Surface) Content() (string, error) {
	s.record("Content")
	if err := s.fail("Content"); err != nil {
		return "", err
	}
	return s.HTML, nil
}

// CurrentURL implements the surface contract.
func (s *Surface) CurrentURL() string {
	return s.URL
}

// TextContent implements the surface contract.
func (s *Surface) TextContent(selector string) (string, bool, error) {
	s.record("TextContent %s", selector)
	if err := s.fail("TextContent"); err != nil {
		return "", false, err
	}
	text, ok := s.Texts[selector]
	return text, ok, nil
}

// WaitForSelector implements the surface contract.
func (s *Surface) WaitForSelector(selector string, timeout time.Duration) (bool, error) {
	s.record("WaitForSelector %s", selector)
	if err := s.fail("WaitForSelector"); err != nil {
		return false, err
	}
	return s.Attached[selector], nil
}

// Evaluate implements the surface contract.
func (s *Surface) Evaluate(expression string, arg interface{}) (interface{}, error) {
	s.record("Evaluate")
	if err := s.fail("Evaluate"); err != nil {
		return nil, err
	}
	if s.EvaluateFunc == nil {
		return nil, nil
	}
	return s.EvaluateFunc(expression, arg)
}

// Click implements the surface contract.
func (s *Surface) Click(selector string, timeout time.Duration) error {
	s.record("Click %s", selector)
	return s.fail("Click")
}

// ClickButton implements the surface contract.
func (s *Surface) ClickButton(name string) (bool, error) {
	s.record("ClickButton %s", name)
	if err := s.fail("ClickButton"); err != nil {
		return false, err
	}
	return s.Buttons[name], nil
}

// IsClosed implements the surface contract.
func (s *Surface) IsClosed() bool {
	s.isClosedCalls++
	if s.ClosedAfter > 0 && s.isClosedCalls >= s.ClosedAfter {
		s.Closed = true
	}
	return s.Closed
}

// Cookies implements the surface contract.
func (s *Surface) Cookies() ([]credentials.Cookie, error) {
	s.record("Cookies")
	if err := s.fail("Cookies"); err != nil {
		return nil, err
	}
	return append([]credentials.Cookie(nil), s.Jar...), nil
}

// AddCookies implements the surface contract.
func (s *Surface) AddCookies(cookies []credentials.Cookie) error {
	s.record("AddCookies %d", len(cookies))
	if err := s.fail("AddCookies"); err != nil {
		return err
	}
	s.Jar = append(s.Jar, cookies...)
	return nil
}

// Sleeper records requested waits and returns immediately.
type Sleeper struct {
	Waits []time.Duration

	// OnSleep runs after each recorded wait; returning an error aborts it.
	OnSleep func(n int, d time.Duration) error
}

// Sleep satisfies clock.Sleeper.
func (sl *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sl.Waits = append(sl.Waits, d)
	if sl.OnSleep != nil {
		return sl.OnSleep(len(sl.Waits), d)
	}
	return nil
}

// Total sums all recorded waits.
func (sl *Sleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range sl.Waits {
		total += d
	}
	return total
}
