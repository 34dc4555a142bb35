// Package browser is the remote surface adapter: it drives the single browser
// tab a run owns through Playwright.
//
// # Lifecycle
//
//  1. Manager.Initialize starts the Playwright driver (downloading the bundled
//     Chromium only when no system channel such as msedge or chrome is used).
//  2. Manager.Launch starts the browser with a desktop user agent, a 1920x1080
//     viewport, muted audio and the automation blink feature disabled, and
//     opens one tab.
//  3. The watch loop, playback monitor and session validator borrow the
//     returned *Session; none of them closes it.
//  4. Manager.Shutdown tears everything down.
//
// # Absence versus failure
//
// Lookups that may legitimately find nothing return a present flag instead of
// an error: TextContent, WaitForSelector (timeouts) and ClickButton. Every
// other Playwright error is returned wrapped, and closed-target errors are
// additionally tagged with failure.ErrSurfaceClosed so the caller can stop the
// run cleanly when the operator closes the window.
//
// # Example Usage
//
//	manager := browser.NewManager(logger)
//	if err := manager.Initialize("msedge"); err != nil { ... }
//	defer manager.Shutdown()
//
//	session, err := manager.Launch(browser.SessionOptions{Channel: "msedge"})
//	err = session.Navigate("https://moodle.example.edu/my/", browser.NavigateOptions{
//	    WaitUntil: browser.WaitNetworkIdle,
//	})
package browser
