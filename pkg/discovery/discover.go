// Package discovery finds target links on a listing page.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/entrhq/coursewatch/pkg/browser"
	"github.com/entrhq/coursewatch/pkg/clock"
	"github.com/entrhq/coursewatch/pkg/failure"
)

// Surface is the part of the browser tab discovery needs.
type Surface interface {
	Navigate(url string, opts browser.NavigateOptions) error
	Content() (string, error)
	CurrentURL() string
}

// Discover returns the sorted, de-duplicated absolute URLs of every link in
// html accepted by m. Relative links resolve against pageURL.
func Discover(html, pageURL string, m *Matcher) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	// A <base href> in the document overrides the page URL.
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		ref, err := base.Parse(href)
		if err != nil {
			return
		}
		ref.Fragment = ""
		abs := ref.String()
		if m.Match(href, abs) {
			seen[abs] = struct{}{}
		}
	})

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links, nil
}

// FromSurface opens the listing page in the tab and discovers its links.
func FromSurface(ctx context.Context, surface Surface, listURL string, m *Matcher, settle time.Duration, sleep clock.Sleeper) ([]string, error) {
	if err := failure.Wrap("open listing page", func() error {
		return surface.Navigate(listURL, browser.NavigateOptions{WaitUntil: browser.WaitNetworkIdle})
	}); err != nil {
		return nil, err
	}
	if err := clock.OrDefault(sleep)(ctx, settle); err != nil {
		return nil, err
	}

	html, err := failure.Do("read listing page", surface.Content)
	if err != nil {
		return nil, err
	}

	pageURL := surface.CurrentURL()
	if pageURL == "" {
		pageURL = listURL
	}
	return Discover(html, pageURL, m)
}
