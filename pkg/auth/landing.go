package auth

import (
	"fmt"
	"net/url"
	"strings"
)

// authPathPrefixes are path prefixes the portal and its SSO redirect to when
// a session is rejected.
var authPathPrefixes = []string{"/login", "/auth"}

// CompareLanding checks actual against the expected post-authentication URL.
// Scheme, host and path must match; query and fragment are ignored and a
// trailing slash on the path is not significant. The returned error describes
// the mismatch.
func CompareLanding(expected, actual string) error {
	e, err := url.Parse(expected)
	if err != nil {
		return fmt.Errorf("invalid landing URL %q: %w", expected, err)
	}
	a, err := url.Parse(actual)
	if err != nil {
		return fmt.Errorf("unparsable current URL %q: %w", actual, err)
	}

	if !strings.EqualFold(e.Host, a.Host) {
		return fmt.Errorf("redirected to another host: %s", actual)
	}
	if !strings.EqualFold(e.Scheme, a.Scheme) {
		return fmt.Errorf("scheme changed from %s to %s", e.Scheme, a.Scheme)
	}

	ep, ap := normalizePath(e.Path), normalizePath(a.Path)
	if ep == ap {
		return nil
	}
	if isAuthPath(ap) {
		return fmt.Errorf("redirected to login page: %s", actual)
	}
	return fmt.Errorf("landed on %s instead of %s", ap, ep)
}

// MatchLanding reports whether actual is the expected landing URL.
func MatchLanding(expected, actual string) bool {
	return CompareLanding(expected, actual) == nil
}

func normalizePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

func isAuthPath(p string) bool {
	lower := strings.ToLower(p)
	for _, prefix := range authPathPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
