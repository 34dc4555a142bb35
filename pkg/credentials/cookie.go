// Package credentials persists the one authentication-state snapshot the tool
// keeps: the browser's cookie set, in Playwright's storage format.
package credentials

import (
	"encoding/json"
	"strings"
)

// SameSite is a cookie's cross-site policy.
type SameSite string

const (
	SameSiteLax    SameSite = "Lax"
	SameSiteStrict SameSite = "Strict"
	SameSiteNone   SameSite = "None"
)

// NormalizeSameSite maps any spelling a browser or export tool produces onto
// the three values Playwright accepts. Anything unrecognised, including the
// Chrome extension values "unspecified" and "no_restriction", becomes Lax.
func NormalizeSameSite(raw string) SameSite {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return SameSiteStrict
	case "none":
		return SameSiteNone
	default:
		return SameSiteLax
	}
}

// UnmarshalJSON accepts null, empty and any-case values.
func (s *SameSite) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Non-string values (numbers, objects) fall back like unknown strings do.
		*s = SameSiteLax
		return nil
	}
	if raw == nil {
		*s = SameSiteLax
		return nil
	}
	*s = NormalizeSameSite(*raw)
	return nil
}

// Cookie is one record of the snapshot.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`

	// Expires is a Unix timestamp in seconds; -1 marks a session cookie.
	Expires  float64  `json:"expires"`
	HTTPOnly bool     `json:"httpOnly"`
	Secure   bool     `json:"secure"`
	SameSite SameSite `json:"sameSite"`
}

// normalize fills the defaults Playwright requires.
func (c *Cookie) normalize() {
	if c.Path == "" {
		c.Path = "/"
	}
	if c.SameSite == "" {
		c.SameSite = SameSiteLax
	}
	c.SameSite = NormalizeSameSite(string(c.SameSite))
}
