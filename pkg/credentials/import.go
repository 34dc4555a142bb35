package credentials

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// exportedCookie is the record shape written by browser cookie-export
// extensions (EditThisCookie, Cookie-Editor and friends).
type exportedCookie struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain"`
	Path           string   `json:"path"`
	ExpirationDate *float64 `json:"expirationDate"`
	HTTPOnly       bool     `json:"httpOnly"`
	Secure         bool     `json:"secure"`
	SameSite       SameSite `json:"sameSite"`
}

// ImportOptions controls Import.
type ImportOptions struct {
	// SiteURL, when set, keeps only cookies that belong to the same
	// registrable domain (eTLD+1) as this URL.
	SiteURL string
}

// Import converts a browser export into snapshot records. Missing paths become
// "/", missing expiry marks a session cookie, and sameSite is normalised.
func Import(r io.Reader, opts ImportOptions) ([]Cookie, error) {
	var exported []exportedCookie
	if err := json.NewDecoder(r).Decode(&exported); err != nil {
		return nil, fmt.Errorf("failed to decode browser cookie export: %w", err)
	}

	site := ""
	if opts.SiteURL != "" {
		u, err := url.Parse(opts.SiteURL)
		if err != nil || u.Hostname() == "" {
			return nil, fmt.Errorf("invalid site URL %q", opts.SiteURL)
		}
		site = registrableDomain(u.Hostname())
	}

	cookies := make([]Cookie, 0, len(exported))
	for _, e := range exported {
		if site != "" && registrableDomain(e.Domain) != site {
			continue
		}

		expires := -1.0
		if e.ExpirationDate != nil {
			expires = *e.ExpirationDate
		}

		c := Cookie{
			Name:     e.Name,
			Value:    e.Value,
			Domain:   e.Domain,
			Path:     e.Path,
			Expires:  expires,
			HTTPOnly: e.HTTPOnly,
			Secure:   e.Secure,
			SameSite: e.SameSite,
		}
		c.normalize()
		cookies = append(cookies, c)
	}

	return cookies, nil
}

// ImportFile reads a browser export from src and saves it into store.
// It returns the number of cookies written.
func ImportFile(src string, store Store, opts ImportOptions) (int, error) {
	file, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open browser cookie export: %w", err)
	}
	defer file.Close()

	cookies, err := Import(file, opts)
	if err != nil {
		return 0, err
	}
	if err := store.Save(cookies); err != nil {
		return 0, err
	}
	return len(cookies), nil
}

func registrableDomain(host string) string {
	host = strings.ToLower(strings.TrimPrefix(host, "."))
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}
