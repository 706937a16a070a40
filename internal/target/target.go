// Package target turns raw scan-list entries into concrete probe endpoints.
package target

import (
	"net/url"
	"strconv"
	"strings"
)

// Target is a resolved scan endpoint. When the input carried no scheme the
// port is ambiguous: Port holds the TLS port and AltPort the plaintext
// fallback. AltPort is zero everywhere else.
type Target struct {
	Host    string
	Port    int
	AltPort int
	Path    string
}

// Valid reports whether resolution produced a usable endpoint. The zero
// Target is the invalid sentinel.
func (t Target) Valid() bool {
	return t.Host != ""
}

// Ambiguous reports whether the input gave no way to pick between the TLS
// and plaintext ports.
func (t Target) Ambiguous() bool {
	return t.AltPort != 0
}

// Resolve parses a raw target string into a Target. It never fails: anything
// unparseable or hostless comes back as the invalid sentinel.
//
// Port selection: an explicit port wins verbatim, then the scheme default
// (http=80, https=443). Scheme-less input gets the ambiguous 443/80 pair,
// TLS port first.
func Resolve(raw string) Target {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}
	}

	// "example.com:443" parses as scheme "example.com" with an opaque part.
	// Re-parse with a placeholder scheme so the host survives.
	if u.Host == "" && !strings.Contains(raw, "://") {
		u, err = url.Parse("//" + raw)
		if err != nil {
			return Target{}
		}
		u.Scheme = ""
	}

	host := u.Hostname()
	if host == "" {
		return Target{}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return Target{}
		}
		return Target{Host: host, Port: n, Path: path}
	}

	switch u.Scheme {
	case "http":
		return Target{Host: host, Port: 80, Path: path}
	case "https":
		return Target{Host: host, Port: 443, Path: path}
	}
	return Target{Host: host, Port: 443, AltPort: 80, Path: path}
}
