// Package locale resolves the active UI locale for a request. The
// dashboard is served under a locale path prefix, so the gateway needs
// the same notion of "supported locale" as the web frontend.
package locale

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

const (
	// QueryParam selects a locale explicitly, overriding the cookie.
	QueryParam = "lang"
	// CookieName stores the user's locale preference.
	CookieName = "locale"
)

// Set is an immutable collection of supported locales with a matcher.
// The first supported tag is the default.
type Set struct {
	tags    []language.Tag
	canon   []string
	matcher language.Matcher
}

// NewSet parses the supported locale identifiers (BCP 47, e.g. "en",
// "de", "pt-BR"). The first entry becomes the default locale.
func NewSet(supported []string) (*Set, error) {
	if len(supported) == 0 {
		return nil, fmt.Errorf("no supported locales configured")
	}

	tags := make([]language.Tag, 0, len(supported))
	canon := make([]string, 0, len(supported))
	for _, s := range supported {
		tag, err := language.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parsing locale %q: %w", s, err)
		}
		tags = append(tags, tag)
		canon = append(canon, tag.String())
	}

	return &Set{
		tags:    tags,
		canon:   canon,
		matcher: language.NewMatcher(tags),
	}, nil
}

// Default returns the default locale identifier.
func (s *Set) Default() string {
	return s.canon[0]
}

// Supported returns the canonical identifiers of all supported locales.
func (s *Set) Supported() []string {
	out := make([]string, len(s.canon))
	copy(out, s.canon)
	return out
}

// Contains reports whether the given path segment is a supported locale
// identifier. The comparison is case-insensitive so that "/EN/..." is
// recognised the same way browsers normalise tags.
func (s *Set) Contains(segment string) bool {
	if segment == "" {
		return false
	}
	for _, c := range s.canon {
		if strings.EqualFold(c, segment) {
			return true
		}
	}
	return false
}

// Resolve determines the best locale for the request: explicit query
// parameter, then cookie, then Accept-Language, then the default.
func (s *Set) Resolve(r *http.Request) string {
	if r == nil {
		return s.Default()
	}

	if v := strings.TrimSpace(r.URL.Query().Get(QueryParam)); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return s.match(tag)
		}
	}

	if cookie, err := r.Cookie(CookieName); err == nil {
		if tag, err := language.Parse(cookie.Value); err == nil {
			return s.match(tag)
		}
	}

	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			_, idx, _ := s.matcher.Match(tags...)
			return s.canon[idx]
		}
	}

	return s.Default()
}

func (s *Set) match(tag language.Tag) string {
	_, idx, _ := s.matcher.Match(tag)
	return s.canon[idx]
}
