// Package redirect validates caller supplied redirect targets and
// composes same-origin, locale-prefixed redirect URLs. Every post-login
// redirect in the gateway goes through this package; nothing else is
// allowed to build a Location header from user input.
package redirect

import (
	"regexp"
	"strings"

	"github.com/replysuite/session-gateway/internal/locale"
)

// schemePattern matches a URI scheme prefix per RFC 3986 section 3.1.
var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// IsValidPath reports whether p is safe to use as a same-origin redirect
// target. Valid paths start with exactly one "/": a leading "//" is a
// protocol-relative URL and a scheme prefix is an absolute one, both of
// which would leave the origin. Inner "//" sequences are fine.
func IsValidPath(p string) bool {
	if !strings.HasPrefix(p, "/") {
		return false
	}
	if strings.HasPrefix(p, "//") {
		return false
	}
	if schemePattern.MatchString(p) {
		return false
	}

	return true
}

// Builder composes absolute same-origin redirect URLs with a locale
// prefix. Paths that fail validation are replaced with the default
// landing path, so a Builder never emits a cross-origin Location.
type Builder struct {
	origin      string
	locales     *locale.Set
	defaultPath string
}

// NewBuilder creates a Builder. origin is scheme://host[:port] without a
// trailing slash; defaultPath is the authenticated landing page used
// when a target is rejected.
func NewBuilder(origin string, locales *locale.Set, defaultPath string) *Builder {
	return &Builder{
		origin:      strings.TrimSuffix(origin, "/"),
		locales:     locales,
		defaultPath: defaultPath,
	}
}

// Build returns origin + "/" + loc + path for the sanitized path. If the
// path already starts with a supported locale segment the prefix is kept
// as-is rather than doubled; this is the single prefixing rule for the
// whole gateway. Invalid paths, including empty ones, fall back to the
// default landing path.
func (b *Builder) Build(loc, path string) string {
	if !IsValidPath(path) {
		path = b.defaultPath
	}

	if b.localePrefixed(path) {
		return b.origin + path
	}

	if loc == "" || !b.locales.Contains(loc) {
		loc = b.locales.Default()
	}

	return b.origin + "/" + loc + path
}

// DefaultPath returns the configured fallback landing path.
func (b *Builder) DefaultPath() string {
	return b.defaultPath
}

// Origin returns the configured origin.
func (b *Builder) Origin() string {
	return b.origin
}

func (b *Builder) localePrefixed(path string) bool {
	rest := strings.TrimPrefix(path, "/")
	segment, _, _ := strings.Cut(rest, "/")
	return b.locales.Contains(segment)
}
