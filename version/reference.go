package version

import (
	"errors"
	"strings"
)

// SelectorKind classifies the part after "@" in a reference string.
type SelectorKind string

const (
	// SelectorNamedRef selects through the ref table ("latest", "stable", ...).
	SelectorNamedRef SelectorKind = "ref"
	// SelectorSemverRange selects the highest version matching a range.
	SelectorSemverRange SelectorKind = "range"
)

// Reference is a parsed reference string of the form "name", "name@ref" or
// "name@semverRange". Exact-id references never reach the parser: callers try
// an exact-id lookup first and only parse on miss.
type Reference struct {
	Name     string
	Selector string
	Kind     SelectorKind
}

var ErrInvalidReference = errors.New("invalid reference")

// DefaultRef is the implied selector of a bare canonical name.
const DefaultRef = "latest"

// ParseReference splits a reference string into name and selector. A bare
// name implies "@latest". A selector that parses as a semver constraint is a
// range; anything else is treated as a named ref.
func ParseReference(raw string) (Reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Reference{}, ErrInvalidReference
	}

	name, selector, found := strings.Cut(raw, "@")
	if !found {
		return Reference{Name: raw, Selector: DefaultRef, Kind: SelectorNamedRef}, nil
	}

	if name == "" || selector == "" {
		return Reference{}, ErrInvalidReference
	}

	ref := Reference{Name: name, Selector: selector, Kind: SelectorNamedRef}
	if looksLikeRange(selector) && IsSemverRange(selector) {
		ref.Kind = SelectorSemverRange
	}

	return ref, nil
}

// looksLikeRange filters out plain words like "latest" or "stable" that the
// semver constraint parser would otherwise accept as wildcard-ish input.
func looksLikeRange(selector string) bool {
	return strings.IndexFunc(selector, func(r rune) bool {
		return r >= '0' && r <= '9' || r == '*' || r == 'x' && len(selector) == 1
	}) >= 0
}
