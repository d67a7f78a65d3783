package version

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// BumpKind selects which segment of a semver string to increment.
type BumpKind string

const (
	BumpMajor BumpKind = "major"
	BumpMinor BumpKind = "minor"
	BumpPatch BumpKind = "patch"
)

// InitialSemver is the semver assigned to the first published version,
// regardless of the requested bump kind.
const InitialSemver = "1.0.0"

var ErrInvalidBumpKind = errors.New("invalid bump kind")

// Bump increments current according to kind. An empty current marks a first
// publish and always yields InitialSemver.
func Bump(current string, kind BumpKind) (string, error) {
	if current == "" {
		return InitialSemver, nil
	}

	v, err := semver.StrictNewVersion(current)
	if err != nil {
		return "", fmt.Errorf("invalid semver %q: %w", current, err)
	}

	switch kind {
	case BumpMajor:
		return v.IncMajor().String(), nil
	case BumpMinor:
		return v.IncMinor().String(), nil
	case BumpPatch:
		return v.IncPatch().String(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBumpKind, kind)
	}
}

// ParseBumpKind validates a user-supplied bump kind, defaulting to patch for
// an empty string.
func ParseBumpKind(s string) (BumpKind, error) {
	switch BumpKind(s) {
	case "":
		return BumpPatch, nil
	case BumpMajor, BumpMinor, BumpPatch:
		return BumpKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBumpKind, s)
	}
}

// HighestMatching returns the highest entry of candidates satisfying the
// semver range expression. Candidates that do not parse as semver are
// ignored. The second return is false when nothing matches or the range
// expression itself is invalid.
func HighestMatching(rangeExpr string, candidates []string) (string, bool) {
	constraint, err := semver.NewConstraint(rangeExpr)
	if err != nil {
		return "", false
	}

	matched := make([]*semver.Version, 0, len(candidates))
	for _, c := range candidates {
		v, err := semver.NewVersion(c)
		if err != nil {
			continue
		}
		if constraint.Check(v) {
			matched = append(matched, v)
		}
	}

	if len(matched) == 0 {
		return "", false
	}

	sort.Sort(semver.Collection(matched))

	return matched[len(matched)-1].Original(), true
}

// IsSemverRange reports whether s parses as a semver constraint expression
// (an exact version counts as a constraint).
func IsSemverRange(s string) bool {
	_, err := semver.NewConstraint(s)

	return err == nil
}
