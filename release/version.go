package release

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses a semantic version string. A leading "v" is
// accepted since tags and config files routinely carry one.
func ParseVersion(version string) (*semver.Version, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", version, err)
	}
	return v, nil
}

// IsNewer reports whether candidate has strictly higher semver precedence
// than current. Update clients only ever move forward; equal and older
// candidates are not updates.
func IsNewer(candidate, current string) (bool, error) {
	cand, err := ParseVersion(candidate)
	if err != nil {
		return false, err
	}
	cur, err := ParseVersion(current)
	if err != nil {
		return false, err
	}
	return cand.GreaterThan(cur), nil
}

// CompareVersions returns -1, 0 or 1 as a is lower than, equal to or
// higher than b in semver precedence.
func CompareVersions(a, b string) (int, error) {
	va, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}
