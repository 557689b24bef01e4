// Package semver matches package versions against npm-style range expressions.
//
// This is a thin wrapper around github.com/Masterminds/semver/v3 that adds the
// OR-range policy used by the installer.
//
// Supported constraint forms:
//   - caret and tilde: "^4.1.0", "~1.2"
//   - comparators: ">=1.0.0 <2.0.0", "=1.2.3", "!=1.0.0"
//   - hyphen ranges: "1.2.3 - 2.3.4"
//   - wildcards: "1.x", "1.2.*", "*" and the empty constraint
//   - alternatives: "^1.0.0 || ^2.0.0" (see [ORPolicy])
package semver

import (
	"fmt"
	"slices"
	"strings"

	mm "github.com/Masterminds/semver/v3"

	"github.com/matzehuels/nary/pkg/errors"
)

// ORPolicy decides how "a || b" constraints are matched.
type ORPolicy string

const (
	// PolicyLast matches only the last alternative of an OR-composed range.
	PolicyLast ORPolicy = "last"
	// PolicyUnion matches a version against any alternative.
	PolicyUnion ORPolicy = "union"
)

// DefaultPolicy is the policy used by [ParseRange].
const DefaultPolicy = PolicyLast

// ParsePolicy converts a configuration string into an ORPolicy.
// The empty string selects [DefaultPolicy].
func ParsePolicy(s string) (ORPolicy, error) {
	switch ORPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultPolicy, nil
	case PolicyLast:
		return PolicyLast, nil
	case PolicyUnion:
		return PolicyUnion, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidInput, "unknown OR policy %q (want %q or %q)", s, PolicyLast, PolicyUnion)
	}
}

// Version is a parsed semantic version.
type Version struct {
	v *mm.Version
}

// ParseVersion parses raw as a semantic version.
// Failures carry [errors.ErrCodeVersionParse].
func ParseVersion(raw string) (Version, error) {
	v, err := mm.NewVersion(raw)
	if err != nil {
		return Version{}, errors.Wrap(errors.ErrCodeVersionParse, err, "parse version %q", raw)
	}
	return Version{v: v}, nil
}

// String returns the version as originally written.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

// Compare compares a and b, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
func Compare(a, b Version) int {
	if a.v == nil && b.v == nil {
		return 0
	}
	if a.v == nil {
		return -1
	}
	if b.v == nil {
		return 1
	}
	return a.v.Compare(b.v)
}

// SortDescending parses raw and returns the versions highest first.
// The first unparsable entry aborts with a version parse error.
func SortDescending(raw []string) ([]Version, error) {
	out := make([]Version, 0, len(raw))
	for _, s := range raw {
		v, err := ParseVersion(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	slices.SortStableFunc(out, func(a, b Version) int { return Compare(b, a) })
	return out, nil
}

// Range is a parsed version constraint.
type Range struct {
	raw       string
	effective string
	c         *mm.Constraints
}

// ParseRange parses constraint with [DefaultPolicy].
func ParseRange(constraint string) (Range, error) {
	return ParseRangeWithPolicy(constraint, DefaultPolicy)
}

// ParseRangeWithPolicy parses constraint, applying policy to OR-composed ranges.
func ParseRangeWithPolicy(constraint string, policy ORPolicy) (Range, error) {
	effective := strings.TrimSpace(constraint)
	if policy != PolicyUnion && strings.Contains(effective, "||") {
		alts := strings.Split(effective, "||")
		effective = strings.TrimSpace(alts[len(alts)-1])
	}
	if effective == "" || effective == "latest" {
		effective = "*"
	}

	c, err := mm.NewConstraint(effective)
	if err != nil {
		return Range{}, fmt.Errorf("semver: parse constraint %q: %w", constraint, err)
	}
	return Range{raw: constraint, effective: effective, c: c}, nil
}

// String returns the constraint as written in the manifest.
func (r Range) String() string { return r.raw }

// Effective returns the expression actually matched after the OR policy.
func (r Range) Effective() string { return r.effective }

// Check reports whether v satisfies the range.
func (r Range) Check(v Version) bool {
	if r.c == nil || v.v == nil {
		return false
	}
	return r.c.Check(v.v)
}

// Test reports whether version satisfies the range.
// An unparsable version never satisfies.
func (r Range) Test(version string) bool {
	v, err := mm.NewVersion(version)
	if err != nil {
		return false
	}
	return r.Check(Version{v: v})
}

// MaxSatisfying returns the highest version in candidates that satisfies r.
//
// If multiple versions are equal, the first encountered wins.
func (r Range) MaxSatisfying(candidates []Version) (Version, bool) {
	var best Version
	found := false
	for _, candidate := range candidates {
		if !r.Check(candidate) {
			continue
		}
		if !found || Compare(candidate, best) > 0 {
			best = candidate
			found = true
		}
	}
	return best, found
}
