// Package audit implements the audit resolver: the criteria lattice, the
// per-package audit graph, the multi-criteria search over it, and the
// suggestion/import-minimization/exemption passes built on top of a search
// outcome.
package audit

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Version is a semantic version with an optional opaque git revision
// suffix, or the synthetic root version that every full audit and
// exemption originates from.
//
// Two versions with the same semver core but differing git-rev suffixes are
// distinct graph nodes and are incomparable except by equality: a reviewer
// who audited the published 1.2.3 has said nothing about a vendored
// 1.2.3@git:deadbeef.
type Version struct {
	root   bool
	sv     *semver.Version
	gitRev string
}

// Root is the synthetic origin node of every package's audit graph.
var Root = Version{root: true}

// ParseVersion parses "1.2.3" or "1.2.3@git:<rev>".
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, errors.New("empty version")
	}
	core, rev, hasRev := strings.Cut(s, "@git:")
	sv, err := semver.NewVersion(core)
	if err != nil {
		return Version{}, errors.Wrapf(err, "parsing version %q", s)
	}
	v := Version{sv: sv}
	if hasRev {
		if rev == "" {
			return Version{}, errors.Errorf("empty git revision in %q", s)
		}
		v.gitRev = rev
	}
	return v, nil
}

// MustParseVersion is ParseVersion for callers certain the input is
// well-formed, such as test fixtures.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsRoot reports whether v is the synthetic root node.
func (v Version) IsRoot() bool { return v.root }

func (v Version) String() string {
	if v.root {
		return "(root)"
	}
	if v.gitRev != "" {
		return fmt.Sprintf("%s@git:%s", v.sv, v.gitRev)
	}
	return v.sv.String()
}

// Equal reports whether v and o denote the same graph node.
func (v Version) Equal(o Version) bool {
	if v.root || o.root {
		return v.root == o.root
	}
	return v.sv.Equal(o.sv) && v.gitRev == o.gitRev
}

// Cmp orders v against o. ok is false when the two versions have the same
// semver core but differ in git-rev presence or value, meaning they are
// incomparable under the spec's total order rather than merely unequal.
// Root sorts below every real version.
func (v Version) Cmp(o Version) (cmp int, ok bool) {
	if v.root && o.root {
		return 0, true
	}
	if v.root {
		return -1, true
	}
	if o.root {
		return 1, true
	}
	c := v.sv.Compare(o.sv)
	if c != 0 {
		return c, true
	}
	if v.gitRev == o.gitRev {
		return 0, true
	}
	return 0, false
}

// Less provides a stable total order for serialization and deterministic
// iteration, distinct from the (partial) comparability used by graph
// search: versions that Cmp finds incomparable still need a consistent
// disk order, broken here by comparing the git-rev suffix lexically.
func (v Version) Less(o Version) bool {
	if v.root != o.root {
		return v.root
	}
	if v.root {
		return false
	}
	if c := v.sv.Compare(o.sv); c != 0 {
		return c < 0
	}
	return v.gitRev < o.gitRev
}

// VersionReq is a semver range used by Violation entries to match a set of
// versions.
type VersionReq struct {
	raw string
	c   *semver.Constraints
}

// ParseVersionReq parses a semver constraint expression such as "^1.2" or
// ">=1.0.0, <2.0.0".
func ParseVersionReq(s string) (VersionReq, error) {
	c, err := semver.NewConstraint(s)
	if err != nil {
		return VersionReq{}, errors.Wrapf(err, "parsing version requirement %q", s)
	}
	return VersionReq{raw: s, c: c}, nil
}

func (r VersionReq) String() string { return r.raw }

// Equal compares requirements by their original source text, letting
// reflection-based comparisons (go-cmp, etc.) treat VersionReq as a value
// type despite the unexported parsed constraint.
func (r VersionReq) Equal(o VersionReq) bool { return r.raw == o.raw }

// Matches reports whether v satisfies the requirement. Root never matches
// any requirement: violations and policies describe real published
// versions only.
func (r VersionReq) Matches(v Version) bool {
	if v.root {
		return false
	}
	return r.c.Check(v.sv)
}

// Delta is "V" (a full audit from root) when From is nil, or "V1 -> V2"
// otherwise.
type Delta struct {
	From *Version
	To   Version
}

// ParseDelta implements the wire format from spec §6: "V" denotes a full
// audit from root, "V1 -> V2" denotes a delta between two versions.
func ParseDelta(s string) (Delta, error) {
	if from, to, ok := strings.Cut(s, "->"); ok {
		fv, err := ParseVersion(strings.TrimSpace(from))
		if err != nil {
			return Delta{}, err
		}
		tv, err := ParseVersion(strings.TrimSpace(to))
		if err != nil {
			return Delta{}, err
		}
		return Delta{From: &fv, To: tv}, nil
	}
	tv, err := ParseVersion(strings.TrimSpace(s))
	if err != nil {
		return Delta{}, err
	}
	return Delta{To: tv}, nil
}

func (d Delta) String() string {
	if d.From == nil {
		return d.To.String()
	}
	return fmt.Sprintf("%s -> %s", d.From, d.To)
}

// IsFull reports whether the delta denotes a full audit from root.
func (d Delta) IsFull() bool { return d.From == nil }
