package audit

import "sort"

// PackageName identifies a package across both first- and third-party
// space. Aliasing the bare string, in the same spirit as golang-dep's
// ProjectRoot, clarifies API intent at call sites.
type PackageName string

// Package is a concrete (name, version) pair under audit.
type Package struct {
	Name       PackageName
	Version    Version
	ThirdParty bool
}

// AuditEntryKind tags which of the three AuditEntry shapes is populated.
type AuditEntryKind int

const (
	// KindFull certifies a package at a specific version from scratch.
	KindFull AuditEntryKind = iota
	// KindDelta certifies the diff between two versions, valid only once
	// the "from" version is itself trusted for the same criteria.
	KindDelta
	// KindViolation asserts that a range of versions does NOT satisfy the
	// given criteria, invalidating overlapping audits.
	KindViolation
)

func (k AuditEntryKind) String() string {
	switch k {
	case KindFull:
		return "full"
	case KindDelta:
		return "delta"
	case KindViolation:
		return "violation"
	default:
		return "unknown"
	}
}

// AuditEntry is a single human-performed review record. Exactly one of
// Delta (for Full/Delta) or Violation (for Violation) is meaningful,
// selected by Kind.
type AuditEntry struct {
	Who            []string
	Criteria       []CriteriaName
	Kind           AuditEntryKind
	Delta          Delta      // meaningful when Kind is KindFull or KindDelta
	Violation      VersionReq // meaningful when Kind is KindViolation
	Notes          string
	AggregatedFrom []string
	IsFreshImport  bool
}

// sortKey produces the (kind, criteria, who, notes) tuple spec §3 and §9
// mandate for deduplication/storage ordering, where kind includes the
// version, delta or violation range the entry covers. It is deliberately
// different from on-disk insertion order (preserved for serialization).
func (e AuditEntry) sortKey() string {
	crit := append([]CriteriaName{}, e.Criteria...)
	sort.Slice(crit, func(i, j int) bool { return crit[i] < crit[j] })
	who := append([]string{}, e.Who...)
	sort.Strings(who)
	s := e.Kind.String() + "|"
	if e.Kind == KindViolation {
		s += e.Violation.String()
	} else {
		s += e.Delta.String()
	}
	s += "|"
	for _, c := range crit {
		s += string(c) + ","
	}
	s += "|"
	for _, w := range who {
		s += w + ","
	}
	s += "|" + e.Notes
	return s
}

// SortAuditEntries sorts a package's audit entry list by the canonical
// dedup key, used when persisting a newly minimized or regenerated set.
func SortAuditEntries(entries []AuditEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].sortKey() < entries[j].sortKey()
	})
}

// DedupAuditEntries removes exact duplicates (by sort key), keeping the
// first occurrence, preserving relative order of the remainder.
func DedupAuditEntries(entries []AuditEntry) []AuditEntry {
	seen := make(map[string]bool, len(entries))
	out := entries[:0:0]
	for _, e := range entries {
		k := e.sortKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// Exemption is an operator-asserted, temporary trust for a package version.
type Exemption struct {
	Version  Version
	Criteria []CriteriaName
	// Suggest controls whether `regenerate exemptions` may touch this
	// entry. false pins it: check still honours it, but suggest reruns
	// leave it untouched (spec §3).
	Suggest bool
	Notes   string
}

// DependencyCriteria maps a dependency package name to the criteria that
// must hold for edges into it, overriding the owning policy's default.
type DependencyCriteria map[PackageName][]CriteriaName

// Policy is a first-party package's declaration of what its dependencies
// must satisfy.
type Policy struct {
	AuditAsCratesIO   *bool
	Criteria          []CriteriaName
	DevCriteria       []CriteriaName
	DependencyCriteria DependencyCriteria
}

// DefaultCriteria returns the policy's top-level criteria, defaulting to
// safe-to-deploy (or safe-to-run for dev edges) per spec §4.4.
func (p Policy) DefaultCriteria(dev bool) []CriteriaName {
	if dev {
		if len(p.DevCriteria) > 0 {
			return p.DevCriteria
		}
		return []CriteriaName{SafeToRun}
	}
	if len(p.Criteria) > 0 {
		return p.Criteria
	}
	return []CriteriaName{SafeToDeploy}
}

// RequiredFor returns the criteria required on the edge to dependency dep,
// honouring any per-edge override before falling back to DefaultCriteria.
func (p Policy) RequiredFor(dep PackageName, dev bool) []CriteriaName {
	if c, ok := p.DependencyCriteria[dep]; ok {
		return c
	}
	return p.DefaultCriteria(dev)
}

// CriteriaMapping translates a set of foreign criteria names into the
// local criterion they jointly imply.
type CriteriaMapping struct {
	Ours   CriteriaName
	Theirs []CriteriaName
}

// Import describes one trusted foreign audits source.
type Import struct {
	Name        string
	URL         string
	Exclude     []PackageName
	CriteriaMap []CriteriaMapping
}

// DiffStat summarizes the size of a diff between two fetched trees, used
// by the suggestion engine to rank candidate anchors.
type DiffStat struct {
	Insertions   int
	Deletions    int
	FilesChanged int
}

// Count is the ranking metric: total changed lines.
func (d DiffStat) Count() int { return d.Insertions + d.Deletions }
