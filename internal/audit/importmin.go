package audit

import (
	"sort"

	"github.com/armon/go-radix"
)

// SourceSnapshot is one foreign source's current (freshly fetched) state:
// its audits per package and its criteria table, keyed the same way as
// AuditsFile/CriteriaEntry in the store.
type SourceSnapshot struct {
	Name     string
	Audits   map[PackageName][]AuditEntry
	Criteria map[CriteriaName]CriteriaEntry
	Exclude  []PackageName
}

// excludeIndex wraps a radix tree over a source's exclude list, mirroring
// golang-dep's typed_radix.go pattern of wrapping armon/go-radix so callers
// never type-assert at call sites.
type excludeIndex struct{ t *radix.Tree }

func newExcludeIndex(names []PackageName) excludeIndex {
	t := radix.New()
	for _, n := range names {
		t.Insert(string(n), struct{}{})
	}
	return excludeIndex{t: t}
}

func (x excludeIndex) excluded(p PackageName) bool {
	_, ok := x.t.Get(string(p))
	return ok
}

// MinimizerInput bundles a resolver run's outcome with the previous lock
// and the fresh remote state needed to decide the next imports-lock.toml.
type MinimizerInput struct {
	// UsedEdges is, per package, the edges Search actually used (from
	// SearchResult.Support). Local edges may be present; only edges whose
	// Source names the source being minimized are matched against it.
	UsedEdges map[PackageName][]Edge
	// ProjectPackages is every third-party package the project needs,
	// regardless of whether its resolution used any imported edge — rule 2
	// requires including violations that merely touch a project package.
	ProjectPackages map[PackageName]bool
	Previous        map[string]SourceSnapshotLock // by source name
	Fresh           map[string]SourceSnapshot     // by source name
	ForceUpdates    bool
	AcceptChanges   bool
}

// SourceSnapshotLock is the on-disk shape of one source inside
// imports-lock.toml: the last accepted audits/criteria plus the locked
// description text used to detect upstream changes.
type SourceSnapshotLock struct {
	Audits      map[PackageName][]AuditEntry
	Criteria    map[CriteriaName]CriteriaEntry
	Descriptions map[CriteriaName]string
}

// MinimizeImports implements spec §4.7. It returns the next imports-lock.toml
// content, one SourceSnapshotLock per source that contributed anything.
func MinimizeImports(in MinimizerInput) (map[string]SourceSnapshotLock, error) {
	next := map[string]SourceSnapshotLock{}

	for name, snap := range in.Fresh {
		excl := newExcludeIndex(snap.Exclude)
		prev, hadPrev := in.Previous[name]

		selected := map[PackageName]map[string]AuditEntry{} // package -> identity key -> entry, preserving stability
		order := map[PackageName][]string{}

		// keepStable adds e under its identity key (kind + delta/violation +
		// criteria + who), ignoring Notes/AggregatedFrom/IsFreshImport. Rule 7
		// requires that an edge already carried forward from the previous
		// lock stay exactly as it was; keying on the full sortKey (which
		// includes Notes) would let a fresh snapshot's reworded copy of the
		// same edge slip past the "already selected" check and get appended
		// as a second entry.
		keepStable := func(pkg PackageName, e AuditEntry) {
			if selected[pkg] == nil {
				selected[pkg] = map[string]AuditEntry{}
			}
			k := e.identityKey()
			if _, ok := selected[pkg][k]; ok {
				return
			}
			selected[pkg][k] = e
			order[pkg] = append(order[pkg], k)
		}

		// Rule 7 (stability): anything already in the previous lock that
		// rules 1-3 would still select is kept exactly as it was, without
		// re-sorting or re-spanning against the fresh snapshot.
		stableCandidate := func(pkg PackageName, e AuditEntry) bool {
			if excl.excluded(pkg) {
				return false
			}
			if e.Kind == KindViolation {
				return in.ProjectPackages[pkg]
			}
			for _, used := range in.UsedEdges[pkg] {
				if used.Source != name {
					continue
				}
				if edgeMatchesEntry(used, e) {
					return true
				}
			}
			return false
		}

		if hadPrev {
			for pkg, entries := range prev.Audits {
				for _, e := range entries {
					if stableCandidate(pkg, e) {
						keepStable(pkg, e)
					}
				}
			}
		}

		// Rule 1-3: add every used audit and every project-touching
		// violation from the fresh snapshot that wasn't already carried
		// forward above.
		for pkg, entries := range snap.Audits {
			if excl.excluded(pkg) {
				continue
			}
			for _, e := range entries {
				if e.Kind == KindViolation {
					if in.ProjectPackages[pkg] {
						keepStable(pkg, e)
					}
					continue
				}
				for _, used := range in.UsedEdges[pkg] {
					if used.Source == name && edgeMatchesEntry(used, e) {
						keepStable(pkg, e)
					}
				}
			}
		}

		// Rule 5: force_updates pulls in the entire current snapshot.
		if in.ForceUpdates {
			for pkg, entries := range snap.Audits {
				if excl.excluded(pkg) {
					continue
				}
				for _, e := range entries {
					keepStable(pkg, e)
				}
			}
		}

		if len(selected) == 0 {
			continue
		}

		lock := SourceSnapshotLock{
			Audits:       map[PackageName][]AuditEntry{},
			Criteria:     map[CriteriaName]CriteriaEntry{},
			Descriptions: map[CriteriaName]string{},
		}
		for pkg, keys := range order {
			for _, k := range keys {
				lock.Audits[pkg] = append(lock.Audits[pkg], selected[pkg][k])
			}
		}

		// Rule 3: include every criteria-table entry referenced by any
		// included audit.
		referenced := map[CriteriaName]bool{}
		for _, entries := range lock.Audits {
			for _, e := range entries {
				for _, c := range e.Criteria {
					referenced[c] = true
				}
			}
		}
		for c := range referenced {
			if entry, ok := snap.Criteria[c]; ok {
				lock.Criteria[c] = entry
				// Rule 4: surface a description change rather than
				// silently rewriting it.
				oldDesc, hadOld := descriptionOf(prev, c, hadPrev)
				newDesc := entry.Description
				if hadOld && oldDesc != newDesc && !in.AcceptChanges {
					return nil, &CriteriaChangeError{Source: name, Criteria: c, Old: oldDesc, New: newDesc}
				}
				lock.Descriptions[c] = newDesc
			}
		}

		next[name] = lock
	}

	return next, nil
}

func descriptionOf(prev SourceSnapshotLock, c CriteriaName, hadPrev bool) (string, bool) {
	if !hadPrev {
		return "", false
	}
	d, ok := prev.Descriptions[c]
	return d, ok
}

// identityKey groups an audit entry by the edge it represents — kind, the
// delta/violation it covers, criteria, and reviewers — deliberately
// excluding Notes (and AggregatedFrom/IsFreshImport), so a source that
// merely rewords an entry's notes is still recognized as "the same edge"
// by the stability pass. Contrast with sortKey, which includes Notes
// because storage dedup (spec §3/§9) treats two entries differing only in
// notes as distinct.
func (e AuditEntry) identityKey() string {
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
	return s
}

// edgeMatchesEntry reports whether a Search-reported edge corresponds to
// the given on-disk audit entry (same delta/full shape and criteria).
func edgeMatchesEntry(e Edge, entry AuditEntry) bool {
	if entry.Kind == KindViolation {
		return false
	}
	if !e.To.Equal(entry.Delta.To) {
		return false
	}
	if entry.Delta.From == nil {
		return e.From.IsRoot()
	}
	return e.From.Equal(*entry.Delta.From)
}
