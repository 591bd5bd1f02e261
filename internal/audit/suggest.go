package audit

import "sort"

// DiffLookup fetches (or recalls from cache) the DiffStat between two
// versions of a package. It is supplied by the caller (cmd/vet serves it
// from the store's persisted diff cache); a returned error degrades that
// single suggestion to "no suggestion" rather than failing the whole
// engine (spec §4.9).
type DiffLookup func(pkg PackageName, from, to Version) (DiffStat, error)

// SuggestedAudit is one candidate audit the suggestion engine proposes to
// close a package's missing criteria.
type SuggestedAudit struct {
	Package    PackageName
	Anchor     Version // root, for a proposed full audit
	Target     Version
	Criteria   []CriteriaName
	Diff       DiffStat
	Confident  bool // anchor is a real audited (non-exemption, non-root) version
}

// SuggestionGroup bundles every suggestion that needs exactly the same
// criteria list, per spec §4.6 step 4.
type SuggestionGroup struct {
	Criteria    []CriteriaName
	Suggestions []SuggestedAudit
}

// Suggestion is the suggestion engine's full output for a resolver run.
type Suggestion struct {
	All        []SuggestedAudit
	ByCriteria []SuggestionGroup
	TotalLines int
}

// anchorCandidates returns every version the resolver already has some
// trust data for (from the graph's edges) that satisfies at least one of
// the missing criteria, plus root, per spec §4.6 step 1.
func anchorCandidates(g *Graph, reach map[string]CriteriaSet, missing CriteriaSet) []Version {
	seen := map[string]bool{Root.String(): true}
	out := []Version{Root}
	for _, e := range g.Edges {
		key := e.To.String()
		if seen[key] {
			continue
		}
		if trust, ok := reach[key]; ok && trust.Intersects(missing) {
			seen[key] = true
			out = append(out, e.To)
		}
	}
	return out
}

// isConfidentAnchor reports whether u is a real audited version: not root,
// and reached via at least one non-exemption edge.
func isConfidentAnchor(g *Graph, u Version) bool {
	if u.IsRoot() {
		return false
	}
	for _, e := range g.Edges {
		if e.To.Equal(u) && e.Kind != EdgeExemption {
			return true
		}
	}
	return false
}

// Suggest implements spec §4.6 for one failed package. reach is the map of
// version-key -> trust produced by the search that failed (used to find
// anchors); missingNames is the gap between required and Trust.
func Suggest(g *Graph, target Version, missingNames []CriteriaName, reach map[string]CriteriaSet, lattice *Lattice, diff DiffLookup) ([]SuggestedAudit, error) {
	missing, err := lattice.SetOf(missingNames)
	if err != nil {
		return nil, err
	}

	anchors := anchorCandidates(g, reach, missing)

	type scored struct {
		s        SuggestedAudit
		ds       DiffStat
		anchorV  Version
	}
	var candidates []scored
	for _, u := range anchors {
		stat, err := diff(g.Package, u, target)
		if err != nil {
			// Per spec §4.9, a diffstat failure for one pair doesn't
			// prevent suggestions for others; just skip this anchor.
			continue
		}
		candidates = append(candidates, scored{
			s: SuggestedAudit{
				Package:   g.Package,
				Anchor:    u,
				Target:    target,
				Criteria:  missingNames,
				Diff:      stat,
				Confident: isConfidentAnchor(g, u),
			},
			ds:      stat,
			anchorV: u,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ds.Count() != candidates[j].ds.Count() {
			return candidates[i].ds.Count() < candidates[j].ds.Count()
		}
		// Tie-break: anchor closer in semver order (larger = closer to
		// target), then smaller version.
		ci, oki := candidates[i].anchorV.Cmp(candidates[j].anchorV)
		if oki && ci != 0 {
			return ci > 0
		}
		return candidates[i].anchorV.Less(candidates[j].anchorV)
	})

	out := make([]SuggestedAudit, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.s)
	}
	return out, nil
}

// GroupByCriteria implements spec §4.6 step 4: bucket suggestions by their
// exact required criteria list and compute the total-lines metric.
func GroupByCriteria(all []SuggestedAudit) Suggestion {
	groups := map[string]*SuggestionGroup{}
	var order []string
	total := 0
	for _, s := range all {
		total += s.Diff.Count()
		key := criteriaKey(s.Criteria)
		g, ok := groups[key]
		if !ok {
			g = &SuggestionGroup{Criteria: s.Criteria}
			groups[key] = g
			order = append(order, key)
		}
		g.Suggestions = append(g.Suggestions, s)
	}
	sort.Strings(order)
	out := Suggestion{All: all, TotalLines: total}
	for _, k := range order {
		out.ByCriteria = append(out.ByCriteria, *groups[k])
	}
	return out
}

func criteriaKey(names []CriteriaName) string {
	sorted := append([]CriteriaName{}, names...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	s := ""
	for _, n := range sorted {
		s += string(n) + ","
	}
	return s
}
