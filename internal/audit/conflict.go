package audit

// DetectConflicts implements spec §4.5. It is called once per package
// after Search, and covers both halves of the rule:
//
//   (a) resolution succeeded only by using an edge a violation forbade —
//       detected by comparing SearchResult.RawTrust against Trust for the
//       criteria the caller actually needed;
//   (b) a locally recorded audit or exemption falls inside an *imported*
//       violation's range with overlapping criteria, regardless of
//       whether the resolver ever used it.
func DetectConflicts(g *Graph, res SearchResult, required CriteriaSet, lattice *Lattice) []ConflictEdge {
	var conflicts []ConflictEdge

	// (a) Criteria that would have been satisfied without violations, but
	// are required and are not satisfied once violations are applied.
	lost := res.RawTrust.Subtract(res.Trust).Intersect(required)
	if !lost.IsEmpty() {
		for _, e := range g.Edges {
			var removed CriteriaSet
			for _, v := range g.Violations {
				if v.Req.Matches(e.To) && v.Criteria.Intersects(e.Criteria) {
					removed = removed.Union(v.Criteria.Intersect(e.Criteria))
				}
			}
			if removed.Intersects(lost) {
				conflicts = append(conflicts, ConflictEdge{
					From:     e.From,
					To:       e.To,
					Criteria: lattice.Names(removed.Intersect(lost)),
					Source:   e.Source,
				})
			}
		}
	}

	// (b) A locally recorded audit or exemption that falls inside an
	// *imported* violation's range with overlapping criteria is reported
	// verbatim, whether or not it was ever used to derive trust. Scoped to
	// (local edge, imported violation) per spec §4.5(b); a purely local
	// pairing or an imported edge against an imported violation is the
	// foreign source's own internal consistency problem, not ours, and
	// reporting it here would turn an otherwise-unaffected Success into a
	// ViolationConflict over an edge the project never relied on.
	for _, e := range g.Edges {
		if e.Kind == EdgeTrusted || e.Source != "" {
			continue
		}
		for _, v := range g.Violations {
			if v.Source == "" {
				continue
			}
			if v.Req.Matches(e.To) && v.Criteria.Intersects(e.Criteria) {
				conflicts = append(conflicts, ConflictEdge{
					From:     e.From,
					To:       e.To,
					Criteria: lattice.Names(v.Criteria.Intersect(e.Criteria)),
					Source:   e.Source,
				})
			}
		}
	}

	return conflicts
}
