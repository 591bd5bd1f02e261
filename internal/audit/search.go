package audit

// SearchResult is the outcome of propagating criteria across a package's
// audit graph to a target version.
type SearchResult struct {
	// Trust is the criteria set reachable at the target version with
	// violations applied.
	Trust CriteriaSet
	// RawTrust is the criteria set that would be reachable ignoring every
	// violation, used by the conflict detector to notice when a violation
	// actually changed the outcome.
	RawTrust CriteriaSet
	// Support lists the edges into the target version that added to its
	// trust during propagation (their union, restricted to what's actually
	// reachable, produced Trust). Used by the outcome classification
	// (vettedKindFor) and the import minimizer to know which audits were
	// load-bearing.
	Support []Edge
	// Reach is the full per-version trust map this search converged to,
	// keyed by Version.String(). The suggestion engine uses it to find
	// anchor candidates beyond just the target version.
	Reach map[string]CriteriaSet
}

// Search implements spec §4.3's multi-label shortest-criteria-set
// propagation. It is not a single-source shortest path: every reachable
// version accumulates the union of every way of reaching it, and the
// search runs to a fixed point over the whole graph rather than stopping
// once the target is first touched.
//
// includeFresh controls whether edges marked Fresh participate; callers
// implement the "required or force_updates" admission rule from spec §4.3
// by calling Search twice (once excluding, once including fresh edges) and
// only adopting the latter when it is actually needed.
func Search(g *Graph, target Version, lattice *Lattice, includeFresh bool) SearchResult {
	raw := propagate(g, lattice, includeFresh, nil)
	violated := violationCriteriaByVersion(g, lattice)
	final := propagate(g, lattice, includeFresh, violated)

	return SearchResult{
		Trust:    final.reach[target.String()],
		RawTrust: raw.reach[target.String()],
		Support:  final.support[target.String()],
		Reach:    final.reach,
	}
}

type propagation struct {
	reach   map[string]CriteriaSet
	support map[string][]Edge
}

// violationCriteriaByVersion precomputes, for every version mentioned by an
// edge target, the union of criteria any violation forbids there. Because
// edge labels are static (they don't depend on reach), reducing an edge's
// effective criteria by this amount up front and propagating once is
// equivalent to propagating raw, then reducing and re-propagating as spec
// §4.3 describes step-by-step.
func violationCriteriaByVersion(g *Graph, lattice *Lattice) func(v Version) CriteriaSet {
	targets := map[string]Version{Root.String(): Root}
	for _, e := range g.Edges {
		targets[e.To.String()] = e.To
	}
	cache := make(map[string]CriteriaSet, len(targets))
	for key, v := range targets {
		var set CriteriaSet
		for _, viol := range g.Violations {
			if viol.Req.Matches(v) {
				set = set.Union(viol.Criteria)
			}
		}
		cache[key] = set
	}
	_ = lattice
	return func(v Version) CriteriaSet { return cache[v.String()] }
}

func propagate(g *Graph, lattice *Lattice, includeFresh bool, violated func(Version) CriteriaSet) propagation {
	out := make(map[string][]Edge)
	for _, e := range g.Edges {
		if e.Fresh && !includeFresh {
			continue
		}
		out[e.From.String()] = append(out[e.From.String()], e)
	}

	reach := map[string]CriteriaSet{Root.String(): lattice.Full()}
	support := make(map[string][]Edge)

	// Worklist seeded with every edge out of root, drained in insertion
	// order (spec §5: "worklist drained in insertion order").
	var work []Edge
	work = append(work, out[Root.String()]...)
	queued := make(map[string]bool)
	queueKey := func(e Edge) string { return e.From.String() + "->" + e.To.String() + "|" + e.Source }
	for _, e := range work {
		queued[queueKey(e)] = true
	}

	for len(work) > 0 {
		e := work[0]
		work = work[1:]
		delete(queued, queueKey(e))

		label := e.Criteria
		if violated != nil {
			label = label.Subtract(violated(e.To))
		}
		fromReach := reach[e.From.String()]
		candidate := fromReach.Intersect(label)
		cur := reach[e.To.String()]
		merged := cur.Union(candidate)
		if merged.Equal(cur) {
			continue
		}
		reach[e.To.String()] = merged
		support[e.To.String()] = append(support[e.To.String()], e)

		for _, next := range out[e.To.String()] {
			k := queueKey(next)
			if !queued[k] {
				queued[k] = true
				work = append(work, next)
			}
		}
	}

	return propagation{reach: reach, support: support}
}
