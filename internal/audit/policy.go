package audit

// DepEdge is one dependency relationship from a first-party package onto
// either a third-party package or another first-party package, as reported
// by the external MetadataProvider (spec §1: dependency graph acquisition
// is out of core scope; this is the shape the core consumes).
type DepEdge struct {
	From PackageName
	To   Package
	Dev  bool
}

// ProjectGraph is the dependency graph the resolver walks: every
// first-party package's direct edges, annotated dev/non-dev, plus the set
// of packages that are first-party (implicitly trusted; a policy's
// AuditAsCratesIO setting does not change that).
type ProjectGraph struct {
	Roots      []PackageName
	Edges      []DepEdge
	FirstParty map[PackageName]bool
}

// out returns p's direct dependency edges.
func (g ProjectGraph) out(p PackageName) []DepEdge {
	var es []DepEdge
	for _, e := range g.Edges {
		if e.From == p {
			es = append(es, e)
		}
	}
	return es
}

// reverseTopoOrder returns first-party packages ordered so that every
// package appears after all of its first-party dependents, matching spec
// §4.4 ("the resolver visits them in reverse topological order,
// accumulates demanded criteria, and pushes them onto third-party
// children"). Cycles among first-party packages (unusual, but not
// forbidden) are broken arbitrarily by visit order; they don't affect
// correctness since the criteria sets only grow via union.
func reverseTopoOrder(g ProjectGraph) []PackageName {
	indegree := map[PackageName]int{}
	for p := range g.FirstParty {
		indegree[p] = 0
	}
	for _, e := range g.Edges {
		if g.FirstParty[e.To.Name] {
			indegree[e.To.Name]++
		}
	}
	var queue []PackageName
	for p, d := range indegree {
		if d == 0 {
			queue = append(queue, p)
		}
	}
	var order []PackageName
	visited := map[PackageName]bool{}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if visited[p] {
			continue
		}
		visited[p] = true
		order = append(order, p)
		for _, e := range g.out(p) {
			if g.FirstParty[e.To.Name] {
				indegree[e.To.Name]--
				if indegree[e.To.Name] == 0 {
					queue = append(queue, e.To.Name)
				}
			}
		}
	}
	// Any first-party package not reached (cycle) is appended afterwards,
	// in map iteration order, so every package is still demanded-upon.
	for p := range g.FirstParty {
		if !visited[p] {
			order = append(order, p)
		}
	}
	return order
}

// Demand accumulates, for every package the project needs, the union of
// criteria sets demanded of it by its first-party parents.
type Demand map[PackageName]map[Version][]CriteriaName

func (d Demand) add(pkg PackageName, ver Version, criteria []CriteriaName) {
	if d[pkg] == nil {
		d[pkg] = map[Version][]CriteriaName{}
	}
	d[pkg][ver] = append(d[pkg][ver], criteria...)
}

// ComputeDemand walks the project graph in reverse topological order,
// starting from each root package's own top-level policy criteria, and
// accumulates the criteria demanded of every package it reaches. Run only
// searches the third-party packages among them; first-party packages are
// never searched, whatever their policy's AuditAsCratesIO says.
func ComputeDemand(g ProjectGraph, policies map[PackageName]Policy) Demand {
	demand := Demand{}
	order := reverseTopoOrder(g)
	// Root packages are demanded to satisfy their own policy's top-level
	// criteria by the project itself.
	for _, r := range g.Roots {
		pol := policies[r]
		demand.add(r, Root, pol.DefaultCriteria(false))
	}
	for _, p := range order {
		pol := policies[p]
		for _, e := range g.out(p) {
			req := pol.RequiredFor(e.To.Name, e.Dev)
			demand.add(e.To.Name, e.To.Version, req)
			if g.FirstParty[e.To.Name] {
				// First-party children inherit (by union) everything
				// demanded of the parent. Third-party children receive
				// only req, the direct edge's requirement under p's own
				// policy; the demand accumulated on p is not added to it.
				for _, parentReq := range demand[p] {
					demand.add(e.To.Name, e.To.Version, parentReq)
				}
			}
		}
	}
	return demand
}
