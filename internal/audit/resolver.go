package audit

import "sort"

// RunState names a point in the resolver's run state machine (spec §4.9):
// Loading -> Validating -> Resolving -> (Success | VetFailure |
// ViolationConflict) -> [Suggesting] -> [Minimizing] -> Done. Loading and
// Validating happen in the store/CLI layer before Run is called (parsing
// and lattice construction can fail there); Run itself begins at
// Resolving.
type RunState int

const (
	StateResolving RunState = iota
	StateSuggesting
	StateMinimizing
	StateDone
)

// RunInput is everything the state machine needs for one resolver pass.
type RunInput struct {
	Lattice      *Lattice
	Project      ProjectGraph
	Policies     map[PackageName]Policy
	Graphs       map[PackageName]*Graph
	ForceUpdates bool
}

// Run executes the Resolving stage of the state machine: for every
// third-party package the project demands, at the version(s) it's
// demanded at, search its graph, detect conflicts, and fold the result
// into an Outcome. It does not run the Suggestion engine or Import
// minimizer; callers invoke those explicitly once they have an Outcome and
// (for minimization) a writable run, per spec §4.9's state machine being
// linear but the later stages conditional.
func Run(in RunInput) (Outcome, map[PackageName]map[string]SearchResult) {
	demand := ComputeDemand(in.Project, in.Policies)

	perPackage := map[PackageName]map[string]SearchResult{}
	outcome := Outcome{Conclusion: ConclusionSuccess}

	var pkgs []PackageName
	for pkg := range demand {
		pkgs = append(pkgs, pkg)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i] < pkgs[j] })

	for _, pkg := range pkgs {
		if in.Project.FirstParty[pkg] {
			continue
		}
		g := in.Graphs[pkg]
		if g == nil {
			g = &Graph{Package: pkg}
		}

		var versions []Version
		for v := range demand[pkg] {
			versions = append(versions, v)
		}
		sort.Slice(versions, func(i, j int) bool { return versions[i].Less(versions[j]) })

		perPackage[pkg] = map[string]SearchResult{}
		for _, ver := range versions {
			required, err := in.Lattice.SetOf(demand[pkg][ver])
			if err != nil {
				continue
			}

			res := Search(g, ver, in.Lattice, false)
			if !required.Subset(res.Trust) {
				withFresh := Search(g, ver, in.Lattice, true)
				if required.Subset(withFresh.Trust) {
					res = withFresh
				}
			}
			if in.ForceUpdates {
				res = Search(g, ver, in.Lattice, true)
			}
			perPackage[pkg][ver.String()] = res

			conflicts := DetectConflicts(g, res, required, in.Lattice)
			switch {
			case len(conflicts) > 0:
				outcome.Conclusion = ConclusionFailViolation
				outcome.Conflicts = append(outcome.Conflicts, ViolationConflictError{
					Package: pkg,
					Version: ver,
					Details: conflicts,
				})
			case !required.Subset(res.Trust):
				if outcome.Conclusion == ConclusionSuccess {
					outcome.Conclusion = ConclusionFailVetting
				}
				missing := required.Subtract(res.Trust)
				outcome.Failures = append(outcome.Failures, VetFailure{
					Package: pkg,
					Version: ver,
					Missing: in.Lattice.Names(missing),
				})
			default:
				if outcome.Conclusion == ConclusionSuccess {
					outcome.Success = append(outcome.Success, PackageOutcome{
						Package: pkg,
						Version: ver,
						Vetted:  vettedKindFor(res.Support),
					})
				}
			}
		}
	}

	return outcome, perPackage
}

// RunSuggestions executes the Suggesting stage for a FailVetting outcome.
// A diffstat failure for one anchor never prevents suggestions for
// others (spec §4.9); Suggest simply skips that anchor.
func RunSuggestions(outcome Outcome, graphs map[PackageName]*Graph, perPackage map[PackageName]map[string]SearchResult, lattice *Lattice, diff DiffLookup) Suggestion {
	var all []SuggestedAudit
	for _, f := range outcome.Failures {
		g := graphs[f.Package]
		if g == nil {
			continue
		}
		res, ok := perPackage[f.Package][f.Version.String()]
		if !ok {
			continue
		}
		s, err := Suggest(g, f.Version, f.Missing, res.Reach, lattice, diff)
		if err != nil {
			continue
		}
		all = append(all, s...)
	}
	return GroupByCriteria(all)
}
