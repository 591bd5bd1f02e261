package audit

// RegenerateInput bundles what the exemption regenerator needs: per
// failing package, the target version and the missing criteria a new
// exemption must cover, plus any existing exemptions (to prefer reusing
// their version and to preserve pinned ones verbatim).
type RegenerateInput struct {
	Failures  []VetFailure
	Existing  map[PackageName][]Exemption
}

// Regenerate implements spec §4.8: recompute config.exemptions so the
// outcome becomes Success with minimal exemption footprint. Exemptions
// with Suggest=false are preserved verbatim and never dropped or widened;
// every other exemption is recomputed from scratch against the supplied
// failures, preferring to extend an existing version's criteria list over
// introducing a new version.
func Regenerate(in RegenerateInput) map[PackageName][]Exemption {
	out := map[PackageName][]Exemption{}

	// Pinned exemptions always survive untouched, regardless of whether
	// they're still needed.
	for pkg, exs := range in.Existing {
		for _, e := range exs {
			if !e.Suggest {
				out[pkg] = append(out[pkg], e)
			}
		}
	}

	failByPkg := map[PackageName][]VetFailure{}
	for _, f := range in.Failures {
		failByPkg[f.Package] = append(failByPkg[f.Package], f)
	}

	for pkg, fails := range failByPkg {
		for _, f := range fails {
			if exemptionCovers(out[pkg], f) {
				continue
			}
			// Prefer reusing an existing (non-pinned) exemption at this
			// version if one exists, extending its criteria with the
			// missing ones rather than introducing a new entry.
			if idx := existingSuggestableIndex(in.Existing[pkg], f.Version); idx >= 0 {
				prior := in.Existing[pkg][idx]
				out[pkg] = append(out[pkg], Exemption{
					Version:  f.Version,
					Criteria: unionCriteriaNames(prior.Criteria, f.Missing),
					Suggest:  true,
					Notes:    prior.Notes,
				})
				continue
			}
			out[pkg] = append(out[pkg], Exemption{
				Version:  f.Version,
				Criteria: f.Missing,
				Suggest:  true,
			})
		}
	}

	return out
}

func exemptionCovers(exs []Exemption, f VetFailure) bool {
	for _, e := range exs {
		if !e.Version.Equal(f.Version) {
			continue
		}
		have := map[CriteriaName]bool{}
		for _, c := range e.Criteria {
			have[c] = true
		}
		covered := true
		for _, m := range f.Missing {
			if !have[m] {
				covered = false
				break
			}
		}
		if covered {
			return true
		}
	}
	return false
}

func existingSuggestableIndex(exs []Exemption, v Version) int {
	for i, e := range exs {
		if e.Suggest && e.Version.Equal(v) {
			return i
		}
	}
	return -1
}

func unionCriteriaNames(a, b []CriteriaName) []CriteriaName {
	seen := map[CriteriaName]bool{}
	var out []CriteriaName
	for _, c := range append(append([]CriteriaName{}, a...), b...) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
