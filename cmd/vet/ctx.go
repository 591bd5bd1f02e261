package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/auditgraph/vet/internal/audit"
	"github.com/auditgraph/vet/internal/fetch"
	"github.com/auditgraph/vet/internal/metadata"
	"github.com/auditgraph/vet/internal/store"
)

// defaultStoreDir is the store directory name looked for when -store isn't
// given, matching cargo-vet's own default.
const defaultStoreDir = "supply-chain"

// manifestName is the project manifest golang-dep would call Gopkg.toml;
// here it names the dependency graph and per-package policy this tool
// audits against.
const manifestName = "project.toml"

// runCtx carries the ambient state every command needs: a logger gated on
// -v, and enough to locate and open a store. It plays the role
// golang-dep's Ctx plays for GOPATH resolution.
type runCtx struct {
	logger *log.Logger
}

// findRoot searches upward from the working directory for dir, the same
// upward-walk LoadProject uses to find Gopkg.toml, stopping at the
// filesystem root.
func findRoot(dir string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "getting working directory")
	}
	cur := wd
	for {
		candidate := filepath.Join(cur, dir)
		if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", errors.Errorf("no %s directory found in %s or any parent", dir, wd)
		}
		cur = parent
	}
}

// openStore resolves the store root (explicit storeFlag, or an upward
// search for defaultStoreDir), takes its lock, and loads its contents. The
// caller must Release the lock once done.
func (c *runCtx) openStore(storeFlag string) (*store.Store, *store.StoreLock, error) {
	root := storeFlag
	if root == "" {
		var err error
		root, err = findRoot(defaultStoreDir)
		if err != nil {
			return nil, nil, err
		}
	}
	lock, err := store.Acquire(root)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Load(root)
	if err != nil {
		lock.Release()
		return nil, nil, err
	}
	return st, lock, nil
}

// openFetchCache opens the persistent FetchCache under the store root,
// wiring a real git-clone Fetcher and diff(1)-backed Differ. epoch is
// typically time.Now().Unix() truncated to a coarse bucket so entries
// survive across runs within the same day but not indefinitely; callers
// that want to force a refetch pass a future epoch.
func (c *runCtx) openFetchCache(storeRoot string, epoch int64, repoURL func(audit.PackageName) string) (*fetch.Cache, error) {
	cacheDir := filepath.Join(storeRoot, ".fetch-cache")
	fetcher := &gitFetcher{
		repoURL: repoURL,
		cacheDir: func(pkg audit.PackageName, ver audit.Version) string {
			return diffCacheSubdir(filepath.Join(cacheDir, "src"), pkg, ver)
		},
	}
	return fetch.Open(cacheDir, epoch, fetcher, lineDiffer{}, c.logger)
}

// loadManifest resolves the project manifest (explicit manifestFlag, or an
// upward search for manifestName from the working directory) and builds
// its ProjectGraph.
func (c *runCtx) loadManifest(manifestFlag string) (metadata.Provider, *audit.ProjectGraph, error) {
	path := manifestFlag
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, nil, errors.Wrap(err, "getting working directory")
		}
		cur := wd
		for {
			candidate := filepath.Join(cur, manifestName)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
			parent := filepath.Dir(cur)
			if parent == cur {
				return nil, nil, errors.Errorf("no %s found in %s or any parent", manifestName, wd)
			}
			cur = parent
		}
	}
	mp, err := metadata.LoadManifest(path)
	if err != nil {
		return nil, nil, err
	}
	graph, err := metadata.BuildProjectGraph(context.Background(), mp)
	if err != nil {
		return nil, nil, err
	}
	return mp, graph, nil
}

// buildLattice constructs the criteria lattice from a store's audits.toml,
// falling back to the built-in safe-to-deploy/safe-to-run pair plus
// whatever custom criteria the store declares.
func buildLattice(st *store.Store) (*audit.Lattice, []audit.CriteriaName, error) {
	entries := map[audit.CriteriaName]audit.CriteriaEntry{}
	for name, e := range st.Audits.Criteria {
		entries[name] = e
	}
	if _, ok := entries[audit.SafeToDeploy]; !ok {
		entries[audit.SafeToDeploy] = audit.CriteriaEntry{Description: "safe to deploy to production", Implies: []audit.CriteriaName{audit.SafeToRun}}
	}
	if _, ok := entries[audit.SafeToRun]; !ok {
		entries[audit.SafeToRun] = audit.CriteriaEntry{Description: "safe to run locally"}
	}
	lattice, err := audit.BuildLattice(entries)
	if err != nil {
		return nil, nil, err
	}
	var names []audit.CriteriaName
	for n := range entries {
		names = append(names, n)
	}
	return lattice, names, nil
}

// buildGraphs assembles one audit.Graph per third-party package the
// project's ProjectGraph mentions, folding in local audits, every trusted
// import's snapshot (translated and excluded per the import's own rules),
// and config exemptions.
func buildGraphs(st *store.Store, proj *audit.ProjectGraph, lattice *audit.Lattice) (map[audit.PackageName]*audit.Graph, error) {
	graphs := map[audit.PackageName]*audit.Graph{}
	needed := map[audit.PackageName]bool{}
	for _, e := range proj.Edges {
		if e.To.ThirdParty {
			needed[e.To.Name] = true
		}
	}

	for pkg := range needed {
		in := audit.BuildInput{
			Package:    pkg,
			Local:      st.Audits.Audits[pkg],
			Imports:    map[string][]audit.AuditEntry{},
			FreshMark:  map[string]bool{},
			Exemptions: st.Config.Exemptions[pkg],
		}
		for name, snap := range st.ImportsLock.Sources {
			imp := st.Config.Imports[name]
			if importExcludes(imp, pkg) {
				continue
			}
			if entries, ok := snap.Audits[pkg]; ok {
				in.Imports[name] = translateImport(imp, entries)
			}
		}
		g, err := audit.BuildGraph(in, lattice)
		if err != nil {
			return nil, errors.Wrapf(err, "building graph for %s", pkg)
		}
		graphs[pkg] = g
	}
	return graphs, nil
}

// mergePolicies overlays the store's config.toml policy declarations over
// the project manifest's own defaults: config.toml is the operator-edited
// surface, so an entry there for a package wins outright over whatever the
// manifest declared for it.
func mergePolicies(manifest, storeOverrides map[audit.PackageName]audit.Policy) map[audit.PackageName]audit.Policy {
	out := map[audit.PackageName]audit.Policy{}
	for pkg, p := range manifest {
		out[pkg] = p
	}
	for pkg, p := range storeOverrides {
		out[pkg] = p
	}
	return out
}

// translateImport applies one import's CriteriaMap to a foreign source's
// audit entries for a single package, per spec §4.2. Exclude is the
// caller's responsibility (importExcludes), applied before an entire
// package's entries ever reach this function — the same "collect edges
// after excludes" ordering MinimizeImports' excludeIndex enforces.
func translateImport(imp audit.Import, entries []audit.AuditEntry) []audit.AuditEntry {
	if len(imp.CriteriaMap) == 0 {
		return entries
	}
	out := make([]audit.AuditEntry, len(entries))
	for i, e := range entries {
		te := e
		te.Criteria = translateCriteria(imp.CriteriaMap, e.Criteria)
		out[i] = te
	}
	return out
}

// importExcludes reports whether pkg is in imp's exclude list, mirroring
// MinimizeImports' excludeIndex check so a source excluded from vouching
// for a package never contributes edges for it to the audit graph either.
func importExcludes(imp audit.Import, pkg audit.PackageName) bool {
	for _, ex := range imp.Exclude {
		if ex == pkg {
			return true
		}
	}
	return false
}

func translateCriteria(mapping []audit.CriteriaMapping, theirs []audit.CriteriaName) []audit.CriteriaName {
	have := map[audit.CriteriaName]bool{}
	for _, c := range theirs {
		have[c] = true
	}
	var ours []audit.CriteriaName
	for _, m := range mapping {
		satisfied := true
		for _, t := range m.Theirs {
			if !have[t] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ours = append(ours, m.Ours)
		}
	}
	return ours
}
