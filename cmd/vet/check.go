package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/auditgraph/vet/internal/audit"
	"github.com/auditgraph/vet/internal/store"
)

const checkLongHelp = `
Resolve the project's dependency graph against the audit store and report
whether every third-party package reaches the criteria its consumers'
policy requires. Exits 0 on success, 1 on a vetting failure or a
violation conflict.
`

type checkCommand struct {
	storePath    string
	manifestPath string
	forceUpdates bool
	jsonOutput   bool
	suggest      bool
}

func (c *checkCommand) Name() string      { return "check" }
func (c *checkCommand) Args() string      { return "[flags]" }
func (c *checkCommand) ShortHelp() string { return "Check the project against the audit store" }
func (c *checkCommand) LongHelp() string  { return checkLongHelp }

func (c *checkCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.storePath, "store", "", "path to the audit store (default: search upward for supply-chain/)")
	fs.StringVar(&c.manifestPath, "manifest", "", "path to the project manifest (default: search upward for project.toml)")
	fs.BoolVar(&c.forceUpdates, "force-updates", false, "admit fresh-import edges even when not strictly required")
	fs.BoolVar(&c.jsonOutput, "json", false, "emit the result as JSON")
	fs.BoolVar(&c.suggest, "suggest", true, "compute audit suggestions for vetting failures")
}

func (c *checkCommand) Run(rc *runCtx, args []string) error {
	outcome, ctxInfo, err := runResolver(rc, c.storePath, c.manifestPath, c.forceUpdates, c.suggest)
	if err != nil {
		return err
	}
	if err := report(outcome, ctxInfo, c.jsonOutput); err != nil {
		return err
	}
	if outcome.Conclusion != audit.ConclusionSuccess {
		return errExitFailure
	}
	return nil
}

// errExitFailure signals a clean non-zero exit (a vetting failure, not a
// tooling error); main's generic error-printing path still handles it, but
// commands that want a silent non-zero exit return this sentinel.
var errExitFailure = fmt.Errorf("vet failed")

type resolveContext struct {
	storeRoot        string
	declaredCriteria []audit.CriteriaName
}

// runResolver is the shared core of check and suggest: load the store and
// manifest, build the lattice and per-package graphs, and execute the
// Resolving (and optionally Suggesting) stages.
func runResolver(rc *runCtx, storePath, manifestPath string, forceUpdates, wantSuggestions bool) (audit.Outcome, resolveContext, error) {
	st, lock, err := rc.openStore(storePath)
	if err != nil {
		return audit.Outcome{}, resolveContext{}, err
	}
	defer lock.Release()

	mp, projectGraph, err := rc.loadManifest(manifestPath)
	if err != nil {
		return audit.Outcome{}, resolveContext{}, err
	}

	lattice, declared, err := buildLattice(st)
	if err != nil {
		return audit.Outcome{}, resolveContext{}, err
	}

	graphs, err := buildGraphs(st, projectGraph, lattice)
	if err != nil {
		return audit.Outcome{}, resolveContext{}, err
	}

	manifestPolicies, err := mp.Policies(context.Background())
	if err != nil {
		return audit.Outcome{}, resolveContext{}, err
	}

	in := audit.RunInput{
		Lattice:      lattice,
		Project:      *projectGraph,
		Policies:     mergePolicies(manifestPolicies, st.Config.Policy),
		Graphs:       graphs,
		ForceUpdates: forceUpdates,
	}
	outcome, perPackage := audit.Run(in)

	if wantSuggestions && outcome.Conclusion == audit.ConclusionFailVetting {
		diffLookup := cachedDiffLookup(st)
		s := audit.RunSuggestions(outcome, graphs, perPackage, lattice, diffLookup)
		outcome.Suggestion = &s
	}

	return outcome, resolveContext{storeRoot: st.Root, declaredCriteria: declared}, nil
}

// cachedDiffLookup serves diffstats from the store's persisted diff cache
// only; it never reaches out to the network, matching spec §4.9's note
// that "a diffstat failure for one package never prevents suggestions for
// others" — here an uncached pair is simply reported as an error rather
// than fetched inline, keeping `check`/`suggest` fast by default. `diff`
// is the command that populates the cache.
func cachedDiffLookup(st *store.Store) audit.DiffLookup {
	return func(pkg audit.PackageName, from, to audit.Version) (audit.DiffStat, error) {
		d, ok := st.DiffStat(pkg, from, to)
		if !ok {
			return audit.DiffStat{}, fmt.Errorf("no cached diffstat for %s %s..%s (run `vet diff` first)", pkg, from, to)
		}
		return d, nil
	}
}

func report(outcome audit.Outcome, info resolveContext, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome.ToJSON(info.storeRoot, info.declaredCriteria))
	}

	fmt.Printf("result: %s\n", outcome.Conclusion)
	for _, p := range outcome.Success {
		fmt.Printf("  ok    %s@%s\n", p.Package, p.Version)
	}
	for _, f := range outcome.Failures {
		fmt.Printf("  FAIL  %s@%s missing %v\n", f.Package, f.Version, f.Missing)
	}
	for _, cf := range outcome.Conflicts {
		fmt.Printf("  VIOLATION %s@%s: %v\n", cf.Package, cf.Version, cf.Details)
	}
	if outcome.Suggestion != nil {
		fmt.Printf("suggestions (%d total changed lines):\n", outcome.Suggestion.TotalLines)
		for _, s := range outcome.Suggestion.All {
			fmt.Printf("  %s %s..%s %v (confident=%v)\n", s.Package, s.Anchor, s.Target, s.Criteria, s.Confident)
		}
	}
	return nil
}

func epochBucket() int64 {
	return time.Now().Truncate(24 * time.Hour).Unix()
}
