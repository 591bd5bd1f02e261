package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/auditgraph/vet/internal/audit"
	"github.com/auditgraph/vet/internal/store"
)

const regenImportsLongHelp = `
Refresh imports-lock.toml: fetch each trusted import's current audits.toml,
and keep the minimal stable subset that still supports the project's
current resolution (spec §4.7).
`

type regenerateImportsCommand struct {
	storePath     string
	manifestPath  string
	forceUpdates  bool
	acceptChanges bool
}

func (c *regenerateImportsCommand) Name() string { return "regenerate-imports" }
func (c *regenerateImportsCommand) Args() string  { return "[flags]" }
func (c *regenerateImportsCommand) ShortHelp() string {
	return "Refresh imports-lock.toml from trusted sources"
}
func (c *regenerateImportsCommand) LongHelp() string { return regenImportsLongHelp }

func (c *regenerateImportsCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.storePath, "store", "", "path to the audit store")
	fs.StringVar(&c.manifestPath, "manifest", "", "path to the project manifest")
	fs.BoolVar(&c.forceUpdates, "force-updates", false, "pull in each source's entire current snapshot")
	fs.BoolVar(&c.acceptChanges, "accept-changes", false, "accept criteria description changes instead of failing")
}

func (c *regenerateImportsCommand) Run(rc *runCtx, args []string) error {
	st, lock, err := rc.openStore(c.storePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx := context.Background()

	mp, projectGraph, err := rc.loadManifest(c.manifestPath)
	if err != nil {
		return err
	}
	lattice, _, err := buildLattice(st)
	if err != nil {
		return err
	}
	graphs, err := buildGraphs(st, projectGraph, lattice)
	if err != nil {
		return err
	}
	manifestPolicies, err := mp.Policies(ctx)
	if err != nil {
		return err
	}
	_, perPackage := audit.Run(audit.RunInput{
		Lattice:  lattice,
		Project:  *projectGraph,
		Policies: mergePolicies(manifestPolicies, st.Config.Policy),
		Graphs:   graphs,
	})

	usedEdges := map[audit.PackageName][]audit.Edge{}
	projectPackages := map[audit.PackageName]bool{}
	for pkg, byVer := range perPackage {
		projectPackages[pkg] = true
		for _, res := range byVer {
			usedEdges[pkg] = append(usedEdges[pkg], res.Support...)
		}
	}

	fresh := map[string]audit.SourceSnapshot{}
	for name, imp := range st.Config.Imports {
		snap, err := fetchSourceSnapshot(ctx, name, imp)
		if err != nil {
			rc.logger.Printf("skipping import %q: %v", name, err)
			continue
		}
		fresh[name] = snap
	}

	next, err := audit.MinimizeImports(audit.MinimizerInput{
		UsedEdges:       usedEdges,
		ProjectPackages: projectPackages,
		Previous:        st.ImportsLock.Sources,
		Fresh:           fresh,
		ForceUpdates:    c.forceUpdates,
		AcceptChanges:   c.acceptChanges,
	})
	if err != nil {
		return err
	}

	st.ImportsLock.Sources = next
	if err := st.Save(); err != nil {
		return err
	}
	fmt.Printf("imports-lock.toml refreshed: %d source(s)\n", len(next))
	return nil
}

// fetchSourceSnapshot shallow-clones an import's repository and decodes its
// audits.toml, the minimal "fetch a trusted peer's store" operation spec
// §4.2 assumes exists. The snapshot's exclude list is taken from the local
// import configuration, not from the cloned repository.
func fetchSourceSnapshot(ctx context.Context, name string, imp audit.Import) (audit.SourceSnapshot, error) {
	dir, err := os.MkdirTemp("", "vet-import-"+name+"-")
	if err != nil {
		return audit.SourceSnapshot{}, err
	}
	defer os.RemoveAll(dir)

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", imp.URL, dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return audit.SourceSnapshot{}, errors.Wrapf(err, "cloning %s: %s", imp.URL, out)
	}

	data, err := os.ReadFile(filepath.Join(dir, "audits.toml"))
	if err != nil {
		return audit.SourceSnapshot{}, errors.Wrapf(err, "reading audits.toml from %s", imp.URL)
	}
	af, err := store.DecodeAuditsFile(data)
	if err != nil {
		return audit.SourceSnapshot{}, err
	}

	return audit.SourceSnapshot{
		Name:     name,
		Audits:   af.Audits,
		Criteria: af.Criteria,
		Exclude:  imp.Exclude,
	}, nil
}
