package main

import (
	"flag"
	"fmt"

	"github.com/auditgraph/vet/internal/audit"
)

const gcLongHelp = `
Drop every diff-cache entry for packages the project no longer depends on,
keeping imports-lock.toml's own contents untouched. Entries for packages
still in the dependency graph are kept, whichever deltas they cover.
`

type gcCommand struct {
	storePath    string
	manifestPath string
}

func (c *gcCommand) Name() string      { return "gc" }
func (c *gcCommand) Args() string      { return "[flags]" }
func (c *gcCommand) ShortHelp() string { return "Prune unreferenced diff-cache entries" }
func (c *gcCommand) LongHelp() string  { return gcLongHelp }

func (c *gcCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.storePath, "store", "", "path to the audit store")
	fs.StringVar(&c.manifestPath, "manifest", "", "path to the project manifest")
}

func (c *gcCommand) Run(rc *runCtx, args []string) error {
	st, lock, err := rc.openStore(c.storePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	_, projectGraph, err := rc.loadManifest(c.manifestPath)
	if err != nil {
		return err
	}

	live := map[audit.PackageName]bool{}
	for _, e := range projectGraph.Edges {
		if e.To.ThirdParty {
			live[e.To.Name] = true
		}
	}

	pruned := st.PruneDiffCache(live)

	if err := st.Save(); err != nil {
		return err
	}
	fmt.Printf("pruned %d diff-cache entries for packages no longer in the dependency graph\n", pruned)
	return nil
}
