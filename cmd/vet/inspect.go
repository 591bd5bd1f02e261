package main

import (
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/auditgraph/vet/internal/audit"
)

const inspectLongHelp = `
Show a single package's audit graph (every edge and violation) and, for a
given version, which criteria are reachable there, without evaluating
policy or producing a pass/fail result.
`

type inspectCommand struct {
	storePath string
	version   string
}

func (c *inspectCommand) Name() string      { return "inspect" }
func (c *inspectCommand) Args() string      { return "<package>" }
func (c *inspectCommand) ShortHelp() string { return "Show a package's audit graph" }
func (c *inspectCommand) LongHelp() string  { return inspectLongHelp }

func (c *inspectCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.storePath, "store", "", "path to the audit store")
	fs.StringVar(&c.version, "version", "", "report reachable criteria at this version")
}

func (c *inspectCommand) Run(rc *runCtx, args []string) error {
	if len(args) != 1 {
		return errors.New("inspect requires exactly one <package>")
	}
	pkg := audit.PackageName(args[0])

	st, lock, err := rc.openStore(c.storePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	lattice, _, err := buildLattice(st)
	if err != nil {
		return err
	}

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
		return err
	}

	fmt.Printf("%s: %d edge(s), %d violation(s)\n", pkg, len(g.Edges), len(g.Violations))
	for _, e := range g.Edges {
		fmt.Printf("  %s -> %s  %v  kind=%d source=%q fresh=%v\n", e.From, e.To, lattice.Names(e.Criteria), e.Kind, e.Source, e.Fresh)
	}
	for _, v := range g.Violations {
		fmt.Printf("  violation %s  %v  source=%q\n", v.Req, lattice.Names(v.Criteria), v.Source)
	}

	if c.version != "" {
		ver, err := audit.ParseVersion(c.version)
		if err != nil {
			return errors.Wrapf(err, "parsing version %q", c.version)
		}
		res := audit.Search(g, ver, lattice, false)
		fmt.Printf("reachable at %s: %v\n", ver, lattice.Names(res.Trust))
	}
	return nil
}
