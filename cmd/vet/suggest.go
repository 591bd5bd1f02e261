package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/auditgraph/vet/internal/audit"
)

const suggestLongHelp = `
Compute audit suggestions without failing the build: runs the resolver and,
for every package missing required criteria, ranks candidate audits by
diff size using cached diffstats. Exits 0 whether or not packages fail
vetting; only an error loading or resolving the project exits non-zero.
`

type suggestCommand struct {
	storePath    string
	manifestPath string
	jsonOutput   bool
}

func (c *suggestCommand) Name() string      { return "suggest" }
func (c *suggestCommand) Args() string      { return "[flags]" }
func (c *suggestCommand) ShortHelp() string { return "Suggest audits that would resolve failures" }
func (c *suggestCommand) LongHelp() string  { return suggestLongHelp }

func (c *suggestCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.storePath, "store", "", "path to the audit store")
	fs.StringVar(&c.manifestPath, "manifest", "", "path to the project manifest")
	fs.BoolVar(&c.jsonOutput, "json", false, "emit the result as JSON")
}

func (c *suggestCommand) Run(rc *runCtx, args []string) error {
	outcome, info, err := runResolver(rc, c.storePath, c.manifestPath, false, true)
	if err != nil {
		return err
	}
	if outcome.Suggestion == nil {
		fmt.Println("nothing to suggest")
		return nil
	}
	if c.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome.ToJSON(info.storeRoot, info.declaredCriteria))
	}
	for _, g := range outcome.Suggestion.ByCriteria {
		fmt.Printf("to satisfy %v:\n", namesForDisplay(g.Criteria))
		for _, s := range g.Suggestions {
			fmt.Printf("  %s %s..%s (%d lines, confident=%v)\n", s.Package, s.Anchor, s.Target, s.Diff.Count(), s.Confident)
		}
	}
	return nil
}

func namesForDisplay(names []audit.CriteriaName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
