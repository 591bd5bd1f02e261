package main

import (
	"flag"
	"fmt"

	"github.com/auditgraph/vet/internal/audit"
)

const regenExemptionsLongHelp = `
Recompute config.exemptions from the current resolver failures so the
project passes with minimal exemption footprint. Pinned exemptions
(suggest=false) are preserved untouched.
`

type regenerateExemptionsCommand struct {
	storePath    string
	manifestPath string
}

func (c *regenerateExemptionsCommand) Name() string { return "regenerate-exemptions" }
func (c *regenerateExemptionsCommand) Args() string  { return "[flags]" }
func (c *regenerateExemptionsCommand) ShortHelp() string {
	return "Recompute exemptions to cover current failures"
}
func (c *regenerateExemptionsCommand) LongHelp() string { return regenExemptionsLongHelp }

func (c *regenerateExemptionsCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.storePath, "store", "", "path to the audit store")
	fs.StringVar(&c.manifestPath, "manifest", "", "path to the project manifest")
}

func (c *regenerateExemptionsCommand) Run(rc *runCtx, args []string) error {
	outcome, _, err := runResolver(rc, c.storePath, c.manifestPath, false, false)
	if err != nil {
		return err
	}
	if outcome.Conclusion == audit.ConclusionFailViolation {
		return fmt.Errorf("cannot regenerate exemptions: the project has unresolved violation conflicts")
	}

	st, lock, err := rc.openStore(c.storePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	next := audit.Regenerate(audit.RegenerateInput{
		Failures: outcome.Failures,
		Existing: st.Config.Exemptions,
	})
	st.Config.Exemptions = next

	if err := st.Save(); err != nil {
		return err
	}
	fmt.Printf("regenerated exemptions for %d package(s)\n", len(next))
	return nil
}
