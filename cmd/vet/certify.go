package main

import (
	"flag"
	"strings"

	"github.com/pkg/errors"

	"github.com/auditgraph/vet/internal/audit"
)

const certifyLongHelp = `
Record a human audit: certify <package> <version> --criteria=safe-to-deploy
records a full audit at that version. certify <package> <from> -> <to>
--criteria=... records a delta audit, valid only once <from> is itself
trusted for the same criteria.
`

type certifyCommand struct {
	storePath string
	criteria  string
	who       string
	notes     string
}

func (c *certifyCommand) Name() string      { return "certify" }
func (c *certifyCommand) Args() string      { return "<package> <version>|<from> -> <to>" }
func (c *certifyCommand) ShortHelp() string { return "Record a full or delta audit" }
func (c *certifyCommand) LongHelp() string  { return certifyLongHelp }

func (c *certifyCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.storePath, "store", "", "path to the audit store")
	fs.StringVar(&c.criteria, "criteria", string(audit.SafeToDeploy), "comma-separated criteria this audit certifies")
	fs.StringVar(&c.who, "who", "", "comma-separated names of the reviewer(s)")
	fs.StringVar(&c.notes, "notes", "", "free-form notes recorded with the audit")
}

func (c *certifyCommand) Run(rc *runCtx, args []string) error {
	if len(args) != 2 {
		return errors.New("certify requires <package> and <version>|<from> -> <to>")
	}
	pkg := audit.PackageName(args[0])

	st, lock, err := rc.openStore(c.storePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	delta, err := audit.ParseDelta(args[1])
	if err != nil {
		return errors.Wrapf(err, "parsing %q", args[1])
	}

	var criteria []audit.CriteriaName
	for _, cn := range strings.Split(c.criteria, ",") {
		if cn = strings.TrimSpace(cn); cn != "" {
			criteria = append(criteria, audit.CriteriaName(cn))
		}
	}
	var who []string
	if c.who != "" {
		who = strings.Split(c.who, ",")
	}

	kind := audit.KindFull
	if delta.From != nil {
		kind = audit.KindDelta
	}
	entry := audit.AuditEntry{
		Who:      who,
		Criteria: criteria,
		Kind:     kind,
		Delta:    delta,
		Notes:    c.notes,
	}

	st.Audits.Audits[pkg] = audit.DedupAuditEntries(append(st.Audits.Audits[pkg], entry))
	audit.SortAuditEntries(st.Audits.Audits[pkg])

	return st.Save()
}
