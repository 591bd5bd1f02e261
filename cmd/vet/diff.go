package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/auditgraph/vet/internal/audit"
)

const diffLongHelp = `
Fetch and diff two versions of a package, populating the store's diff
cache for later use by check/suggest. Prints the diffstat.
`

type diffCommand struct {
	storePath string
	repoFlag  string
}

func (c *diffCommand) Name() string      { return "diff" }
func (c *diffCommand) Args() string      { return "<package> <from> -> <to>" }
func (c *diffCommand) ShortHelp() string { return "Fetch and diff two versions of a package" }
func (c *diffCommand) LongHelp() string  { return diffLongHelp }

func (c *diffCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.storePath, "store", "", "path to the audit store")
	fs.StringVar(&c.repoFlag, "repo", "", "override the package's source repository URL")
}

func (c *diffCommand) Run(rc *runCtx, args []string) error {
	if len(args) != 2 {
		return errors.New("diff requires <package> and <from> -> <to>")
	}
	pkg := audit.PackageName(args[0])
	delta, err := audit.ParseDelta(args[1])
	if err != nil {
		return errors.Wrapf(err, "parsing %q", args[1])
	}
	from := audit.Root
	if delta.From != nil {
		from = *delta.From
	}

	st, lock, err := rc.openStore(c.storePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	repoURL := defaultRepoURL
	if c.repoFlag != "" {
		repoURL = func(audit.PackageName) string { return c.repoFlag }
	}
	cache, err := rc.openFetchCache(st.Root, epochBucket(), repoURL)
	if err != nil {
		return err
	}
	defer cache.Close()

	ctx := context.Background()
	var pathFrom string
	if !from.IsRoot() {
		pathFrom, err = cache.Fetch(ctx, pkg, from)
		if err != nil {
			return err
		}
	} else {
		pathFrom = filepath.Join(os.TempDir(), "vet-empty-tree")
		if err := os.MkdirAll(pathFrom, 0o755); err != nil {
			return errors.Wrap(err, "creating empty anchor tree")
		}
	}
	pathTo, err := cache.Fetch(ctx, pkg, delta.To)
	if err != nil {
		return err
	}

	d, err := cache.DiffStat(ctx, pkg, from, delta.To, pathFrom, pathTo)
	if err != nil {
		return err
	}
	st.PutDiffStat(pkg, from, delta.To, d)
	if err := st.Save(); err != nil {
		return err
	}

	fmt.Printf("%s %s: +%d -%d (%d files)\n", pkg, delta.String(), d.Insertions, d.Deletions, d.FilesChanged)
	return nil
}
