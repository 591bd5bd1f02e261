package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

const cleanLongHelp = `
Remove the store's on-disk fetch cache (fetched source trees and the
BoltDB fetch/diffstat memoization database). The persisted diff-cache.toml
and imports-lock.toml are untouched; the next diff simply refetches and
recomputes as needed.
`

type cleanCommand struct {
	storePath string
}

func (c *cleanCommand) Name() string      { return "clean" }
func (c *cleanCommand) Args() string      { return "[flags]" }
func (c *cleanCommand) ShortHelp() string { return "Remove the fetch cache" }
func (c *cleanCommand) LongHelp() string  { return cleanLongHelp }

func (c *cleanCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.storePath, "store", "", "path to the audit store")
}

func (c *cleanCommand) Run(rc *runCtx, args []string) error {
	st, lock, err := rc.openStore(c.storePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	dir := filepath.Join(st.Root, ".fetch-cache")
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", dir)
	return nil
}
