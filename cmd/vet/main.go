// Command vet is the CLI driver for the audit resolver: it loads a store
// and a project manifest from the current directory, runs the resolver,
// and reports the outcome. Command dispatch follows golang-dep's main.go:
// a small command interface registered against a flag.FlagSet, rather than
// a third-party CLI framework.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
)

var verbose = flag.Bool("v", false, "enable verbose logging")

type command interface {
	Name() string           // "check"
	Args() string           // "[root]"
	ShortHelp() string      // "Check the project against the audit store"
	LongHelp() string       // full usage text
	Register(*flag.FlagSet) // command-specific flags
	Run(*runCtx, []string) error
}

func main() {
	commands := []command{
		&checkCommand{},
		&suggestCommand{},
		&certifyCommand{},
		&diffCommand{},
		&inspectCommand{},
		&regenerateExemptionsCommand{},
		&regenerateImportsCommand{},
		&gcCommand{},
		&cleanCommand{},
	}

	usage := func() {
		fmt.Fprintln(os.Stderr, "Usage: vet <command>")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr)
		w := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
		for _, c := range commands {
			fmt.Fprintf(w, "\t%s\t%s\n", c.Name(), c.ShortHelp())
		}
		w.Flush()
		fmt.Fprintln(os.Stderr)
	}

	if len(os.Args) <= 1 || strings.ToLower(os.Args[1]) == "-h" || strings.ToLower(os.Args[1]) == "help" {
		usage()
		os.Exit(1)
	}

	for _, c := range commands {
		if c.Name() != os.Args[1] {
			continue
		}

		fs := flag.NewFlagSet(c.Name(), flag.ExitOnError)
		fs.BoolVar(verbose, "v", false, "enable verbose logging")
		c.Register(fs)
		resetUsage(fs, c.Name(), c.Args(), c.LongHelp())

		if err := fs.Parse(os.Args[2:]); err != nil {
			fs.Usage()
			os.Exit(1)
		}

		logger := log.New(os.Stderr, "", 0)
		if !*verbose {
			logger.SetOutput(discard{})
		}
		rc := &runCtx{logger: logger}

		if err := c.Run(rc, fs.Args()); err != nil {
			if err != errExitFailure {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "%s: no such command\n", os.Args[1])
	usage()
	os.Exit(1)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func resetUsage(fs *flag.FlagSet, name, args, longHelp string) {
	var (
		hasFlags   bool
		flagBlock  bytes.Buffer
		flagWriter = tabwriter.NewWriter(&flagBlock, 0, 4, 2, ' ', 0)
	)
	fs.VisitAll(func(f *flag.Flag) {
		hasFlags = true
		fmt.Fprintf(flagWriter, "\t-%s\t%s\n", f.Name, f.Usage)
	})
	flagWriter.Flush()
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vet %s %s\n\n", name, args)
		fmt.Fprintln(os.Stderr, strings.TrimSpace(longHelp))
		if hasFlags {
			fmt.Fprintln(os.Stderr, "\nFlags:")
			fmt.Fprintln(os.Stderr, flagBlock.String())
		}
	}
}
