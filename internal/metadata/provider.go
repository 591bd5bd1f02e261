// Package metadata defines the MetadataProvider boundary: spec §1 treats
// dependency graph acquisition from the surrounding build system as an
// external collaborator "described only by their interface to the core".
// This package ships one concrete Provider, ManifestProvider, which reads a
// project.toml; cmd/vet loads it. internal/audit never imports this package
// directly, only the audit.ProjectGraph/Policy values built from a
// Provider's output.
package metadata

import (
	"context"

	"github.com/auditgraph/vet/internal/audit"
)

// DependencyEdge is one first-party-or-third-party dependency relationship
// as reported by the build system, before it's folded into an
// audit.ProjectGraph.
type DependencyEdge struct {
	From       audit.PackageName
	To         audit.PackageName
	ToVersion  audit.Version
	ThirdParty bool
	Dev        bool
}

// Provider resolves the current project's dependency graph and the
// first-party policy declarations governing it.
type Provider interface {
	// Roots returns the project's own first-party packages (the graph's
	// entry points).
	Roots(ctx context.Context) ([]audit.PackageName, error)
	// Dependencies returns every direct dependency edge reachable from the
	// project's first-party packages, already resolved to concrete
	// versions by the build system's own lock file.
	Dependencies(ctx context.Context) ([]DependencyEdge, error)
	// Policies returns the declared Policy for each first-party package
	// that has one.
	Policies(ctx context.Context) (map[audit.PackageName]audit.Policy, error)
}

// BuildProjectGraph folds a Provider's output into an audit.ProjectGraph,
// the shape policy.go's ComputeDemand consumes.
func BuildProjectGraph(ctx context.Context, p Provider) (*audit.ProjectGraph, error) {
	roots, err := p.Roots(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := p.Dependencies(ctx)
	if err != nil {
		return nil, err
	}

	g := &audit.ProjectGraph{
		Roots:      roots,
		FirstParty: map[audit.PackageName]bool{},
	}
	for _, r := range roots {
		g.FirstParty[r] = true
	}
	for _, e := range edges {
		if !e.ThirdParty {
			g.FirstParty[e.To] = true
		}
		g.Edges = append(g.Edges, audit.DepEdge{
			From: e.From,
			To: audit.Package{
				Name:       e.To,
				Version:    e.ToVersion,
				ThirdParty: e.ThirdParty,
			},
			Dev: e.Dev,
		})
	}
	return g, nil
}
