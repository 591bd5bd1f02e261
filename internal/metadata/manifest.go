package metadata

import (
	"context"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/auditgraph/vet/internal/audit"
)

// ManifestProvider implements Provider by reading a single project.toml
// manifest: the project's own packages, their resolved dependency edges,
// and per-package policy. It plays the role golang-dep's manifest.go plays
// for `manifest.json` — a thin decode into a stable in-memory shape — but
// folds in the locked dependency versions a real build system would
// otherwise source from a separate lock file, since spec §1 treats the
// whole of "dependency graph acquisition" as a single external boundary.
type ManifestProvider struct {
	roots   []audit.PackageName
	edges   []DependencyEdge
	policy  map[audit.PackageName]audit.Policy
}

type rawManifest struct {
	Roots        []string                `toml:"roots"`
	Dependencies []rawManifestDependency `toml:"dependency"`
	Policy       map[string]rawPolicy    `toml:"policy"`
}

type rawManifestDependency struct {
	From       string `toml:"from"`
	To         string `toml:"to"`
	Version    string `toml:"version"`
	ThirdParty bool   `toml:"third_party"`
	Dev        bool   `toml:"dev"`
}

type rawPolicy struct {
	Criteria    []string `toml:"criteria"`
	DevCriteria []string `toml:"dev_criteria"`
}

// LoadManifest reads and decodes a project.toml manifest from path.
func LoadManifest(path string) (*ManifestProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &audit.ParseError{File: path, Err: err}
	}
	var rm rawManifest
	if err := toml.Unmarshal(data, &rm); err != nil {
		return nil, &audit.ParseError{File: path, Err: errors.Wrap(err, "decoding project manifest")}
	}

	mp := &ManifestProvider{policy: map[audit.PackageName]audit.Policy{}}
	for _, r := range rm.Roots {
		mp.roots = append(mp.roots, audit.PackageName(r))
	}
	for _, rd := range rm.Dependencies {
		v, err := audit.ParseVersion(rd.Version)
		if err != nil {
			return nil, &audit.ParseError{File: path, Err: errors.Wrapf(err, "dependency %s -> %s", rd.From, rd.To)}
		}
		mp.edges = append(mp.edges, DependencyEdge{
			From:       audit.PackageName(rd.From),
			To:         audit.PackageName(rd.To),
			ToVersion:  v,
			ThirdParty: rd.ThirdParty,
			Dev:        rd.Dev,
		})
	}
	for pkg, rp := range rm.Policy {
		p := audit.Policy{}
		for _, c := range rp.Criteria {
			p.Criteria = append(p.Criteria, audit.CriteriaName(c))
		}
		for _, c := range rp.DevCriteria {
			p.DevCriteria = append(p.DevCriteria, audit.CriteriaName(c))
		}
		mp.policy[audit.PackageName(pkg)] = p
	}
	return mp, nil
}

func (m *ManifestProvider) Roots(ctx context.Context) ([]audit.PackageName, error) {
	return m.roots, nil
}

func (m *ManifestProvider) Dependencies(ctx context.Context) ([]DependencyEdge, error) {
	return m.edges, nil
}

func (m *ManifestProvider) Policies(ctx context.Context) (map[audit.PackageName]audit.Policy, error) {
	return m.policy, nil
}
