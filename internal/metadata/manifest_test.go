package metadata

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/auditgraph/vet/internal/audit"
)

func TestLoadManifestBuildsProjectGraph(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.toml")
	const manifest = `
roots = ["cmd/app"]

[[dependency]]
from = "cmd/app"
to = "third-party1"
version = "1.0.0"
third_party = true

[policy."cmd/app"]
criteria = ["safe-to-deploy"]
`
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	mp, err := LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	g, err := BuildProjectGraph(context.Background(), mp)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Roots) != 1 || g.Roots[0] != "cmd/app" {
		t.Fatalf("expected one root, got %v", g.Roots)
	}
	if g.FirstParty["third-party1"] {
		t.Fatalf("expected third-party1 to not be marked first-party")
	}
	if len(g.Edges) != 1 || g.Edges[0].To.Name != "third-party1" || !g.Edges[0].To.Version.Equal(audit.MustParseVersion("1.0.0")) {
		t.Fatalf("expected one edge to third-party1@1.0.0, got %+v", g.Edges)
	}

	pols, err := mp.Policies(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pols["cmd/app"].Criteria) != 1 || pols["cmd/app"].Criteria[0] != audit.SafeToDeploy {
		t.Fatalf("expected cmd/app policy to require safe-to-deploy, got %+v", pols["cmd/app"])
	}
}
