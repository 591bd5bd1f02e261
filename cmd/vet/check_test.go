package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/auditgraph/vet/internal/audit"
)

func writeFixture(t *testing.T, dir string) {
	t.Helper()
	mustWrite(t, filepath.Join(dir, "supply-chain", "config.toml"), `
[policy."cmd/app"]
criteria = ["safe-to-deploy"]
`)
	mustWrite(t, filepath.Join(dir, "supply-chain", "audits.toml"), `
[[audits.third-party1]]
version = "1.0.0"
who = ["alice"]
criteria = "safe-to-deploy"
`)
	mustWrite(t, filepath.Join(dir, "project.toml"), `
roots = ["cmd/app"]

[[dependency]]
from = "cmd/app"
to = "third-party1"
version = "1.0.0"
third_party = true
`)
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCheckCommandSucceedsOnFullyAuditedDependency(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	rc := &runCtx{logger: log.New(io.Discard, "", 0)}
	cmd := &checkCommand{
		storePath:    filepath.Join(dir, "supply-chain"),
		manifestPath: filepath.Join(dir, "project.toml"),
		suggest:      true,
	}
	if err := cmd.Run(rc, nil); err != nil {
		t.Fatalf("expected check to pass, got %v", err)
	}
}

func TestCheckCommandFailsOnMissingAudit(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "supply-chain", "config.toml"), "")
	mustWrite(t, filepath.Join(dir, "supply-chain", "audits.toml"), "")
	mustWrite(t, filepath.Join(dir, "project.toml"), `
roots = ["cmd/app"]

[[dependency]]
from = "cmd/app"
to = "third-party1"
version = "1.0.0"
third_party = true
`)

	rc := &runCtx{logger: log.New(io.Discard, "", 0)}
	cmd := &checkCommand{
		storePath:    filepath.Join(dir, "supply-chain"),
		manifestPath: filepath.Join(dir, "project.toml"),
	}
	err := cmd.Run(rc, nil)
	if err != errExitFailure {
		t.Fatalf("expected errExitFailure, got %v", err)
	}
}

func TestMergePoliciesStoreOverridesManifest(t *testing.T) {
	manifest := map[audit.PackageName]audit.Policy{
		"cmd/app": {Criteria: []audit.CriteriaName{audit.SafeToRun}},
	}
	store := map[audit.PackageName]audit.Policy{
		"cmd/app": {Criteria: []audit.CriteriaName{audit.SafeToDeploy}},
	}
	merged := mergePolicies(manifest, store)
	if len(merged["cmd/app"].Criteria) != 1 || merged["cmd/app"].Criteria[0] != audit.SafeToDeploy {
		t.Fatalf("expected store policy to win, got %+v", merged["cmd/app"])
	}
}
