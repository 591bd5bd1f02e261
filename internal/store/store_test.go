package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/auditgraph/vet/internal/audit"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	const config = `
default-criteria = ["safe-to-deploy"]

[policy.third-party1]
criteria = "safe-to-deploy"

[exemptions]
third-party2 = [{ version = "1.2.3", criteria = ["safe-to-run"], notes = "temporary" }]
`
	if err := os.WriteFile(filepath.Join(dir, configFile), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	const audits = `
[criteria.strong-reviewed]
description = "a thorough review"
implies = ["safe-to-deploy"]

[audits]
third-party1 = [{ version = "1.0.0", criteria = "safe-to-deploy", who = ["reviewer@example.com"] }]
`
	if err := os.WriteFile(filepath.Join(dir, auditsFile), []byte(audits), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Config.DefaultCriteria) != 1 || s.Config.DefaultCriteria[0] != audit.SafeToDeploy {
		t.Fatalf("expected default-criteria to decode, got %v", s.Config.DefaultCriteria)
	}
	exs := s.Config.Exemptions["third-party2"]
	if len(exs) != 1 || !exs[0].Version.Equal(audit.MustParseVersion("1.2.3")) {
		t.Fatalf("expected exemption for third-party2@1.2.3, got %+v", exs)
	}
	entries := s.Audits.Audits["third-party1"]
	if len(entries) != 1 || entries[0].Kind != audit.KindFull {
		t.Fatalf("expected one full audit entry, got %+v", entries)
	}

	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(reloaded.Config.Exemptions["third-party2"]) != 1 {
		t.Fatalf("expected exemption to survive a save/load round trip")
	}
	if len(reloaded.Audits.Audits["third-party1"]) != 1 {
		t.Fatalf("expected audit entry to survive a save/load round trip")
	}
	if diff := cmp.Diff(s.Config, reloaded.Config); diff != "" {
		t.Fatalf("config changed across save/load round trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.Audits, reloaded.Audits); diff != "" {
		t.Fatalf("audits changed across save/load round trip (-want +got):\n%s", diff)
	}
}

func TestConfigUnauditedAlias(t *testing.T) {
	dir := t.TempDir()
	const config = `
[unaudited]
third-party1 = [{ version = "2.0.0", criteria = "safe-to-run" }]
`
	os.WriteFile(filepath.Join(dir, configFile), []byte(config), 0o644)
	os.WriteFile(filepath.Join(dir, auditsFile), []byte(""), 0o644)

	s, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Config.Exemptions["third-party1"]) != 1 {
		t.Fatalf("expected unaudited to be read as an exemptions alias, got %+v", s.Config.Exemptions)
	}
}

func TestDiffCacheStaleTagRebuilds(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, configFile), []byte(""), 0o644)
	os.WriteFile(filepath.Join(dir, auditsFile), []byte(""), 0o644)
	os.WriteFile(filepath.Join(dir, diffCacheFile), []byte(`tag = "1"`), 0o644)

	s, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.DiffStat("third-party1", audit.Root, audit.MustParseVersion("1.0.0")); ok {
		t.Fatalf("expected a stale-tag diff cache to be treated as empty")
	}
}

func TestPutDiffStatSurvivesSave(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, configFile), []byte(""), 0o644)
	os.WriteFile(filepath.Join(dir, auditsFile), []byte(""), 0o644)

	s, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	v := audit.MustParseVersion("1.0.0")
	s.PutDiffStat("third-party1", audit.Root, v, audit.DiffStat{Insertions: 5, Deletions: 1})
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	d, ok := reloaded.DiffStat("third-party1", audit.Root, v)
	if !ok || d.Insertions != 5 {
		t.Fatalf("expected cached diffstat to survive a save/load round trip, got %+v ok=%v", d, ok)
	}
}
