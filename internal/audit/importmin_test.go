package audit

import "testing"

// S1 from spec §8: a fresh peer import whose audits only touch packages
// outside the project graph contributes nothing to the minimized lock.
func TestMinimizeImportsUnusedPackageExcluded(t *testing.T) {
	in := MinimizerInput{
		UsedEdges:       map[PackageName][]Edge{},
		ProjectPackages: map[PackageName]bool{"third-party1": true},
		Previous:        map[string]SourceSnapshotLock{},
		Fresh: map[string]SourceSnapshot{
			"peer": {
				Name: "peer",
				Audits: map[PackageName][]AuditEntry{
					"unrelated-package": {{Kind: KindFull, Criteria: []CriteriaName{SafeToDeploy}, Delta: Delta{To: MustParseVersion("1.0.0")}}},
				},
			},
		},
	}
	next, err := MinimizeImports(in)
	if err != nil {
		t.Fatal(err)
	}
	if lock, ok := next["peer"]; ok && len(lock.Audits) != 0 {
		t.Fatalf("expected no audits for unused packages, got %+v", lock.Audits)
	}
}

// S2 from spec §8: a peer revoking an audit drops it even though it was
// never used.
func TestMinimizeImportsDropsRevokedAudit(t *testing.T) {
	entry := AuditEntry{Kind: KindFull, Criteria: []CriteriaName{SafeToDeploy}, Delta: Delta{To: MustParseVersion("2.0.0")}}
	prev := map[string]SourceSnapshotLock{
		"peer": {Audits: map[PackageName][]AuditEntry{"third-party2": {entry}}},
	}
	in := MinimizerInput{
		UsedEdges:       map[PackageName][]Edge{},
		ProjectPackages: map[PackageName]bool{"third-party2": true},
		Previous:        prev,
		Fresh: map[string]SourceSnapshot{
			"peer": {Name: "peer", Audits: map[PackageName][]AuditEntry{}},
		},
	}
	next, err := MinimizeImports(in)
	if err != nil {
		t.Fatal(err)
	}
	if lock, ok := next["peer"]; ok {
		for _, e := range lock.Audits["third-party2"] {
			if e.Delta.To.Equal(MustParseVersion("2.0.0")) {
				t.Fatalf("expected revoked audit to be dropped from the minimized lock")
			}
		}
	}
}

// Stability law (spec §8 property 7): an unrelated upstream edit to the
// snapshot doesn't churn the locked entry for a package actually in use.
func TestMinimizeImportsStableForUsedPackage(t *testing.T) {
	used := Edge{From: Root, To: MustParseVersion("1.0.0"), Kind: EdgeFull, Source: "peer"}
	entry := AuditEntry{Kind: KindFull, Criteria: []CriteriaName{SafeToDeploy}, Delta: Delta{To: MustParseVersion("1.0.0")}, Notes: "original"}
	prev := map[string]SourceSnapshotLock{
		"peer": {Audits: map[PackageName][]AuditEntry{"third-party1": {entry}}},
	}
	in := MinimizerInput{
		UsedEdges:       map[PackageName][]Edge{"third-party1": {used}},
		ProjectPackages: map[PackageName]bool{"third-party1": true},
		Previous:        prev,
		Fresh: map[string]SourceSnapshot{
			"peer": {Name: "peer", Audits: map[PackageName][]AuditEntry{
				"third-party1": {{Kind: KindFull, Criteria: []CriteriaName{SafeToDeploy}, Delta: Delta{To: MustParseVersion("1.0.0")}, Notes: "rewritten upstream"}},
				"unrelated":    {{Kind: KindFull, Criteria: []CriteriaName{SafeToDeploy}, Delta: Delta{To: MustParseVersion("9.0.0")}}},
			}},
		},
	}
	next, err := MinimizeImports(in)
	if err != nil {
		t.Fatal(err)
	}
	lock := next["peer"]
	if len(lock.Audits["third-party1"]) != 1 || lock.Audits["third-party1"][0].Notes != "original" {
		t.Fatalf("expected the previously-locked entry to be kept as-is, got %+v", lock.Audits["third-party1"])
	}
	if _, ok := lock.Audits["unrelated"]; ok {
		t.Fatalf("expected unrelated package to stay excluded from the lock")
	}
}

func TestMinimizeImportsExcludeHonoured(t *testing.T) {
	in := MinimizerInput{
		UsedEdges:       map[PackageName][]Edge{"blocked": {{From: Root, To: MustParseVersion("1.0.0"), Source: "peer"}}},
		ProjectPackages: map[PackageName]bool{"blocked": true},
		Previous:        map[string]SourceSnapshotLock{},
		Fresh: map[string]SourceSnapshot{
			"peer": {
				Name:    "peer",
				Exclude: []PackageName{"blocked"},
				Audits: map[PackageName][]AuditEntry{
					"blocked": {{Kind: KindFull, Criteria: []CriteriaName{SafeToDeploy}, Delta: Delta{To: MustParseVersion("1.0.0")}}},
				},
			},
		},
	}
	next, err := MinimizeImports(in)
	if err != nil {
		t.Fatal(err)
	}
	if lock, ok := next["peer"]; ok {
		if _, has := lock.Audits["blocked"]; has {
			t.Fatalf("expected excluded package to never be imported")
		}
	}
}
