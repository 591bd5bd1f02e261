package audit

import "testing"

func buildTestLattice(t *testing.T) *Lattice {
	t.Helper()
	l, err := BuildLattice(map[CriteriaName]CriteriaEntry{
		"weak":            {},
		"reviewed":        {Implies: []CriteriaName{SafeToRun}},
		"strong-reviewed": {Implies: []CriteriaName{SafeToDeploy}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

// S4 from spec §8: a delta chain where only one path reaches the target.
func TestSearchDeltaChain(t *testing.T) {
	l := buildTestLattice(t)
	g := &Graph{Package: "third-party1"}

	full := func(to string, crit CriteriaName) {
		set, _ := l.SetOf([]CriteriaName{crit})
		g.AddEdge(Edge{From: Root, To: MustParseVersion(to), Criteria: set, Kind: EdgeFull})
	}
	full("2.0.0", "weak")
	full("3.0.0", "reviewed")

	deltaSet, _ := l.SetOf([]CriteriaName{"reviewed"})
	g.AddEdge(Edge{From: MustParseVersion("2.0.0"), To: MustParseVersion("10.0.0"), Criteria: deltaSet, Kind: EdgeDelta})

	res := Search(g, MustParseVersion("10.0.0"), l, false)
	reviewed, _ := l.Closure("reviewed")
	if !reviewed.Subset(res.Trust) {
		t.Fatalf("expected trust at 10.0.0 to include reviewed (and safe-to-run), got %v", l.Names(res.Trust))
	}
	weak, _ := l.Closure("weak")
	if res.Trust.Intersects(weak) {
		t.Fatalf("expected trust at 10.0.0 to not include weak: full(3) has no delta onward to 10.0.0")
	}
}

// S3 from spec §8: a violation whose range doesn't cover the used version
// causes no conflict.
func TestSearchViolationOutsideRange(t *testing.T) {
	l := buildTestLattice(t)
	g := &Graph{Package: "third-party2"}

	set, _ := l.SetOf([]CriteriaName{"strong-reviewed"})
	g.AddEdge(Edge{From: Root, To: MustParseVersion("10.0.0"), Criteria: set, Kind: EdgeFull})

	req, _ := ParseVersionReq("~99.0.0")
	deploySet, _ := l.SetOf([]CriteriaName{SafeToDeploy})
	g.Violations = append(g.Violations, Violation{Req: req, Criteria: deploySet, Source: "peer"})

	required, _ := l.SetOf([]CriteriaName{SafeToDeploy})
	res := Search(g, MustParseVersion("10.0.0"), l, false)
	if !required.Subset(res.Trust) {
		t.Fatalf("expected success: violation range ~99.0.0 doesn't cover 10.0.0")
	}
	conflicts := DetectConflicts(g, res, required, l)
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %v", conflicts)
	}
}

func TestSearchViolationInsideRangeConflicts(t *testing.T) {
	l := buildTestLattice(t)
	g := &Graph{Package: "third-party2"}

	set, _ := l.SetOf([]CriteriaName{SafeToDeploy})
	g.AddEdge(Edge{From: Root, To: MustParseVersion("10.0.0"), Criteria: set, Kind: EdgeFull})

	req, _ := ParseVersionReq(">=9.0.0")
	g.Violations = append(g.Violations, Violation{Req: req, Criteria: set, Source: "peer"})

	required, _ := l.SetOf([]CriteriaName{SafeToDeploy})
	res := Search(g, MustParseVersion("10.0.0"), l, false)
	if required.Subset(res.Trust) {
		t.Fatalf("expected violation to remove safe-to-deploy trust at 10.0.0")
	}
	conflicts := DetectConflicts(g, res, required, l)
	if len(conflicts) == 0 {
		t.Fatalf("expected a conflict to be reported")
	}
}

func TestMonotonicityAddingAuditNeverDecreasesTrust(t *testing.T) {
	l := buildTestLattice(t)
	g := &Graph{Package: "p"}
	before := Search(g, MustParseVersion("1.0.0"), l, false).Trust

	set, _ := l.SetOf([]CriteriaName{"reviewed"})
	g.AddEdge(Edge{From: Root, To: MustParseVersion("1.0.0"), Criteria: set, Kind: EdgeFull})
	after := Search(g, MustParseVersion("1.0.0"), l, false).Trust

	if !before.Subset(after) {
		t.Fatalf("adding an audit decreased trust: before=%v after=%v", l.Names(before), l.Names(after))
	}
}

func TestIdempotence(t *testing.T) {
	l := buildTestLattice(t)
	g := &Graph{Package: "p"}
	set, _ := l.SetOf([]CriteriaName{"reviewed"})
	g.AddEdge(Edge{From: Root, To: MustParseVersion("1.0.0"), Criteria: set, Kind: EdgeFull})

	r1 := Search(g, MustParseVersion("1.0.0"), l, false)
	r2 := Search(g, MustParseVersion("1.0.0"), l, false)
	if !r1.Trust.Equal(r2.Trust) {
		t.Fatalf("expected identical trust across repeated runs")
	}
}
