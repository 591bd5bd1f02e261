package audit

import "testing"

// S5 from spec §8: a delta from a closer, already-strong anchor should
// outrank a full audit of the target because it diffs fewer lines.
func TestSuggestPrefersSmallerDiff(t *testing.T) {
	l := buildTestLattice(t)
	g := &Graph{Package: "third-party1"}

	weakSet, _ := l.SetOf([]CriteriaName{"weak"})
	g.AddEdge(Edge{From: Root, To: MustParseVersion("2.0.0"), Criteria: weakSet, Kind: EdgeFull})
	strongSet, _ := l.SetOf([]CriteriaName{"strong-reviewed"})
	g.AddEdge(Edge{From: Root, To: MustParseVersion("4.0.0"), Criteria: strongSet, Kind: EdgeFull})

	target := MustParseVersion("10.0.0")
	res := Search(g, target, l, false)

	diffs := map[string]DiffStat{
		"(root)->10.0.0":  {Insertions: 500, Deletions: 500},
		"4.0.0->10.0.0":   {Insertions: 10, Deletions: 2},
	}
	lookup := func(pkg PackageName, from, to Version) (DiffStat, error) {
		return diffs[from.String()+"->"+to.String()], nil
	}

	missing := []CriteriaName{SafeToDeploy}
	suggestions, err := Suggest(g, target, missing, res.Reach, l, lookup)
	if err != nil {
		t.Fatal(err)
	}
	if len(suggestions) == 0 {
		t.Fatalf("expected at least one suggestion")
	}
	top := suggestions[0]
	if top.Anchor.IsRoot() {
		t.Fatalf("expected the delta from 4.0.0 to rank first, got a full audit suggestion")
	}
	if !top.Anchor.Equal(MustParseVersion("4.0.0")) {
		t.Fatalf("expected anchor 4.0.0, got %v", top.Anchor)
	}
	if !top.Confident {
		t.Fatalf("expected a real audited anchor to be confident")
	}
}

func TestSuggestGroupByCriteria(t *testing.T) {
	all := []SuggestedAudit{
		{Package: "a", Criteria: []CriteriaName{SafeToDeploy}, Diff: DiffStat{Insertions: 1}},
		{Package: "b", Criteria: []CriteriaName{SafeToRun}, Diff: DiffStat{Insertions: 2}},
		{Package: "c", Criteria: []CriteriaName{SafeToDeploy}, Diff: DiffStat{Insertions: 3}},
	}
	s := GroupByCriteria(all)
	if s.TotalLines != 6 {
		t.Fatalf("expected total lines 6, got %d", s.TotalLines)
	}
	if len(s.ByCriteria) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(s.ByCriteria))
	}
}
