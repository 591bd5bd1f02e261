package audit

import "testing"

func TestLatticeBuiltins(t *testing.T) {
	l, err := BuildLattice(nil)
	if err != nil {
		t.Fatal(err)
	}
	closure, err := l.Closure(SafeToDeploy)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := l.Closure(SafeToRun)
	if !want.Subset(closure) {
		t.Fatalf("expected safe-to-deploy closure to include safe-to-run")
	}
}

func TestLatticeCustomImplies(t *testing.T) {
	l, err := BuildLattice(map[CriteriaName]CriteriaEntry{
		"strong-reviewed": {Implies: []CriteriaName{SafeToDeploy}},
	})
	if err != nil {
		t.Fatal(err)
	}
	set, err := l.SetOf([]CriteriaName{"strong-reviewed"})
	if err != nil {
		t.Fatal(err)
	}
	deploy, _ := l.Closure(SafeToDeploy)
	run, _ := l.Closure(SafeToRun)
	if !deploy.Subset(set) || !run.Subset(set) {
		t.Fatalf("expected strong-reviewed to transitively imply safe-to-deploy and safe-to-run")
	}
}

func TestLatticeImpliesCycleTerminates(t *testing.T) {
	l, err := BuildLattice(map[CriteriaName]CriteriaEntry{
		"a": {Implies: []CriteriaName{"b"}},
		"b": {Implies: []CriteriaName{"a"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	ca, _ := l.Closure("a")
	cb, _ := l.Closure("b")
	if !ca.Equal(cb) {
		t.Fatalf("expected cyclic implies to collapse into one equivalence class")
	}
}

func TestLatticeUnknownCriteria(t *testing.T) {
	_, err := BuildLattice(map[CriteriaName]CriteriaEntry{
		"custom": {Implies: []CriteriaName{"does-not-exist"}},
	})
	if err == nil {
		t.Fatalf("expected error for unknown implied criteria")
	}
}
