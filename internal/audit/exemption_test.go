package audit

import "testing"

// S6 from spec §8: regenerating exemptions covers a vet failure by
// extending the existing suggestable exemption at that version instead of
// adding a second entry.
func TestRegenerateCoversFailures(t *testing.T) {
	v1 := MustParseVersion("1.0.0")
	in := RegenerateInput{
		Failures: []VetFailure{
			{Package: "third-party1", Version: v1, Missing: []CriteriaName{SafeToDeploy}},
		},
		Existing: map[PackageName][]Exemption{
			"third-party1": {{Version: v1, Criteria: []CriteriaName{SafeToRun}, Suggest: true}},
		},
	}
	out := Regenerate(in)
	exs := out["third-party1"]
	if len(exs) != 1 {
		t.Fatalf("expected exactly one exemption for third-party1, got %d", len(exs))
	}
	have := map[CriteriaName]bool{}
	for _, c := range exs[0].Criteria {
		have[c] = true
	}
	if !have[SafeToDeploy] || !have[SafeToRun] {
		t.Fatalf("expected the regenerated exemption to union prior and missing criteria, got %v", exs[0].Criteria)
	}
}

func TestRegeneratePreservesPinnedExemptions(t *testing.T) {
	v1 := MustParseVersion("1.0.0")
	pinned := Exemption{Version: v1, Criteria: []CriteriaName{SafeToDeploy}, Suggest: false, Notes: "reviewed by legal"}
	in := RegenerateInput{
		Failures: nil,
		Existing: map[PackageName][]Exemption{
			"third-party1": {pinned},
		},
	}
	out := Regenerate(in)
	exs := out["third-party1"]
	if len(exs) != 1 || exs[0].Suggest != false || exs[0].Notes != pinned.Notes || !exs[0].Version.Equal(pinned.Version) {
		t.Fatalf("expected pinned exemption to survive untouched, got %+v", exs)
	}
}

func TestRegenerateSkipsAlreadyCoveredFailure(t *testing.T) {
	v1 := MustParseVersion("1.0.0")
	pinned := Exemption{Version: v1, Criteria: []CriteriaName{SafeToDeploy}, Suggest: false}
	in := RegenerateInput{
		Failures: []VetFailure{
			{Package: "third-party1", Version: v1, Missing: []CriteriaName{SafeToDeploy}},
		},
		Existing: map[PackageName][]Exemption{
			"third-party1": {pinned},
		},
	}
	out := Regenerate(in)
	if len(out["third-party1"]) != 1 {
		t.Fatalf("expected no new exemption when the pinned one already covers the failure, got %+v", out["third-party1"])
	}
}
