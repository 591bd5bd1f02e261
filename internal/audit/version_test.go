package audit

import "testing"

func TestVersionCmpGitRevIncomparable(t *testing.T) {
	a := MustParseVersion("1.2.3")
	b := MustParseVersion("1.2.3@git:deadbeef")

	if _, ok := a.Cmp(b); ok {
		t.Fatalf("expected 1.2.3 and 1.2.3@git:deadbeef to be incomparable")
	}
	if a.Equal(b) {
		t.Fatalf("expected 1.2.3 != 1.2.3@git:deadbeef")
	}

	c := MustParseVersion("1.2.3@git:deadbeef")
	if cmp, ok := b.Cmp(c); !ok || cmp != 0 {
		t.Fatalf("expected equal git-rev versions to compare equal, got cmp=%d ok=%v", cmp, ok)
	}
}

func TestVersionRootSortsBelowAll(t *testing.T) {
	v := MustParseVersion("0.0.1")
	cmp, ok := Root.Cmp(v)
	if !ok || cmp >= 0 {
		t.Fatalf("expected root below every real version, got cmp=%d ok=%v", cmp, ok)
	}
}

func TestDeltaRoundTrip(t *testing.T) {
	cases := []string{"1.0.0", "1.0.0 -> 2.0.0", "1.0.0@git:abcd -> 2.0.0"}
	for _, s := range cases {
		d, err := ParseDelta(s)
		if err != nil {
			t.Fatalf("ParseDelta(%q): %v", s, err)
		}
		got := d.String()
		d2, err := ParseDelta(got)
		if err != nil {
			t.Fatalf("re-parsing %q: %v", got, err)
		}
		if d2.String() != got {
			t.Fatalf("round-trip mismatch: %q != %q", d2.String(), got)
		}
	}
}

func TestVersionReqMatchesNotRoot(t *testing.T) {
	req, err := ParseVersionReq("^1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if req.Matches(Root) {
		t.Fatalf("expected root to never match a version requirement")
	}
	if !req.Matches(MustParseVersion("1.2.0")) {
		t.Fatalf("expected 1.2.0 to match ^1.0.0")
	}
	if req.Matches(MustParseVersion("2.0.0")) {
		t.Fatalf("expected 2.0.0 to not match ^1.0.0")
	}
}
