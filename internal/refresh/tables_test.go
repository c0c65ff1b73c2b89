package refresh

import "testing"

func TestSplitByFamily(t *testing.T) {
	v4, v6 := splitByFamily([]string{"192.168.1.1", "2001:db8::1", "not-an-ip"})
	if len(v4) != 1 || v4[0] != "192.168.1.1" {
		t.Errorf("v4 = %v, want [192.168.1.1]", v4)
	}
	if len(v6) != 1 || v6[0] != "2001:db8::1" {
		t.Errorf("v6 = %v, want [2001:db8::1]", v6)
	}
}

func TestSameSet(t *testing.T) {
	if !sameSet([]string{"a", "b"}, []string{"b", "a"}) {
		t.Errorf("sameSet should ignore order")
	}
	if sameSet([]string{"a"}, []string{"a", "b"}) {
		t.Errorf("sameSet should catch a size mismatch")
	}
	if sameSet([]string{"a", "a"}, []string{"a", "b"}) {
		t.Errorf("sameSet should catch duplicate-vs-distinct mismatches")
	}
}

func TestDiffSet(t *testing.T) {
	added, removed := diffSet([]string{"a", "b"}, nil, []string{"b", "c"}, nil)
	if len(added) != 1 || added[0] != "c" {
		t.Errorf("added = %v, want [c]", added)
	}
	if len(removed) != 1 || removed[0] != "a" {
		t.Errorf("removed = %v, want [a]", removed)
	}
}

func TestToTables(t *testing.T) {
	v4, v6, err := toTables([]string{"192.168.1.1", "2001:db8::1"})
	if err != nil {
		t.Fatalf("toTables: %v", err)
	}
	if len(v4) != 1 || len(v6) != 1 {
		t.Fatalf("expected 1 entry per family, got v4=%d v6=%d", len(v4), len(v6))
	}
}
