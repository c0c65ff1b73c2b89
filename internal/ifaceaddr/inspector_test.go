package ifaceaddr

import "testing"

func TestDeriveGUASlash56_FiltersToGUAsAndDedupes(t *testing.T) {
	addrs := []string{
		"192.168.1.10",          // not IPv6, ignored
		"fe80::1",                // link-local, not a GUA
		"2400:3200:1000::abcd",  // GUA
		"2400:3200:1000::1",     // same /56 as above
		"2a01:4f8:c17::1",       // different GUA /56
		"fc00::1",               // ULA, not a GUA
	}
	prefixes := DeriveGUASlash56(addrs)
	if len(prefixes) != 2 {
		t.Fatalf("expected 2 distinct /56 prefixes, got %d: %v", len(prefixes), prefixes)
	}
}

func TestDeriveGUASlash56_EmptyInput(t *testing.T) {
	if got := DeriveGUASlash56(nil); len(got) != 0 {
		t.Errorf("expected no prefixes for empty input, got %v", got)
	}
}
