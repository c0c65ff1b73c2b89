package classifier

import (
	"net/netip"
	"testing"
)

func be32Str(s string) uint32 {
	a := netip.MustParseAddr(s).As4()
	return be32(a)
}

func TestIsLocalV4_RFC1918AndLoopback(t *testing.T) {
	c, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		ip    string
		local bool
	}{
		{"192.168.1.10", true},
		{"10.0.0.1", true},
		{"172.16.5.5", true},
		{"127.0.0.1", true},
		{"169.254.1.1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
	}
	for _, tc := range cases {
		got := c.IsLocalV4(be32Str(tc.ip))
		if got != tc.local {
			t.Errorf("IsLocalV4(%s) = %v, want %v", tc.ip, got, tc.local)
		}
	}
}

func TestIsLocalV4_HostOwnAddress(t *testing.T) {
	c, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	own := be32Str("203.0.113.5")
	if c.IsLocalV4(own) {
		t.Fatalf("address should not be local before ReplaceTables")
	}
	c.ReplaceTables(map[uint32]struct{}{own: {}}, map[[16]byte]struct{}{}, []string{"203.0.113.5"}, nil, nil)
	if !c.IsLocalV4(own) {
		t.Fatalf("address should be local after ReplaceTables")
	}
}

func TestIsLocalV6_BuiltinExcludes(t *testing.T) {
	c, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cases := []struct {
		ip    string
		local bool
	}{
		{"fe80::1", true},
		{"::1", true},
		{"fc00::1", true},
		{"ff02::1", true},
		{"2001:4860:4860::8888", false},
	}
	for _, tc := range cases {
		addr := netip.MustParseAddr(tc.ip).As16()
		got := c.IsLocalV6(addr)
		if got != tc.local {
			t.Errorf("IsLocalV6(%s) = %v, want %v", tc.ip, got, tc.local)
		}
	}
}

func TestManualModeIsPinned(t *testing.T) {
	c, err := New([]string{"2001:db8::/56"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Mode() != ModeManual {
		t.Fatalf("Mode() = %v, want ModeManual", c.Mode())
	}

	autoPrefix := netip.MustParsePrefix("2001:dead::/56")
	c.ReplaceTables(nil, nil, nil, nil, []netip.Prefix{autoPrefix})

	if c.IsInLANPrefix(netip.MustParseAddr("2001:dead::1").As16()) {
		t.Fatalf("manual mode must ignore prefixes passed to ReplaceTables")
	}
	if !c.IsInLANPrefix(netip.MustParseAddr("2001:db8::1").As16()) {
		t.Fatalf("manual prefix should still be in effect")
	}
}

func TestAutoModeAcceptsReplacedPrefixes(t *testing.T) {
	c, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Mode() != ModeAuto {
		t.Fatalf("Mode() = %v, want ModeAuto", c.Mode())
	}
	prefix := netip.MustParsePrefix("2400:1234::/56")
	c.ReplaceTables(nil, nil, nil, nil, []netip.Prefix{prefix})
	if !c.IsInLANPrefix(netip.MustParseAddr("2400:1234::1").As16()) {
		t.Fatalf("auto mode should pick up the new prefix")
	}
}
