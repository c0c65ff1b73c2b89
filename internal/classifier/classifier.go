// Package classifier decides which end of a packet is "local" (the
// host itself, RFC1918/loopback/link-local space, or a LAN peer) and
// which is "remote" (the public Internet).
package classifier

import (
	"fmt"
	"net/netip"
	"strings"
	"sync"

	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/model"
)

// Mode records whether the IPv6 LAN prefix table was supplied manually
// or is being auto-derived from the interface's GUAs.
type Mode string

const (
	ModeManual Mode = "MANUAL"
	ModeAuto   Mode = "AUTO"
)

type v4range struct {
	lo, hi uint32
}

// privateV4Ranges are the RFC1918/loopback/link-local IPv4 ranges plus
// 0.0.0.0/8 and the limited broadcast address, expressed as integer
// lo/hi pairs for O(1) membership tests.
var privateV4Ranges = []v4range{
	ipToRange("10.0.0.0", "10.255.255.255"),
	ipToRange("172.16.0.0", "172.31.255.255"),
	ipToRange("192.168.0.0", "192.168.255.255"),
	ipToRange("127.0.0.0", "127.255.255.255"),
	ipToRange("169.254.0.0", "169.254.255.255"),
	ipToRange("0.0.0.0", "0.255.255.255"),
	ipToRange("255.255.255.255", "255.255.255.255"),
}

func ipToRange(lo, hi string) v4range {
	loAddr := netip.MustParseAddr(lo).As4()
	hiAddr := netip.MustParseAddr(hi).As4()
	return v4range{be32(loAddr), be32(hiAddr)}
}

func be32(b [4]byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// builtinIPv6Exclude are always-local IPv6 ranges, independent of any
// LAN prefix configuration.
var builtinIPv6Exclude = []netip.Prefix{
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("ff00::/8"),
}

// Classifier holds the address tables used to classify packets as
// local-side or remote-side. Reads are lock-free-ish (RWMutex
// read-locked); writes go through ReplaceTables under the write lock.
type Classifier struct {
	mu sync.RWMutex

	mode        Mode
	localV4     map[uint32]struct{}
	localV6     map[[16]byte]struct{}
	lanPrefixes []netip.Prefix

	localV4Strs []string
	localV6Strs []string
}

// New builds a Classifier. manualPrefixes, if non-empty, pins the mode
// to MANUAL for the lifetime of the Classifier: no later ReplaceTables
// call may touch lanPrefixes.
func New(manualPrefixes []string) (*Classifier, error) {
	c := &Classifier{
		localV4: make(map[uint32]struct{}),
		localV6: make(map[[16]byte]struct{}),
	}

	var prefixes []netip.Prefix
	for _, raw := range manualPrefixes {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid IPv6 prefix %q: %w", raw, err)
		}
		prefixes = append(prefixes, p.Masked())
	}

	if len(prefixes) > 0 {
		c.mode = ModeManual
		c.lanPrefixes = prefixes
	} else {
		c.mode = ModeAuto
	}

	return c, nil
}

// Mode reports whether the LAN prefix table is manual or auto-derived.
func (c *Classifier) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// IsLocalV4 reports whether ip lies in any RFC1918/loopback/link-local
// range, or is one of the host's own addresses.
func (c *Classifier) IsLocalV4(ip uint32) bool {
	for _, r := range privateV4Ranges {
		if ip >= r.lo && ip <= r.hi {
			return true
		}
	}
	c.mu.RLock()
	_, ok := c.localV4[ip]
	c.mu.RUnlock()
	return ok
}

// IsLocalV6 reports whether addr is one of the host's own addresses,
// lies in a built-in exclude network, or lies in a configured LAN
// prefix.
func (c *Classifier) IsLocalV6(addr [16]byte) bool {
	c.mu.RLock()
	_, ok := c.localV6[addr]
	prefixes := c.lanPrefixes
	c.mu.RUnlock()
	if ok {
		return true
	}

	a := netip.AddrFrom16(addr)
	for _, net := range builtinIPv6Exclude {
		if net.Contains(a) {
			return true
		}
	}
	for _, net := range prefixes {
		if net.Contains(a) {
			return true
		}
	}
	return false
}

// IsInLANPrefix reports whether addr lies in some configured LAN
// prefix. Unlike IsLocalV6 it does not consult the built-in excludes;
// it exists solely for the double-ended LAN drop test.
func (c *Classifier) IsInLANPrefix(addr [16]byte) bool {
	c.mu.RLock()
	prefixes := c.lanPrefixes
	c.mu.RUnlock()
	if len(prefixes) == 0 {
		return false
	}
	a := netip.AddrFrom16(addr)
	for _, net := range prefixes {
		if net.Contains(a) {
			return true
		}
	}
	return false
}

// ReplaceTables is the single writer entry point for the address
// tables. If the mode is MANUAL, newPrefixes is ignored; only the
// address sets are swapped. The swap is atomic from a reader's
// perspective.
func (c *Classifier) ReplaceTables(newV4 map[uint32]struct{}, newV6 map[[16]byte]struct{}, newV4Strs, newV6Strs []string, newPrefixes []netip.Prefix) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.localV4 = newV4
	c.localV6 = newV6
	c.localV4Strs = newV4Strs
	c.localV6Strs = newV6Strs

	if c.mode == ModeManual {
		return
	}
	c.lanPrefixes = newPrefixes
}

// LANPrefixStrings returns the currently configured LAN prefixes.
func (c *Classifier) LANPrefixStrings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.lanPrefixes))
	for _, p := range c.lanPrefixes {
		out = append(out, p.String())
	}
	return out
}

// Diag returns a diagnostic snapshot for /api/debug/local_ips.
func (c *Classifier) Diag() model.LocalIPsDiag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.LocalIPsDiag{
		IPv4:        append([]string(nil), c.localV4Strs...),
		IPv6:        append([]string(nil), c.localV6Strs...),
		LANPrefixes: func() []string {
			out := make([]string, 0, len(c.lanPrefixes))
			for _, p := range c.lanPrefixes {
				out = append(out, p.String())
			}
			return out
		}(),
		Mode: string(c.mode),
	}
}
