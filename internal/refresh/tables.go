package refresh

import "net/netip"

// splitByFamily partitions a mixed address-string slice by IP family.
func splitByFamily(addrs []string) (v4, v6 []string) {
	for _, s := range addrs {
		a, err := netip.ParseAddr(s)
		if err != nil {
			continue
		}
		if a.Is4() || a.Is4In6() {
			v4 = append(v4, s)
		} else {
			v6 = append(v6, s)
		}
	}
	return v4, v6
}

// sameSet reports whether a and b contain the same strings, ignoring
// order; duplicates count, so each string must occur equally often.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}

// diffSet reports which addresses were added/removed between the
// previous (prevV4/prevV6) and current (newV4/newV6) sets, for the refresh log
// line.
func diffSet(prevV4, prevV6, newV4, newV6 []string) (added, removed []string) {
	prev := make(map[string]struct{}, len(prevV4)+len(prevV6))
	for _, s := range prevV4 {
		prev[s] = struct{}{}
	}
	for _, s := range prevV6 {
		prev[s] = struct{}{}
	}
	cur := make(map[string]struct{}, len(newV4)+len(newV6))
	for _, s := range newV4 {
		cur[s] = struct{}{}
	}
	for _, s := range newV6 {
		cur[s] = struct{}{}
	}

	for s := range cur {
		if _, ok := prev[s]; !ok {
			added = append(added, s)
		}
	}
	for s := range prev {
		if _, ok := cur[s]; !ok {
			removed = append(removed, s)
		}
	}
	return added, removed
}

// toTables builds the Classifier's lookup tables (integer-keyed IPv4,
// 16-byte-keyed IPv6). Unparseable strings are skipped; the string
// forms for diagnostics come from splitByFamily instead.
func toTables(addrs []string) (v4 map[uint32]struct{}, v6 map[[16]byte]struct{}, err error) {
	v4 = make(map[uint32]struct{})
	v6 = make(map[[16]byte]struct{})

	for _, s := range addrs {
		a, perr := netip.ParseAddr(s)
		if perr != nil {
			continue
		}
		if a.Is4() || a.Is4In6() {
			b := a.As4()
			v4[uint32(b[0])<<24|uint32(b[1])<<16|uint32(b[2])<<8|uint32(b[3])] = struct{}{}
		} else {
			v6[a.As16()] = struct{}{}
		}
	}
	return v4, v6, nil
}
