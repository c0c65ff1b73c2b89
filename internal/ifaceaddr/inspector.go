// Package ifaceaddr reads the IP addresses currently bound to a
// network interface and derives the GUA /56 prefixes used for LAN
// detection on native IPv6.
package ifaceaddr

import (
	"bufio"
	"fmt"
	"log"
	"net/netip"
	"os/exec"
	"strings"

	"github.com/vishvananda/netlink"
)

// GUAPrefixLen is the delegation size used by several large
// residential ISPs; auto-derived LAN prefixes use this length.
const GUAPrefixLen = 56

// Addresses returns every IP address string (both families, all
// scopes) currently bound to iface, with zone identifiers stripped.
// An empty result is valid: it means the interface exists but
// currently has no addresses.
func Addresses(iface string) ([]string, error) {
	ips, err := addressesViaNetlink(iface)
	if err == nil {
		return ips, nil
	}
	log.Printf("ifaceaddr: netlink lookup for %s failed (%v), falling back to `ip addr show`", iface, err)
	return addressesViaIPCommand(iface)
}

// addressesViaNetlink reads the address table directly through the
// rtnetlink socket, the "system library binding" the spec calls for.
func addressesViaNetlink(iface string) ([]string, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("link lookup: %w", err)
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return nil, fmt.Errorf("addr list: %w", err)
	}

	ips := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.IP == nil {
			continue
		}
		ips = append(ips, a.IP.String())
	}
	return ips, nil
}

// addressesViaIPCommand is the fallback source: it parses the output
// of `ip -o addr show <iface>`, accepting the same result shape as the
// netlink path.
func addressesViaIPCommand(iface string) ([]string, error) {
	cmd := exec.Command("ip", "-o", "addr", "show", iface)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ip addr show %s: %w", iface, err)
	}

	var ips []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		for i, f := range fields {
			if (f == "inet" || f == "inet6") && i+1 < len(fields) {
				addr := fields[i+1]
				addr = strings.SplitN(addr, "/", 2)[0]
				addr = strings.SplitN(addr, "%", 2)[0]
				if addr != "" {
					ips = append(ips, addr)
				}
			}
		}
	}
	return ips, nil
}

// DeriveGUASlash56 keeps only the addresses that are IPv6 GUAs
// (2000::/3) and returns their deduplicated /56 networks.
func DeriveGUASlash56(addrs []string) []netip.Prefix {
	seen := make(map[netip.Prefix]struct{})
	var out []netip.Prefix

	for _, s := range addrs {
		addr, err := netip.ParseAddr(s)
		if err != nil || !addr.Is6() || addr.Is4In6() {
			continue
		}
		b := addr.As16()
		if b[0]&0xE0 != 0x20 {
			continue
		}
		prefix := netip.PrefixFrom(addr, GUAPrefixLen).Masked()
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		out = append(out, prefix)
	}
	return out
}
