// Package frame decodes an Ethernet frame, with an optional 802.1Q
// tag, into the fields the classifier and aggregator need: IP
// version, declared IP-layer length, and source/destination
// addresses. It deliberately avoids building a full packet object
// (as gopacket or Scapy would) — see SPEC_FULL.md §4.3 for why.
package frame

const (
	etherTypeIPv4  = 0x0800
	etherTypeIPv6  = 0x86DD
	etherType8021Q = 0x8100
)

// Parsed is the result of decoding one frame's IP layer.
type Parsed struct {
	IsV6   bool
	Length int // IP-layer declared length, NOT the captured frame length

	SrcV4 uint32
	DstV4 uint32

	SrcV6 [16]byte
	DstV6 [16]byte
}

// Parse decodes data as an Ethernet frame and extracts its IPv4 or
// IPv6 header fields. ok is false for anything shorter than the
// required headers or carrying an EtherType other than IPv4/IPv6
// (ARP and friends are silently ignored, matching the spec's
// malformed-frame policy).
func Parse(data []byte) (p Parsed, ok bool) {
	if len(data) < 14 {
		return Parsed{}, false
	}

	ethertype := be16(data, 12)
	payloadOffset := 14

	if ethertype == etherType8021Q {
		if len(data) < 18 {
			return Parsed{}, false
		}
		ethertype = be16(data, 16)
		payloadOffset = 18
	}

	switch ethertype {
	case etherTypeIPv4:
		return parseIPv4(data[payloadOffset:])
	case etherTypeIPv6:
		return parseIPv6(data[payloadOffset:])
	default:
		return Parsed{}, false
	}
}

func parseIPv4(data []byte) (Parsed, bool) {
	if len(data) < 20 {
		return Parsed{}, false
	}
	p := Parsed{
		IsV6:   false,
		Length: int(be16(data, 2)),
		SrcV4:  be32(data, 12),
		DstV4:  be32(data, 16),
	}
	return p, true
}

func parseIPv6(data []byte) (Parsed, bool) {
	if len(data) < 40 {
		return Parsed{}, false
	}
	p := Parsed{
		IsV6:   true,
		Length: 40 + int(be16(data, 4)),
	}
	copy(p.SrcV6[:], data[8:24])
	copy(p.DstV6[:], data[24:40])
	return p, true
}

func be16(b []byte, off int) uint16 {
	return uint16(b[off])<<8 | uint16(b[off+1])
}

func be32(b []byte, off int) uint32 {
	return uint32(b[off])<<24 | uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3])
}
