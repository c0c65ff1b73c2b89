// Package model holds the plain data types shared across the capture,
// aggregation, persistence, and query layers.
package model

// Direction is the side of the uplink a byte count is attributed to.
type Direction uint8

const (
	Upload Direction = iota
	Download
)

func (d Direction) String() string {
	if d == Upload {
		return "up"
	}
	return "down"
}

// HourCounts is the up/down byte total for one hour bucket.
type HourCounts struct {
	Up   uint64 `json:"up"`
	Down uint64 `json:"down"`
}

// RealtimeSample is one second of realtime up/down throughput.
type RealtimeSample struct {
	Timestamp int64  `json:"timestamp"`
	Up        uint64 `json:"up"`
	Down      uint64 `json:"down"`
}

// IPByteCount is a remote peer's cumulative byte total.
type IPByteCount struct {
	IP    string `json:"ip"`
	Bytes uint64 `json:"bytes"`
}

// LocalIPsDiag is the classifier's diagnostic snapshot, exposed over
// /api/debug/local_ips.
type LocalIPsDiag struct {
	IPv4        []string `json:"ipv4"`
	IPv6        []string `json:"ipv6"`
	LANPrefixes []string `json:"lan_prefixes"`
	Mode        string   `json:"mode"`
}

// RangeRow is one row of a range query response, shaped to whatever
// granularity the caller asked for (hour/day/month).
type RangeRow struct {
	Key       string `json:"key"`
	UpBytes   uint64 `json:"up_bytes"`
	DownBytes uint64 `json:"down_bytes"`
}

// RangeSummary totals a RangeRow series.
type RangeSummary struct {
	UpBytes    uint64 `json:"up_bytes"`
	DownBytes  uint64 `json:"down_bytes"`
	TotalBytes uint64 `json:"total_bytes"`
}
