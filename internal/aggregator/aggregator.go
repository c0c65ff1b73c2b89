// Package aggregator implements the thread-safe in-memory statistics
// store: per-hour up/down byte totals, per-remote-IP cumulative
// totals, and a rolling one-second realtime sample ring.
package aggregator

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/model"
)

const ringWindow = 120 * time.Second

// Aggregator guards all of its state behind a single mutex. Critical
// sections are a handful of integer updates; allocation under the lock
// is limited to inserting a new hour key or remote IP and to Tick's
// ring append and prune.
type Aggregator struct {
	mu  sync.Mutex
	loc *time.Location

	hourly    map[string]model.HourCounts
	ipCounter map[string]uint64

	curUp   uint64
	curDown uint64

	ring []model.RealtimeSample
}

// New creates an Aggregator. loc is the timezone used to format hour
// keys; pass time.Local to follow the process's TZ setting.
func New(loc *time.Location) *Aggregator {
	return &Aggregator{
		loc:       loc,
		hourly:    make(map[string]model.HourCounts),
		ipCounter: make(map[string]uint64),
	}
}

func (a *Aggregator) hourKey(ts time.Time) string {
	return ts.In(a.loc).Format("2006-01-02 15:00:00")
}

// AddBytes records one traffic event. size must be the IP-layer
// declared length, not the captured frame length.
func (a *Aggregator) AddBytes(dir model.Direction, size uint64, remoteIP string, ts time.Time) {
	key := a.hourKey(ts)

	a.mu.Lock()
	defer a.mu.Unlock()

	hc := a.hourly[key]
	if dir == model.Upload {
		hc.Up += size
		a.curUp += size
	} else {
		hc.Down += size
		a.curDown += size
	}
	a.hourly[key] = hc

	a.ipCounter[remoteIP] += size
}

// Tick is called at 1 Hz: it snapshots and resets the current-second
// counters, appends a sample to the realtime ring, and prunes
// entries older than the ring window.
func (a *Aggregator) Tick(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	up, down := a.curUp, a.curDown
	a.curUp, a.curDown = 0, 0

	a.ring = append(a.ring, model.RealtimeSample{
		Timestamp: now.Unix(),
		Up:        up,
		Down:      down,
	})

	cutoff := now.Add(-ringWindow).Unix()
	i := 0
	for ; i < len(a.ring); i++ {
		if a.ring[i].Timestamp > cutoff {
			break
		}
	}
	if i > 0 {
		a.ring = append([]model.RealtimeSample(nil), a.ring[i:]...)
	}
}

// DrainHourly swaps the internal hourly map out for a fresh empty map
// and returns the old one. It is the only operation that removes
// entries from hourly.
func (a *Aggregator) DrainHourly() map[string]model.HourCounts {
	a.mu.Lock()
	defer a.mu.Unlock()

	drained := a.hourly
	a.hourly = make(map[string]model.HourCounts)
	return drained
}

// SnapshotHourly returns a copy of the in-memory hourly increments
// without draining them, for blending into HTTP query responses that
// need "so far this hour/day/month" numbers.
func (a *Aggregator) SnapshotHourly() map[string]model.HourCounts {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]model.HourCounts, len(a.hourly))
	for k, v := range a.hourly {
		out[k] = v
	}
	return out
}

// Realtime returns the samples from the last `seconds` seconds,
// oldest first. seconds is clamped to the ring window (120s). The
// window is measured back from the newest sample in the ring, not
// wall-clock time, so a reader never misses samples because its
// request landed a moment after the last tick.
func (a *Aggregator) Realtime(seconds int) []model.RealtimeSample {
	if seconds > 120 {
		seconds = 120
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.ring) == 0 {
		return nil
	}

	newest := a.ring[len(a.ring)-1].Timestamp
	cutoff := newest - int64(seconds)
	out := make([]model.RealtimeSample, 0, len(a.ring))
	for _, s := range a.ring {
		if s.Timestamp > cutoff {
			out = append(out, s)
		}
	}
	return out
}

// TopIPs returns the n remote IPs with the highest cumulative byte
// count since process start, sorted descending.
func (a *Aggregator) TopIPs(n int) []model.IPByteCount {
	a.mu.Lock()
	out := make([]model.IPByteCount, 0, len(a.ipCounter))
	for ip, b := range a.ipCounter {
		out = append(out, model.IPByteCount{IP: ip, Bytes: b})
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Bytes > out[j].Bytes })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// FormatV4 renders a big-endian uint32 as a dotted-quad string.
func FormatV4(ip uint32) string {
	b := []byte{byte(ip >> 24), byte(ip >> 16), byte(ip >> 8), byte(ip)}
	return net.IP(b).String()
}

// FormatV6 renders a 16-byte address as its string form.
func FormatV6(addr [16]byte) string {
	return net.IP(addr[:]).String()
}
