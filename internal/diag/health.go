// Package diag reports process and host health for /api/health,
// grounded on the same gopsutil process/host introspection the
// example pack's service probe uses.
package diag

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"
)

// Health is the /api/health response body.
type Health struct {
	Uptime      string  `json:"uptime"`
	HostUptime  uint64  `json:"host_uptime_seconds"`
	CPUPercent  float64 `json:"process_cpu_percent"`
	MemRSSBytes uint64  `json:"process_mem_rss_bytes"`
	PID         int32   `json:"pid"`
}

// started is stamped once at process init so Collect can report this
// process's own uptime without depending on gopsutil's process start
// time (unreliable when /proc is unavailable, e.g. inside some
// sandboxes).
var started = time.Now()

// Collect gathers a health snapshot for the current process.
func Collect() Health {
	h := Health{
		Uptime: time.Since(started).Round(time.Second).String(),
		PID:    int32(os.Getpid()),
	}

	if hostUptime, err := host.Uptime(); err == nil {
		h.HostUptime = hostUptime
	}

	p, err := process.NewProcess(h.PID)
	if err != nil {
		return h
	}
	if cpu, err := p.CPUPercent(); err == nil {
		h.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		h.MemRSSBytes = mem.RSS
	}
	return h
}
