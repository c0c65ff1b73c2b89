// Package persist drives the periodic drain-and-commit cycle: every
// SAVE_INTERVAL seconds it takes the aggregator's hourly increments
// and fans them out to every configured store.Writer.
package persist

import (
	"log"
	"time"

	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/aggregator"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/store"
)

// Driver owns the save ticker and the list of sinks a drained hourly
// map is committed to.
type Driver struct {
	agg      *aggregator.Aggregator
	sinks    []store.Writer
	interval time.Duration
}

// New creates a Driver. sinks[0] is conventionally the local
// FileStore; any further sinks (e.g. the optional ClickHouse writer)
// are best-effort.
func New(agg *aggregator.Aggregator, interval time.Duration, sinks ...store.Writer) *Driver {
	return &Driver{agg: agg, sinks: sinks, interval: interval}
}

// Run blocks, committing on each tick until done is closed. On
// shutdown it performs one final drain so the last partial interval
// isn't lost.
func (d *Driver) Run(done <-chan struct{}) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.commit()
		case <-done:
			d.commit()
			return
		}
	}
}

// commit drains the aggregator's hourly map once and writes the
// result to every sink. A sink that errors is logged and skipped for
// this tick: the drained data is not retried, since the drain has
// already removed it from the aggregator's memory.
func (d *Driver) commit() {
	hourly := d.agg.DrainHourly()
	if len(hourly) == 0 {
		return
	}

	for _, sink := range d.sinks {
		if sink == nil {
			continue
		}
		if err := sink.CommitHourly(hourly); err != nil {
			log.Printf("persist: commit failed: %v", err)
		}
	}
}
