// Package refresh periodically re-reads the monitored interface's
// addresses and updates the classifier's tables, adapting to SLAAC
// rotation and carrier reconnects without restarting the process.
package refresh

import (
	"log"
	"net/netip"
	"time"

	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/classifier"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/ifaceaddr"
)

// BaseTick is the fixed refresh interval.
const BaseTick = 600 * time.Second

// PrefixRefreshEvery is how many base ticks accumulate before an
// unconditional GUA /56 re-derivation runs, independent of whether the
// address set changed.
const PrefixRefreshEvery = 6

// Scheduler re-runs the Interface Inspector on a fixed tick and
// updates the Classifier's address tables when they change.
type Scheduler struct {
	iface      string
	classifier *classifier.Classifier

	lastV4, lastV6 []string
	tickCount      int
}

// New creates a Scheduler for iface.
func New(iface string, cl *classifier.Classifier) *Scheduler {
	return &Scheduler{iface: iface, classifier: cl}
}

// RefreshNow runs one refresh cycle immediately, useful for the
// initial population at startup.
func (s *Scheduler) RefreshNow() {
	s.refresh(true)
}

// Run blocks, refreshing on BaseTick until done is closed.
func (s *Scheduler) Run(done <-chan struct{}) {
	ticker := time.NewTicker(BaseTick)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.tickCount++
			s.refresh(false)
			if s.tickCount >= PrefixRefreshEvery {
				s.tickCount = 0
				s.refreshPrefixesUnconditionally()
			}
		}
	}
}

func (s *Scheduler) refresh(initial bool) {
	addrs, err := ifaceaddr.Addresses(s.iface)
	if err != nil {
		log.Printf("refresh: failed to read addresses for %s: %v (keeping previous tables)", s.iface, err)
		return
	}

	v4, v6 := splitByFamily(addrs)
	changed := initial || !sameSet(v4, s.lastV4) || !sameSet(v6, s.lastV6)
	if !changed {
		return
	}

	added, removed := diffSet(s.lastV4, s.lastV6, v4, v6)
	log.Printf("refresh: local IPs on %s -> IPv4: %v, IPv6: %v", s.iface, v4, v6)
	if len(added) > 0 {
		log.Printf("refresh:   + added: %v", added)
	}
	if len(removed) > 0 {
		log.Printf("refresh:   - removed: %v", removed)
	}

	newV4, newV6, err := toTables(addrs)
	if err != nil {
		log.Printf("refresh: error building tables: %v", err)
		return
	}

	var prefixes []netip.Prefix
	if s.classifier.Mode() == classifier.ModeAuto {
		prefixes = ifaceaddr.DeriveGUASlash56(addrs)
	}
	s.classifier.ReplaceTables(newV4, newV6, v4, v6, prefixes)

	s.lastV4, s.lastV6 = v4, v6

	if s.classifier.Mode() == classifier.ModeAuto {
		logPrefixResult(prefixes)
	}
}

// refreshPrefixesUnconditionally re-derives the GUA /56 prefixes even
// if the address set hasn't visibly changed: a carrier reconnect can
// shift the delegated prefix without the individual address strings
// changing in the same tick.
func (s *Scheduler) refreshPrefixesUnconditionally() {
	if s.classifier.Mode() != classifier.ModeAuto {
		return
	}
	addrs, err := ifaceaddr.Addresses(s.iface)
	if err != nil {
		log.Printf("refresh: prefix re-derivation failed to read addresses: %v", err)
		return
	}
	prefixes := ifaceaddr.DeriveGUASlash56(addrs)

	newV4, newV6, err := toTables(addrs)
	if err != nil {
		log.Printf("refresh: error building tables: %v", err)
		return
	}
	v4, v6 := splitByFamily(addrs)
	s.classifier.ReplaceTables(newV4, newV6, v4, v6, prefixes)
	logPrefixResult(prefixes)
}

func logPrefixResult(prefixes []netip.Prefix) {
	if len(prefixes) == 0 {
		log.Printf("refresh: no GUA found; LAN filtering falls back to built-in excludes only")
		return
	}
	log.Printf("refresh: auto GUA /56 prefixes updated: %v", prefixes)
}
