// Command ns-meter is the single NetTraffic-Sentinel binary: it owns
// the capture loop, the in-memory aggregator, the refresh scheduler,
// the persistence driver, and the HTTP query server, all in one
// process sharing memory rather than coordinating across a wire
// boundary.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/aggregator"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/capture"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/classifier"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/config"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/httpapi"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/persist"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/refresh"
	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	loc := setupTimezone(cfg.TZ)

	log.Println(strings.Repeat("=", 50))
	log.Println("  NetTraffic-Sentinel starting up")
	log.Printf("  Interface     : %s", cfg.MonitorIface)
	log.Printf("  Web Port      : %d", cfg.WebPort)
	log.Printf("  DB Path       : %s", cfg.DBPath)
	log.Printf("  Save Interval : %ds", cfg.SaveInterval)
	log.Println(strings.Repeat("=", 50))

	cl, err := classifier.New(cfg.ExcludeIPv6Prefix)
	if err != nil {
		log.Fatalf("failed to build classifier: %v", err)
	}

	agg := aggregator.New(loc)

	fs, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open file store: %v", err)
	}

	sinks := []store.Writer{fs}
	if cfg.ClickHouse != nil {
		ch, err := store.NewClickHouseWriter(*cfg.ClickHouse, loc)
		if err != nil {
			log.Printf("clickhouse sink unavailable, continuing with file store only: %v", err)
		} else {
			sinks = append(sinks, ch)
			defer ch.Close()
		}
	}

	scheduler := refresh.New(cfg.MonitorIface, cl)
	scheduler.RefreshNow()

	refreshDone := make(chan struct{})
	go scheduler.Run(refreshDone)

	loop := capture.New(cfg.MonitorIface, cl, agg)
	go loop.Run()

	tickDone := make(chan struct{})
	go runTicker(agg, tickDone)

	driver := persist.New(agg, time.Duration(cfg.SaveInterval)*time.Second, sinks...)
	persistDone := make(chan struct{})
	persistStopped := make(chan struct{})
	go func() {
		driver.Run(persistDone)
		close(persistStopped)
	}()

	server := httpapi.New(fmt.Sprintf(":%d", cfg.WebPort), fs, agg, cl, loc)
	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	close(refreshDone)
	close(tickDone)
	loop.Stop()
	close(persistDone)
	<-persistStopped

	if err := server.Shutdown(5 * time.Second); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	log.Println("shutdown complete")
}

// runTicker drives the aggregator's 1Hz realtime sampling.
func runTicker(agg *aggregator.Aggregator, done <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			agg.Tick(now)
		case <-done:
			return
		}
	}
}

// setupTimezone loads the IANA zone named by tz (falling back to
// time.Local if unset or unknown) and logs the local time under it,
// mirroring the original program's explicit TZ activation so the
// choice is visible in the startup log rather than implicit.
func setupTimezone(tz string) *time.Location {
	if tz == "" {
		log.Println("TZ env var not set; using system default timezone")
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("TZ %q could not be loaded (%v); using system default timezone", tz, err)
		return time.Local
	}
	log.Printf("TZ environment variable detected: %s", tz)
	log.Printf("current local time: %s", time.Now().In(loc).Format("2006-01-02 15:04:05 MST"))
	return loc
}
