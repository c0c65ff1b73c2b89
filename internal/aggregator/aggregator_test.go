package aggregator

import (
	"testing"
	"time"

	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/model"
)

func TestAddBytes_AccumulatesIntoHourBucket(t *testing.T) {
	a := New(time.UTC)
	ts := time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)

	a.AddBytes(model.Upload, 100, "8.8.8.8", ts)
	a.AddBytes(model.Download, 50, "8.8.8.8", ts.Add(20*time.Minute))

	snap := a.SnapshotHourly()
	hc, ok := snap["2026-03-05 10:00:00"]
	if !ok {
		t.Fatalf("expected hour bucket to exist")
	}
	if hc.Up != 100 || hc.Down != 50 {
		t.Errorf("hour bucket = %+v, want Up=100 Down=50", hc)
	}
}

func TestDrainHourly_ResetsState(t *testing.T) {
	a := New(time.UTC)
	a.AddBytes(model.Upload, 10, "1.1.1.1", time.Now())

	drained := a.DrainHourly()
	if len(drained) != 1 {
		t.Fatalf("expected 1 drained bucket, got %d", len(drained))
	}
	if len(a.SnapshotHourly()) != 0 {
		t.Fatalf("hourly map should be empty immediately after drain")
	}

	a.AddBytes(model.Upload, 5, "1.1.1.1", time.Now())
	if len(a.SnapshotHourly()) != 1 {
		t.Fatalf("new writes after drain should land in a fresh bucket")
	}
}

func TestTick_AppendsAndPrunesRing(t *testing.T) {
	a := New(time.UTC)
	base := time.Unix(1_700_000_000, 0)

	a.AddBytes(model.Upload, 1, "1.1.1.1", base)
	a.Tick(base)

	samples := a.Realtime(120)
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}

	a.Tick(base.Add(200 * time.Second))
	samples = a.Realtime(120)
	for _, s := range samples {
		if s.Timestamp <= base.Add(200*time.Second).Add(-120*time.Second).Unix() {
			t.Errorf("ring retained a sample older than the 120s window: %+v", s)
		}
	}
}

func TestTopIPs_SortsDescendingAndRespectsLimit(t *testing.T) {
	a := New(time.UTC)
	now := time.Now()
	a.AddBytes(model.Download, 10, "1.1.1.1", now)
	a.AddBytes(model.Download, 30, "2.2.2.2", now)
	a.AddBytes(model.Download, 20, "3.3.3.3", now)

	top := a.TopIPs(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].IP != "2.2.2.2" || top[1].IP != "3.3.3.3" {
		t.Errorf("unexpected order: %+v", top)
	}
}

func TestFormatV4_DottedQuad(t *testing.T) {
	got := FormatV4(0x08080808)
	if got != "8.8.8.8" {
		t.Errorf("FormatV4 = %q, want 8.8.8.8", got)
	}
}
