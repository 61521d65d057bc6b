package heap

import (
	"testing"
	"time"
)

func TestNewCollectorDefaultInterval(t *testing.T) {
	c := NewCollector(NewHeap(), 0)
	if c.Interval() != DefaultCollectInterval {
		t.Errorf("Interval = %s, want %s", c.Interval(), DefaultCollectInterval)
	}
	if !c.IsEnabled() {
		t.Error("collector should start enabled")
	}
}

func TestCollectNow(t *testing.T) {
	h := NewHeap()
	h.Allocate(1)
	h.Allocate(1)
	keep := h.Allocate(1)
	h.Pin(keep)

	c := NewCollector(h, time.Hour)
	stats := c.CollectNow()

	if stats.Reclaimed != 2 {
		t.Errorf("Reclaimed = %d, want 2", stats.Reclaimed)
	}
	if stats.LiveObjects != 1 {
		t.Errorf("LiveObjects = %d, want 1", stats.LiveObjects)
	}
	if c.PassCount() != 1 {
		t.Errorf("PassCount = %d, want 1", c.PassCount())
	}
	if c.LastStats() != stats {
		t.Error("LastStats should return the most recent pass stats")
	}
}

func TestLastStatsNilBeforeFirstPass(t *testing.T) {
	c := NewCollector(NewHeap(), time.Hour)
	if c.LastStats() != nil {
		t.Error("LastStats should be nil before the first pass")
	}
}

func TestSetEnabled(t *testing.T) {
	c := NewCollector(NewHeap(), time.Hour)
	c.SetEnabled(false)
	if c.IsEnabled() {
		t.Error("collector should report disabled")
	}
	c.SetEnabled(true)
	if !c.IsEnabled() {
		t.Error("collector should report enabled")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	c := NewCollector(NewHeap(), time.Hour)

	// Start twice, stop twice: both must be safe.
	c.Start()
	c.Start()
	c.Stop()
	c.Stop()

	// Stop on a never-started collector is safe too.
	c2 := NewCollector(NewHeap(), time.Hour)
	c2.Stop()
}

func TestBackgroundPassRuns(t *testing.T) {
	h := NewHeap()
	h.Allocate(1)

	c := NewCollector(h, 5*time.Millisecond)
	c.Start()
	defer c.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for c.PassCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("background collector never ran a pass")
		}
		time.Sleep(time.Millisecond)
	}
}
