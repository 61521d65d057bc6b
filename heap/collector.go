package heap

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Collector: periodic background collection driver
// ---------------------------------------------------------------------------

// CollectorStats holds statistics from a single collection pass.
type CollectorStats struct {
	Reclaimed    int
	LiveObjects  int
	PassDuration time.Duration
	Timestamp    time.Time
}

// Collector periodically runs Collect on a heap. This keeps long-running
// hosts (servers, REPLs, IDE sessions) from accumulating unreachable
// objects between explicit collection requests.
type Collector struct {
	heap     *Heap
	interval time.Duration
	enabled  atomic.Bool
	stop     chan struct{}
	stopped  chan struct{}
	mu       sync.Mutex // protects start/stop lifecycle
	log      commonlog.Logger

	// Statistics
	passCount atomic.Uint64
	lastStats atomic.Value // *CollectorStats
}

// DefaultCollectInterval is the default pass interval for the background
// collector.
const DefaultCollectInterval = 30 * time.Second

// NewCollector creates a new Collector for the given heap with the
// specified pass interval. Use DefaultCollectInterval for the default (30s).
func NewCollector(h *Heap, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	c := &Collector{
		heap:     h,
		interval: interval,
		log:      commonlog.GetLogger("heap.collector"),
	}
	c.enabled.Store(true)
	return c
}

// Start begins the periodic collection goroutine. It is safe to call
// Start multiple times; only one collection loop will run.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return // already running
	}

	c.stop = make(chan struct{})
	c.stopped = make(chan struct{})

	// Capture channels locally so the goroutine does not read c.stop/c.stopped
	// after Stop() has nilled them out.
	stopCh := c.stop
	stoppedCh := c.stopped
	go c.loop(stopCh, stoppedCh)
}

// Stop halts the periodic collection goroutine and waits for it to finish.
// It is safe to call Stop multiple times or on a Collector that was never
// started.
func (c *Collector) Stop() {
	c.mu.Lock()
	stopCh := c.stop
	stoppedCh := c.stopped
	c.stop = nil
	c.stopped = nil
	c.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-stoppedCh
	}
}

// SetEnabled enables or disables collection passes. When disabled, the
// goroutine still runs but skips passes.
func (c *Collector) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

// IsEnabled returns whether collection is currently enabled.
func (c *Collector) IsEnabled() bool {
	return c.enabled.Load()
}

// Interval returns the current pass interval.
func (c *Collector) Interval() time.Duration {
	return c.interval
}

// PassCount returns the total number of passes performed.
func (c *Collector) PassCount() uint64 {
	return c.passCount.Load()
}

// LastStats returns statistics from the most recent pass, or nil if no
// pass has been performed yet.
func (c *Collector) LastStats() *CollectorStats {
	v := c.lastStats.Load()
	if v == nil {
		return nil
	}
	return v.(*CollectorStats)
}

// CollectNow performs an immediate pass regardless of the timer.
// This is useful for testing and manual cleanup.
func (c *Collector) CollectNow() *CollectorStats {
	return c.pass()
}

// loop is the collector goroutine that periodically invokes pass.
// stopCh and stoppedCh are captured copies of c.stop and c.stopped
// to avoid reading struct fields that may be nilled by Stop().
func (c *Collector) loop(stopCh <-chan struct{}, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if c.enabled.Load() {
				c.pass()
			}
		}
	}
}

// pass performs one collection pass and records stats.
func (c *Collector) pass() *CollectorStats {
	start := time.Now()

	reclaimed := c.heap.Collect()

	stats := &CollectorStats{
		Reclaimed:    reclaimed,
		LiveObjects:  c.heap.ObjectCount(),
		PassDuration: time.Since(start),
		Timestamp:    start,
	}

	c.passCount.Add(1)
	c.lastStats.Store(stats)

	c.log.Debugf("collection pass: reclaimed=%d live=%d duration=%s",
		stats.Reclaimed, stats.LiveObjects, stats.PassDuration)

	return stats
}
