package weakrefs

import (
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Scheduler: turn boundaries and automatic callback delivery
// ---------------------------------------------------------------------------

// Scheduler owns the turn counter and the cross-registry queue of
// pending cleanup callbacks. The host's run loop calls EndTurn at each
// turn boundary — after the current synchronous unit of execution and
// its chained deferred reactions have fully unwound — and the scheduler
// delivers some or all queued callbacks there. Callbacks are never
// interleaved into the middle of running user code, and delivery is
// never guaranteed: a host that stops calling EndTurn simply leaves the
// queue unserviced, which conforms to the contract.
type Scheduler struct {
	log            commonlog.Logger
	maxPerBoundary int // 0 means unlimited

	turn       atomic.Uint64
	boundaries atomic.Uint64
	delivered  atomic.Uint64

	mu    sync.Mutex
	queue []*FinalizationEntry
}

// NewScheduler creates a scheduler delivering at most maxPerBoundary
// callbacks per turn boundary; zero or negative means no cap.
func NewScheduler(maxPerBoundary int) *Scheduler {
	if maxPerBoundary < 0 {
		maxPerBoundary = 0
	}
	return &Scheduler{
		log:            commonlog.GetLogger("weakrefs.scheduler"),
		maxPerBoundary: maxPerBoundary,
	}
}

// CurrentTurn returns the current turn number. WeakReference resolution
// snapshots are keyed by this value.
func (s *Scheduler) CurrentTurn() uint64 {
	return s.turn.Load()
}

// enqueue adds a pending entry to the cross-registry queue. Insertion
// order carries no delivery-order guarantee.
func (s *Scheduler) enqueue(e *FinalizationEntry) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()
}

// EndTurn is the host hook marking a turn boundary. It advances the
// turn counter first — so callbacks and subsequent user code observe
// post-boundary liveness — then delivers queued callbacks until the
// per-boundary cap is reached. Entries already dealt with via
// CleanupSome, Unregister, or Close drop out of the queue without
// charging the cap. Entries that become pending while callbacks run
// stay queued for the next boundary. Returns the number delivered.
func (s *Scheduler) EndTurn() int {
	boundary := s.turn.Add(1)
	s.boundaries.Add(1)

	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()

	delivered := 0
	next := 0
	for ; next < len(batch); next++ {
		if s.maxPerBoundary > 0 && delivered == s.maxPerBoundary {
			break
		}
		if batch[next].registry.deliverWith(batch[next], nil) {
			delivered++
		}
	}
	if next < len(batch) {
		rest := make([]*FinalizationEntry, len(batch)-next)
		copy(rest, batch[next:])
		s.mu.Lock()
		s.queue = append(s.queue, rest...)
		s.mu.Unlock()
	}

	if delivered > 0 {
		s.delivered.Add(uint64(delivered))
		s.log.Debugf("turn boundary %d: delivered %d cleanup callbacks", boundary, delivered)
	}
	return delivered
}

// QueuedCount returns the number of entries currently queued for
// automatic delivery, including entries that may since have been
// delivered via CleanupSome.
func (s *Scheduler) QueuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Boundaries returns the number of EndTurn calls.
func (s *Scheduler) Boundaries() uint64 {
	return s.boundaries.Load()
}

// DeliveredTotal returns the number of callbacks delivered by the
// scheduler (excluding CleanupSome deliveries).
func (s *Scheduler) DeliveredTotal() uint64 {
	return s.delivered.Load()
}
