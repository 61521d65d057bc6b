package weakrefs

import (
	"runtime"
	"sync"

	"github.com/tjcrowder/proposal-weakrefs/heap"
)

// ---------------------------------------------------------------------------
// WeakReference: a reference that doesn't keep its target alive
// ---------------------------------------------------------------------------

// WeakReference is a non-owning handle to a heap object. Deref returns
// the target while it is still reachable and heap.Nil afterwards.
//
// Deref is turn-stable: within one turn every call returns the same
// result, regardless of collector activity between the calls. The
// reference caches its resolution for the turn it was resolved in, and
// the cache is seeded at construction, so a reference created and
// dereferenced in the same turn always resolves to its target. Liveness
// transitions only become observable at turn boundaries.
//
// A WeakReference has no destruction API. Its slot observer count is
// dropped by a Go finalizer once the reference itself is unreachable,
// independent of the target's liveness.
type WeakReference struct {
	rt   *Runtime
	slot *WeakSlot

	mu        sync.Mutex
	snapTurn  uint64
	snapValue heap.Value
	hasSnap   bool
}

// newWeakReference binds a reference to target's (possibly shared) slot.
// Callers check the value kind first; see Runtime.NewWeakReference.
func newWeakReference(rt *Runtime, target *heap.Object) (*WeakReference, error) {
	slot := rt.table.trackWeakRef(target)

	// Track first, then confirm liveness. A pass that reclaimed the
	// target before tracking found no slot to flip, so the fresh slot
	// would report a dead object live forever. Collect holds the heap
	// lock for the whole pass: once Contains reports the target gone,
	// every slot flip of that pass has already landed, so a live slot
	// here is stale and must be rolled back.
	if !rt.heap.Contains(target) {
		rt.table.releaseWeakRef(slot)
		return nil, invalidArgumentf("weak reference target is not a live heap object")
	}

	wr := &WeakReference{
		rt:   rt,
		slot: slot,
	}

	// Seed the per-turn resolution snapshot with the target itself.
	wr.snapTurn = rt.sched.CurrentTurn()
	wr.snapValue = target.ToValue()
	wr.hasSnap = true

	// The slot holds a count, not the reference, so the finalizer can run.
	runtime.SetFinalizer(wr, func(w *WeakReference) {
		w.rt.table.releaseWeakRef(w.slot)
	})
	return wr, nil
}

// Deref returns the target object, or heap.Nil if it has been reclaimed.
// Side-effect-free from the caller's point of view; never fails.
func (wr *WeakReference) Deref() heap.Value {
	turn := wr.rt.sched.CurrentTurn()

	wr.mu.Lock()
	defer wr.mu.Unlock()

	if wr.hasSnap && wr.snapTurn == turn {
		return wr.snapValue
	}

	v := heap.Nil
	if target, live := wr.rt.table.resolve(wr.slot); live {
		v = target.ToValue()
	}
	wr.snapTurn = turn
	wr.snapValue = v
	wr.hasSnap = true
	return v
}

// IsAlive returns true if the target has not been reclaimed, under the
// same turn-stability rules as Deref.
func (wr *WeakReference) IsAlive() bool {
	return wr.Deref() != heap.Nil
}
