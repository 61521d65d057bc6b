package weakrefs

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/tjcrowder/proposal-weakrefs/config"
	"github.com/tjcrowder/proposal-weakrefs/heap"
)

// ---------------------------------------------------------------------------
// Runtime: wires the subsystem into a heap
// ---------------------------------------------------------------------------

// Runtime owns one slot table, one scheduler, and the set of live
// finalization registries for a single heap. Constructing a Runtime
// registers it with the heap as both reclaim observer (the collector's
// notification feed) and root provider (held values of non-terminal
// entries stay reachable).
//
// The runtime's lifetime is scoped to the owning heap instance; it is
// not process-global state.
type Runtime struct {
	heap  *heap.Heap
	table *SlotTable
	sched *Scheduler
	log   commonlog.Logger

	mu         sync.Mutex
	registries map[*FinalizationRegistry]struct{}
}

// NewRuntime creates a weak reference runtime bound to h, tuned by cfg.
// A nil cfg uses config.Default().
func NewRuntime(h *heap.Heap, cfg *config.Config) *Runtime {
	if cfg == nil {
		cfg = config.Default()
	}
	rt := &Runtime{
		heap:       h,
		table:      NewSlotTable(),
		sched:      NewScheduler(cfg.Scheduler.MaxCallbacksPerBoundary),
		log:        commonlog.GetLogger("weakrefs"),
		registries: make(map[*FinalizationRegistry]struct{}),
	}
	h.AddReclaimObserver(rt.table)
	h.AddRootProvider(rt.markRegistryRoots)
	return rt
}

// markRegistryRoots contributes every live registry's held values to the
// mark phase.
func (rt *Runtime) markRegistryRoots(mark func(heap.Value)) {
	rt.mu.Lock()
	regs := make([]*FinalizationRegistry, 0, len(rt.registries))
	for r := range rt.registries {
		regs = append(regs, r)
	}
	rt.mu.Unlock()

	for _, r := range regs {
		r.markHeldValues(mark)
	}
}

// ---------------------------------------------------------------------------
// Construction surface
// ---------------------------------------------------------------------------

// NewWeakReference creates a weak reference to target. Fails with
// ErrInvalidArgument if target is not a live heap object; a failed call
// creates no slot observer.
func (rt *Runtime) NewWeakReference(target heap.Value) (*WeakReference, error) {
	if !target.IsObject() {
		return nil, invalidArgumentf("weak reference target must be an object")
	}
	return newWeakReference(rt, heap.MustObjectFromValue(target))
}

// NewFinalizationRegistry creates a registry with the given default
// cleanup callback. Fails with ErrInvalidArgument if the callback is
// not invocable.
func (rt *Runtime) NewFinalizationRegistry(cleanupCallback Callback) (*FinalizationRegistry, error) {
	if cleanupCallback == nil {
		return nil, invalidArgumentf("cleanup callback must be invocable")
	}
	r := &FinalizationRegistry{
		rt:       rt,
		id:       uuid.New(),
		callback: cleanupCallback,
		entries:  make(map[*FinalizationEntry]struct{}),
	}

	rt.mu.Lock()
	rt.registries[r] = struct{}{}
	rt.mu.Unlock()

	rt.log.Debugf("finalization registry %s created", r.id)
	return r, nil
}

// removeRegistry drops a closed registry from the root-providing set.
func (rt *Runtime) removeRegistry(r *FinalizationRegistry) {
	rt.mu.Lock()
	delete(rt.registries, r)
	rt.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Host hooks and accessors
// ---------------------------------------------------------------------------

// EndTurn marks a turn boundary; see Scheduler.EndTurn.
func (rt *Runtime) EndTurn() int {
	return rt.sched.EndTurn()
}

// CurrentTurn returns the scheduler's current turn number.
func (rt *Runtime) CurrentTurn() uint64 {
	return rt.sched.CurrentTurn()
}

// Heap returns the heap this runtime is bound to.
func (rt *Runtime) Heap() *heap.Heap {
	return rt.heap
}

// Scheduler returns the cleanup callback scheduler.
func (rt *Runtime) Scheduler() *Scheduler {
	return rt.sched
}

// TrackedSlotCount returns the number of currently tracked targets.
func (rt *Runtime) TrackedSlotCount() int {
	return rt.table.SlotCount()
}

// Registries returns a snapshot of the live finalization registries.
func (rt *Runtime) Registries() []*FinalizationRegistry {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	regs := make([]*FinalizationRegistry, 0, len(rt.registries))
	for r := range rt.registries {
		regs = append(regs, r)
	}
	return regs
}
