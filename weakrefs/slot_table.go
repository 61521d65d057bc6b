package weakrefs

import (
	"sync"

	"github.com/tjcrowder/proposal-weakrefs/heap"
)

// ---------------------------------------------------------------------------
// SlotTable: shared registry of weakly-held targets
// ---------------------------------------------------------------------------

// WeakSlot is the shared liveness record for one tracked target. Every
// WeakReference and FinalizationEntry bound to the same target shares
// one slot. All fields are guarded by the owning table's mutex.
//
// The live bit is one-way: once the collector reports the target
// reclaimed it never reverts to true. A slot is retired when its last
// observer lets go of it.
type WeakSlot struct {
	target   *heap.Object
	live     bool
	entries  map[*FinalizationEntry]struct{}
	weakRefs int // observer count for WeakReferences (held by refcount, not identity)
}

// SlotTable is the single source of truth for "is this tracked address
// still reachable". It implements heap.ReclaimObserver: the collector's
// notification feed flips live bits and fans out to finalization
// entries, which only update internal state during the pass.
type SlotTable struct {
	mu    sync.Mutex
	slots map[*heap.Object]*WeakSlot
}

// NewSlotTable creates an empty slot table.
func NewSlotTable() *SlotTable {
	return &SlotTable{
		slots: make(map[*heap.Object]*WeakSlot),
	}
}

// trackLocked returns the slot for target, allocating one with the live
// bit set if the target is not yet tracked. Caller holds t.mu.
//
// A reclaimed target's slot is unmapped in ObjectReclaimed, so a lookup
// here can never hand out a stale slot for a reused address.
func (t *SlotTable) trackLocked(target *heap.Object) *WeakSlot {
	if s, ok := t.slots[target]; ok {
		return s
	}
	s := &WeakSlot{
		target:  target,
		live:    true,
		entries: make(map[*FinalizationEntry]struct{}),
	}
	t.slots[target] = s
	return s
}

// trackWeakRef binds a new WeakReference observer to target's slot.
func (t *SlotTable) trackWeakRef(target *heap.Object) *WeakSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.trackLocked(target)
	s.weakRefs++
	return s
}

// trackEntry binds a finalization entry to target's slot and records the
// slot on the entry.
func (t *SlotTable) trackEntry(target *heap.Object, e *FinalizationEntry) *WeakSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.trackLocked(target)
	s.entries[e] = struct{}{}
	e.slot = s
	return s
}

// releaseWeakRef drops one WeakReference observer from s.
func (t *SlotTable) releaseWeakRef(s *WeakSlot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.weakRefs > 0 {
		s.weakRefs--
	}
	t.maybeRetireLocked(s)
}

// releaseEntry drops a finalization entry observer from its slot.
func (t *SlotTable) releaseEntry(e *FinalizationEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := e.slot
	if s == nil {
		return
	}
	delete(s.entries, e)
	t.maybeRetireLocked(s)
}

// maybeRetireLocked unmaps s once its observer set is empty.
// Caller holds t.mu.
func (t *SlotTable) maybeRetireLocked(s *WeakSlot) {
	if len(s.entries) == 0 && s.weakRefs == 0 {
		if t.slots[s.target] == s {
			delete(t.slots, s.target)
		}
	}
}

// resolve returns the slot's target and whether it is still live.
func (t *SlotTable) resolve(s *WeakSlot) (*heap.Object, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return s.target, s.live
}

// SlotCount returns the number of currently tracked targets.
func (t *SlotTable) SlotCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// ---------------------------------------------------------------------------
// Collector notification feed
// ---------------------------------------------------------------------------

// ObjectReclaimed implements heap.ReclaimObserver. The collector calls
// it once per reclaimed tracked address, after tracing completes and
// before the address can be reused. It flips the slot's live bit,
// unmaps the address, and notifies every bound finalization entry.
// No user code runs here; entries only move to their pending queues.
func (t *SlotTable) ObjectReclaimed(obj *heap.Object) {
	t.mu.Lock()
	s, ok := t.slots[obj]
	if !ok {
		t.mu.Unlock()
		return
	}
	s.live = false
	// Unmap immediately: the address may be reused for a different
	// object, and a later track call must get a fresh slot.
	delete(t.slots, obj)

	observers := make([]*FinalizationEntry, 0, len(s.entries))
	for e := range s.entries {
		observers = append(observers, e)
	}
	t.mu.Unlock()

	for _, e := range observers {
		e.registry.entryReclaimed(e)
	}
}
