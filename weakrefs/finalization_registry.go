package weakrefs

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tjcrowder/proposal-weakrefs/heap"
)

// ---------------------------------------------------------------------------
// FinalizationRegistry: cleanup callbacks for reclaimed targets
// ---------------------------------------------------------------------------

// Callback is an invocable cleanup handle. It receives the held value of
// a delivered entry. A nil Callback is not invocable.
type Callback func(heldValue heap.Value)

// EntryState is the lifecycle state of a FinalizationEntry.
type EntryState uint8

const (
	// EntryActive: registered, target not yet reclaimed.
	EntryActive EntryState = iota
	// EntryPendingCallback: target reclaimed, callback not yet delivered.
	EntryPendingCallback
	// EntryDelivered: callback has run. Terminal.
	EntryDelivered
	// EntryUnregistered: removed before reclamation. Terminal.
	EntryUnregistered
)

// String returns the state name for diagnostics.
func (s EntryState) String() string {
	switch s {
	case EntryActive:
		return "Active"
	case EntryPendingCallback:
		return "PendingCallback"
	case EntryDelivered:
		return "Delivered"
	case EntryUnregistered:
		return "Unregistered"
	default:
		return "?"
	}
}

// FinalizationEntry is one registration. The target is weakly held via
// the shared slot; the held value is strongly held (rooted by the
// runtime) until the entry reaches a terminal state; the unregister
// token is weakly held as a raw identity and never marked.
// state is guarded by the owning registry's mutex.
type FinalizationEntry struct {
	registry *FinalizationRegistry
	slot     *WeakSlot
	held     heap.Value
	token    *heap.Object // nil when registered without a token
	state    EntryState
}

// FinalizationRegistry owns a set of finalization entries and a default
// cleanup callback. Entries move Active → PendingCallback when the
// collector reports their target reclaimed, and PendingCallback →
// Delivered when the scheduler (or CleanupSome) runs the callback.
// Unregister moves Active entries to Unregistered; entries past Active
// are exempt from unregistration.
type FinalizationRegistry struct {
	rt       *Runtime
	id       uuid.UUID
	callback Callback

	mu             sync.Mutex
	entries        map[*FinalizationEntry]struct{}
	pending        []*FinalizationEntry // entries in EntryPendingCallback, delivery order not significant
	closed         bool
	deliveredTotal uint64
}

// ID returns the registry's identity, used in logs and snapshots.
func (r *FinalizationRegistry) ID() uuid.UUID {
	return r.id
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

// Register creates an Active entry binding target's slot to heldValue.
// Pass heap.Nil as unregisterToken to register without one; an entry
// without a token can never be removed via Unregister.
//
// Fails with ErrInvalidArgument if target is not a live heap object, if
// heldValue is reference-identical to target, or if a token is provided
// that is not an object. A failed call creates no entry.
func (r *FinalizationRegistry) Register(target, heldValue, unregisterToken heap.Value) error {
	if !target.IsObject() {
		return invalidArgumentf("registration target must be an object")
	}
	if heldValue == target {
		return invalidArgumentf("held value must not be the registration target")
	}
	var token *heap.Object
	if !unregisterToken.IsNil() {
		if !unregisterToken.IsObject() {
			return invalidArgumentf("unregister token must be an object")
		}
		token = heap.MustObjectFromValue(unregisterToken)
	}
	targetObj := heap.MustObjectFromValue(target)

	e := &FinalizationEntry{
		registry: r,
		held:     heldValue,
		token:    token,
		state:    EntryActive,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	r.entries[e] = struct{}{}
	r.mu.Unlock()

	r.rt.table.trackEntry(targetObj, e)

	// Track first, then confirm liveness. A pass that reclaimed the
	// target before tracking found no slot to flip, leaving a fresh slot
	// that reports a dead object live and an entry that would stay
	// Active forever. Collect holds the heap lock for the whole pass:
	// once Contains reports the target gone, every flip and entry
	// notification of that pass has already landed, so the entry's state
	// tells the two interleavings apart.
	if !r.rt.heap.Contains(targetObj) {
		r.mu.Lock()
		if e.state == EntryActive {
			// The pass completed before tracking; roll the entry back.
			e.state = EntryUnregistered
			delete(r.entries, e)
			r.mu.Unlock()
			r.rt.table.releaseEntry(e)
			return invalidArgumentf("registration target is not a live heap object")
		}
		// The pass flipped the slot after tracking; the entry is already
		// pending and delivers normally.
		r.mu.Unlock()
	}
	return nil
}

// Unregister moves every Active entry whose token is reference-identical
// to unregisterToken into Unregistered, removing it from future
// delivery. Returns true if at least one entry was removed. Entries
// already pending or delivered are unaffected.
func (r *FinalizationRegistry) Unregister(unregisterToken heap.Value) (bool, error) {
	if !unregisterToken.IsObject() {
		return false, invalidArgumentf("unregister token must be an object")
	}
	token := heap.MustObjectFromValue(unregisterToken)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false, ErrRegistryClosed
	}
	var removed []*FinalizationEntry
	for e := range r.entries {
		if e.state == EntryActive && e.token == token {
			e.state = EntryUnregistered
			delete(r.entries, e)
			removed = append(removed, e)
		}
	}
	r.mu.Unlock()

	for _, e := range removed {
		r.rt.table.releaseEntry(e)
	}
	return len(removed) > 0, nil
}

// ---------------------------------------------------------------------------
// Delivery
// ---------------------------------------------------------------------------

// CleanupSome synchronously delivers every entry pending at call time,
// invoking callback (or the registry's default callback if omitted) once
// per entry with that entry's held value. Entries that become pending
// while callbacks run wait for the next boundary or CleanupSome call.
//
// This is the escape hatch for hosts that never reach a turn boundary;
// interactive hosts rely on the scheduler's automatic delivery instead.
func (r *FinalizationRegistry) CleanupSome(callback ...Callback) error {
	var cb Callback
	switch len(callback) {
	case 0:
		// default callback
	case 1:
		if callback[0] == nil {
			return invalidArgumentf("cleanup callback must be invocable")
		}
		cb = callback[0]
	default:
		return invalidArgumentf("at most one cleanup callback may be supplied")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	batch := make([]*FinalizationEntry, len(r.pending))
	copy(batch, r.pending)
	r.mu.Unlock()

	for _, e := range batch {
		r.deliverWith(e, cb)
	}
	return nil
}

// deliverWith runs the cleanup callback for e if it is still pending.
// A nil cb means the registry's default callback. Returns true if the
// entry was delivered by this call.
//
// The callback runs with no subsystem locks held, so it may freely
// re-enter Register, Unregister, CleanupSome, or force a collection;
// anything newly pending is queued for a later boundary, never
// delivered inline.
func (r *FinalizationRegistry) deliverWith(e *FinalizationEntry, cb Callback) bool {
	r.mu.Lock()
	if r.closed || e.state != EntryPendingCallback {
		r.mu.Unlock()
		return false
	}
	e.state = EntryDelivered
	r.removePendingLocked(e)
	if cb == nil {
		cb = r.callback
	}
	r.mu.Unlock()

	cb(e.held)

	r.mu.Lock()
	delete(r.entries, e)
	r.deliveredTotal++
	r.mu.Unlock()

	r.rt.table.releaseEntry(e)
	return true
}

// removePendingLocked removes e from the pending slice. Caller holds r.mu.
func (r *FinalizationRegistry) removePendingLocked(e *FinalizationEntry) {
	for i, p := range r.pending {
		if p == e {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return
		}
	}
}

// entryReclaimed is the slot table's fan-out target. It runs inside the
// collection pass: internal state only, no user code. The race with a
// concurrent Unregister resolves in favor of whichever transition
// commits first; once pending, unregistration is a no-op for this entry.
func (r *FinalizationRegistry) entryReclaimed(e *FinalizationEntry) {
	r.mu.Lock()
	if r.closed || e.state != EntryActive {
		r.mu.Unlock()
		return
	}
	e.state = EntryPendingCallback
	r.pending = append(r.pending, e)
	r.mu.Unlock()

	r.rt.sched.enqueue(e)
}

// ---------------------------------------------------------------------------
// Rooting and teardown
// ---------------------------------------------------------------------------

// markHeldValues marks the held values of all non-terminal entries as
// heap roots. Called by the runtime's root provider during the mark
// phase; held values stay reachable until their entry is delivered,
// unregistered, or the registry is closed.
func (r *FinalizationRegistry) markHeldValues(mark func(heap.Value)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for e := range r.entries {
		mark(e.held)
	}
}

// Close tears the registry down, modeling the host discarding a registry
// that became unreachable. Pending entries are discarded without
// delivery — the contract never guarantees delivery — and all held
// values stop being roots. Close is idempotent; subsequent operations
// return ErrRegistryClosed.
func (r *FinalizationRegistry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	dropped := make([]*FinalizationEntry, 0, len(r.entries))
	for e := range r.entries {
		if e.state == EntryActive || e.state == EntryPendingCallback {
			e.state = EntryUnregistered
		}
		delete(r.entries, e)
		dropped = append(dropped, e)
	}
	r.pending = nil
	r.mu.Unlock()

	for _, e := range dropped {
		r.rt.table.releaseEntry(e)
	}
	r.rt.removeRegistry(r)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Counts returns the number of entries currently Active and
// PendingCallback.
func (r *FinalizationRegistry) Counts() (active, pending int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for e := range r.entries {
		switch e.state {
		case EntryActive:
			active++
		case EntryPendingCallback:
			pending++
		}
	}
	return active, pending
}

// DeliveredTotal returns the number of callbacks this registry has
// delivered over its lifetime.
func (r *FinalizationRegistry) DeliveredTotal() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deliveredTotal
}
