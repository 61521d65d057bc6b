package heap

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Heap: object arena and reachability oracle
// ---------------------------------------------------------------------------

// ReclaimObserver is notified when a tracked object is reclaimed.
//
// ObjectReclaimed is called exactly once per reclaimed object per
// collection pass, after tracing has completed and before the object is
// dropped from the arena. It runs inside the collection pass, outside of
// any user-code execution window: implementations only update internal
// state and must not invoke user callbacks from here.
type ReclaimObserver interface {
	ObjectReclaimed(obj *Object)
}

// RootProvider contributes additional roots to the mark phase.
// The provider calls mark for every value it holds strongly.
// Providers run inside the collection pass and must not allocate on the
// heap or invoke user code.
type RootProvider func(mark func(v Value))

// Heap is an arena of managed objects with a mark-sweep collector.
// Reachability is defined by pinned roots plus whatever registered
// RootProviders mark; everything else is reclaimed on Collect.
type Heap struct {
	mu        sync.Mutex
	objects   map[*Object]struct{}
	roots     map[*Object]int // pin counts
	providers []RootProvider
	observers []ReclaimObserver

	collections atomic.Uint64
	reclaimed   atomic.Uint64
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{
		objects: make(map[*Object]struct{}),
		roots:   make(map[*Object]int),
	}
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

// Allocate creates a new object with the given slot count, all slots Nil.
// The object is not rooted; pin it or store it in a reachable object
// before the next collection or it will be reclaimed.
func (h *Heap) Allocate(numSlots int) *Object {
	obj := &Object{slot0: Nil, slot1: Nil, slot2: Nil, slot3: Nil}
	if numSlots > NumInlineSlots {
		obj.overflow = make([]Value, numSlots-NumInlineSlots)
		for i := range obj.overflow {
			obj.overflow[i] = Nil
		}
	}

	h.mu.Lock()
	h.objects[obj] = struct{}{}
	h.mu.Unlock()
	return obj
}

// AllocateWithSlots creates a new object and initializes its slots.
func (h *Heap) AllocateWithSlots(slots []Value) *Object {
	obj := h.Allocate(len(slots))
	for i, v := range slots {
		obj.SetSlot(i, v)
	}
	return obj
}

// Contains reports whether obj is a live object in this heap's arena.
// A reclaimed object is no longer contained, even though the Go pointer
// to it remains valid.
func (h *Heap) Contains(obj *Object) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.objects[obj]
	return ok
}

// ---------------------------------------------------------------------------
// Roots
// ---------------------------------------------------------------------------

// Pin adds obj to the root set. Pins nest: each Pin must be balanced by
// an Unpin before the object becomes collectable again.
func (h *Heap) Pin(obj *Object) {
	h.mu.Lock()
	h.roots[obj]++
	h.mu.Unlock()
}

// Unpin removes one pin from obj. Unpinning an object that is not
// pinned is a no-op.
func (h *Heap) Unpin(obj *Object) {
	h.mu.Lock()
	if n, ok := h.roots[obj]; ok {
		if n <= 1 {
			delete(h.roots, obj)
		} else {
			h.roots[obj] = n - 1
		}
	}
	h.mu.Unlock()
}

// AddRootProvider registers a provider that contributes extra roots to
// every subsequent mark phase.
func (h *Heap) AddRootProvider(p RootProvider) {
	h.mu.Lock()
	h.providers = append(h.providers, p)
	h.mu.Unlock()
}

// AddReclaimObserver registers an observer for reclamation notifications.
func (h *Heap) AddReclaimObserver(o ReclaimObserver) {
	h.mu.Lock()
	h.observers = append(h.observers, o)
	h.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Garbage Collection
// ---------------------------------------------------------------------------

// Collect performs a mark-sweep collection pass.
// It marks everything reachable from the pinned roots and the registered
// root providers, notifies reclaim observers for each unreachable object,
// then drops those objects from the arena. Returns the number reclaimed.
func (h *Heap) Collect() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Mark phase: find all reachable objects
	marked := make(map[*Object]struct{})
	for obj := range h.roots {
		h.markValue(obj.ToValue(), marked)
	}
	markFn := func(v Value) {
		h.markValue(v, marked)
	}
	for _, p := range h.providers {
		p(markFn)
	}

	// Sweep phase: collect unmarked objects
	var dead []*Object
	for obj := range h.objects {
		if _, isMarked := marked[obj]; !isMarked {
			dead = append(dead, obj)
		}
	}

	// Notify observers before dropping each object from the arena, so the
	// address is still valid (and not yet reusable) when the notification
	// lands. Observers only update internal state here.
	for _, obj := range dead {
		for _, o := range h.observers {
			o.ObjectReclaimed(obj)
		}
		delete(h.objects, obj)
	}

	h.collections.Add(1)
	h.reclaimed.Add(uint64(len(dead)))
	return len(dead)
}

// markValue recursively marks an object and all objects it references.
func (h *Heap) markValue(v Value, marked map[*Object]struct{}) {
	if !v.IsObject() {
		return
	}

	obj := ObjectFromValue(v)
	if obj == nil {
		return
	}

	// Already marked? Skip to avoid infinite recursion
	if _, exists := marked[obj]; exists {
		return
	}
	marked[obj] = struct{}{}

	obj.ForEachSlot(func(_ int, slot Value) {
		h.markValue(slot, marked)
	})
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// ObjectCount returns the number of live objects in the arena.
func (h *Heap) ObjectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects)
}

// RootCount returns the number of distinct pinned roots.
func (h *Heap) RootCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.roots)
}

// Collections returns the total number of collection passes performed.
func (h *Heap) Collections() uint64 {
	return h.collections.Load()
}

// TotalReclaimed returns the total number of objects reclaimed over the
// heap's lifetime.
func (h *Heap) TotalReclaimed() uint64 {
	return h.reclaimed.Load()
}
