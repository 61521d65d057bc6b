// Package weakrefs implements weak references and finalization for a
// managed heap: non-owning handles to heap objects, and cleanup
// callbacks delivered after a tracked object has been reclaimed.
//
// The subsystem consumes the heap's collector as a reachability oracle
// (heap.ReclaimObserver) and exposes one host hook, Runtime.EndTurn,
// which the host's run loop calls at each turn boundary to trigger
// automatic callback delivery. Within a turn, WeakReference resolution
// is stable; liveness transitions only become observable across turn
// boundaries. Delivery of cleanup callbacks is best-effort by contract:
// a conforming host may defer it indefinitely, so callbacks must never
// be relied on for releasing scarce external resources.
package weakrefs
