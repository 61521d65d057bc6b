// Package snapshot captures diagnostic state of the weak reference
// subsystem and serializes it with canonical CBOR. Snapshots go to
// whatever byte sink the caller supplies; the subsystem itself keeps no
// on-disk state.
package snapshot

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/tjcrowder/proposal-weakrefs/weakrefs"
)

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// HeapState summarizes the heap arena at capture time.
type HeapState struct {
	Objects        int    `cbor:"objects"`
	Roots          int    `cbor:"roots"`
	Collections    uint64 `cbor:"collections"`
	TotalReclaimed uint64 `cbor:"totalReclaimed"`
}

// RegistryState summarizes one finalization registry.
type RegistryState struct {
	ID             string `cbor:"id"`
	Active         int    `cbor:"active"`
	Pending        int    `cbor:"pending"`
	DeliveredTotal uint64 `cbor:"deliveredTotal"`
}

// State is a point-in-time diagnostic snapshot of the subsystem.
type State struct {
	CapturedAt         time.Time       `cbor:"capturedAt"`
	Turn               uint64          `cbor:"turn"`
	Boundaries         uint64          `cbor:"boundaries"`
	QueuedCallbacks    int             `cbor:"queuedCallbacks"`
	SchedulerDelivered uint64          `cbor:"schedulerDelivered"`
	TrackedSlots       int             `cbor:"trackedSlots"`
	Heap               HeapState       `cbor:"heap"`
	Registries         []RegistryState `cbor:"registries"`
}

// Capture collects a snapshot of rt's current state. It takes each
// component's lock briefly in turn, so the snapshot is consistent per
// component but not globally atomic.
func Capture(rt *weakrefs.Runtime) *State {
	h := rt.Heap()
	sched := rt.Scheduler()

	s := &State{
		CapturedAt:         time.Now(),
		Turn:               sched.CurrentTurn(),
		Boundaries:         sched.Boundaries(),
		QueuedCallbacks:    sched.QueuedCount(),
		SchedulerDelivered: sched.DeliveredTotal(),
		TrackedSlots:       rt.TrackedSlotCount(),
		Heap: HeapState{
			Objects:        h.ObjectCount(),
			Roots:          h.RootCount(),
			Collections:    h.Collections(),
			TotalReclaimed: h.TotalReclaimed(),
		},
	}

	for _, r := range rt.Registries() {
		active, pending := r.Counts()
		s.Registries = append(s.Registries, RegistryState{
			ID:             r.ID().String(),
			Active:         active,
			Pending:        pending,
			DeliveredTotal: r.DeliveredTotal(),
		})
	}
	return s
}

// Marshal serializes a State to CBOR bytes.
func Marshal(s *State) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes a State from CBOR bytes.
func Unmarshal(data []byte) (*State, error) {
	var s State
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal state: %w", err)
	}
	return &s, nil
}
