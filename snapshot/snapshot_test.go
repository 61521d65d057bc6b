package snapshot

import (
	"testing"

	"github.com/tjcrowder/proposal-weakrefs/heap"
	"github.com/tjcrowder/proposal-weakrefs/weakrefs"
)

func buildRuntime(t *testing.T) (*heap.Heap, *weakrefs.Runtime) {
	t.Helper()
	h := heap.NewHeap()
	rt := weakrefs.NewRuntime(h, nil)

	r, err := rt.NewFinalizationRegistry(func(heap.Value) {})
	if err != nil {
		t.Fatal(err)
	}

	pinned := h.Allocate(1)
	h.Pin(pinned)
	if err := r.Register(pinned.ToValue(), heap.FromSmallInt(1), heap.Nil); err != nil {
		t.Fatal(err)
	}

	doomed := h.Allocate(1)
	if err := r.Register(doomed.ToValue(), heap.FromSmallInt(2), heap.Nil); err != nil {
		t.Fatal(err)
	}
	h.Collect() // doomed's entry moves to pending

	return h, rt
}

func TestCapture(t *testing.T) {
	h, rt := buildRuntime(t)

	s := Capture(rt)
	if s.CapturedAt.IsZero() {
		t.Error("CapturedAt should be set")
	}
	if s.Turn != 0 {
		t.Errorf("Turn = %d, want 0", s.Turn)
	}
	if s.QueuedCallbacks != 1 {
		t.Errorf("QueuedCallbacks = %d, want 1", s.QueuedCallbacks)
	}
	if s.TrackedSlots != 1 {
		t.Errorf("TrackedSlots = %d, want 1 (reclaimed target's slot is unmapped)", s.TrackedSlots)
	}
	if s.Heap.Objects != h.ObjectCount() {
		t.Errorf("Heap.Objects = %d, want %d", s.Heap.Objects, h.ObjectCount())
	}
	if s.Heap.Collections != 1 {
		t.Errorf("Heap.Collections = %d, want 1", s.Heap.Collections)
	}

	if len(s.Registries) != 1 {
		t.Fatalf("Registries = %d, want 1", len(s.Registries))
	}
	reg := s.Registries[0]
	if reg.ID == "" {
		t.Error("registry ID should be set")
	}
	if reg.Active != 1 || reg.Pending != 1 {
		t.Errorf("registry counts = (%d active, %d pending), want (1, 1)", reg.Active, reg.Pending)
	}
}

func TestCaptureAfterBoundary(t *testing.T) {
	_, rt := buildRuntime(t)
	rt.EndTurn()

	s := Capture(rt)
	if s.Turn != 1 {
		t.Errorf("Turn = %d, want 1", s.Turn)
	}
	if s.Boundaries != 1 {
		t.Errorf("Boundaries = %d, want 1", s.Boundaries)
	}
	if s.QueuedCallbacks != 0 {
		t.Errorf("QueuedCallbacks = %d, want 0", s.QueuedCallbacks)
	}
	if s.SchedulerDelivered != 1 {
		t.Errorf("SchedulerDelivered = %d, want 1", s.SchedulerDelivered)
	}
	if s.Registries[0].DeliveredTotal != 1 {
		t.Errorf("registry DeliveredTotal = %d, want 1", s.Registries[0].DeliveredTotal)
	}
}

func TestMarshalRoundtrip(t *testing.T) {
	_, rt := buildRuntime(t)
	s := Capture(rt)

	data, err := Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Turn != s.Turn || got.QueuedCallbacks != s.QueuedCallbacks || got.TrackedSlots != s.TrackedSlots {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", got, s)
	}
	if len(got.Registries) != len(s.Registries) || got.Registries[0].ID != s.Registries[0].ID {
		t.Error("registries did not survive the roundtrip")
	}
}

func TestMarshalDeterministic(t *testing.T) {
	_, rt := buildRuntime(t)
	s := Capture(rt)

	a, err := Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("canonical encoding should be byte-for-byte stable")
	}
}

func TestUnmarshalBadData(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x00}); err == nil {
		t.Error("Unmarshal should fail on malformed CBOR")
	}
}
