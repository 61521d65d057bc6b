package weakrefs

import (
	"testing"

	_ "github.com/tliron/commonlog/simple"

	"github.com/tjcrowder/proposal-weakrefs/heap"
)

func TestRuntimeAccessors(t *testing.T) {
	h, rt := newTestRuntime()

	if rt.Heap() != h {
		t.Error("Heap should return the bound heap")
	}
	if rt.Scheduler() == nil {
		t.Error("Scheduler should not be nil")
	}
	if rt.CurrentTurn() != 0 {
		t.Errorf("CurrentTurn = %d, want 0", rt.CurrentTurn())
	}
}

func TestRegistriesSnapshot(t *testing.T) {
	_, rt := newTestRuntime()

	r1, _ := rt.NewFinalizationRegistry(discard)
	r2, _ := rt.NewFinalizationRegistry(discard)

	regs := rt.Registries()
	if len(regs) != 2 {
		t.Fatalf("Registries = %d, want 2", len(regs))
	}

	r1.Close()
	if len(rt.Registries()) != 1 {
		t.Errorf("Registries after Close = %d, want 1", len(rt.Registries()))
	}
	if rt.Registries()[0] != r2 {
		t.Error("the remaining registry should be the unclosed one")
	}
}

// Registries are independent: reclaiming a target registered with two
// registries queues one entry per registry, and closing one does not
// disturb the other's delivery.
func TestRegistriesAreIndependent(t *testing.T) {
	h, rt := newTestRuntime()

	calls1, calls2 := 0, 0
	r1, _ := rt.NewFinalizationRegistry(func(heap.Value) { calls1++ })
	r2, _ := rt.NewFinalizationRegistry(func(heap.Value) { calls2++ })

	target := h.Allocate(1)
	r1.Register(target.ToValue(), heap.FromSmallInt(1), heap.Nil)
	r2.Register(target.ToValue(), heap.FromSmallInt(2), heap.Nil)

	h.Collect()
	r1.Close()
	rt.EndTurn()

	if calls1 != 0 {
		t.Errorf("closed registry delivered %d callbacks, want 0", calls1)
	}
	if calls2 != 1 {
		t.Errorf("live registry delivered %d callbacks, want 1", calls2)
	}
}
