package heap

import (
	"testing"
)

func TestObjectInlineSlots(t *testing.T) {
	h := NewHeap()
	obj := h.Allocate(4)

	for i := 0; i < 4; i++ {
		if !obj.GetSlot(i).IsNil() {
			t.Errorf("slot %d should start Nil", i)
		}
	}

	obj.SetSlot(0, FromSmallInt(10))
	obj.SetSlot(3, FromSmallInt(40))
	if obj.GetSlot(0).SmallInt() != 10 {
		t.Errorf("slot 0 = %d, want 10", obj.GetSlot(0).SmallInt())
	}
	if obj.GetSlot(3).SmallInt() != 40 {
		t.Errorf("slot 3 = %d, want 40", obj.GetSlot(3).SmallInt())
	}
}

func TestObjectOverflowSlots(t *testing.T) {
	h := NewHeap()
	obj := h.Allocate(7)

	if obj.NumSlots() != 7 {
		t.Errorf("NumSlots = %d, want 7", obj.NumSlots())
	}

	obj.SetSlot(6, FromSmallInt(60))
	if obj.GetSlot(6).SmallInt() != 60 {
		t.Errorf("slot 6 = %d, want 60", obj.GetSlot(6).SmallInt())
	}
	if !obj.GetSlot(4).IsNil() {
		t.Error("overflow slots should start Nil")
	}
}

func TestAllocateWithSlots(t *testing.T) {
	h := NewHeap()
	obj := h.AllocateWithSlots([]Value{FromSmallInt(1), FromSmallInt(2), FromSmallInt(3), FromSmallInt(4), FromSmallInt(5)})

	for i := 0; i < 5; i++ {
		if obj.GetSlot(i).SmallInt() != int64(i+1) {
			t.Errorf("slot %d = %d, want %d", i, obj.GetSlot(i).SmallInt(), i+1)
		}
	}
}

func TestMustObjectFromValue(t *testing.T) {
	h := NewHeap()
	obj := h.Allocate(1)

	if MustObjectFromValue(obj.ToValue()) != obj {
		t.Error("MustObjectFromValue should round-trip the object pointer")
	}

	defer func() {
		if recover() == nil {
			t.Error("MustObjectFromValue should panic on a non-object value")
		}
	}()
	MustObjectFromValue(FromSmallInt(1))
}

func TestForEachSlot(t *testing.T) {
	h := NewHeap()
	obj := h.AllocateWithSlots([]Value{FromSmallInt(1), FromSmallInt(2), FromSmallInt(3), FromSmallInt(4), FromSmallInt(5), FromSmallInt(6)})

	var indices []int
	var values []int64
	obj.ForEachSlot(func(index int, value Value) {
		indices = append(indices, index)
		values = append(values, value.SmallInt())
	})

	if len(indices) != 6 {
		t.Fatalf("visited %d slots, want 6", len(indices))
	}
	for i := range indices {
		if indices[i] != i {
			t.Errorf("index %d visited out of order as %d", i, indices[i])
		}
		if values[i] != int64(i+1) {
			t.Errorf("slot %d value = %d, want %d", i, values[i], i+1)
		}
	}
}

func TestAllSlots(t *testing.T) {
	h := NewHeap()
	obj := h.Allocate(2)
	obj.SetSlot(1, FromSmallInt(99))

	slots := obj.AllSlots()
	if len(slots) != 4 {
		t.Fatalf("AllSlots len = %d, want 4 (inline minimum)", len(slots))
	}
	if slots[1].SmallInt() != 99 {
		t.Errorf("slots[1] = %d, want 99", slots[1].SmallInt())
	}
}
