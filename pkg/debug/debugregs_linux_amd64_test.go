package debug

import "testing"

func TestDebugRegisterOffset(t *testing.T) {
	for slot := uint8(0); slot < numWatchpointSlots; slot++ {
		want := uintptr(userDebugRegOffset + int(slot)*8)
		if off := debugRegisterOffset(slot); off != want {
			t.Errorf("slot %d: got offset %d, want %d", slot, off, want)
		}
	}
	if userDR7Offset != userDebugRegOffset+7*8 {
		t.Errorf("DR7 offset is %d", userDR7Offset)
	}
}

func TestDR7SlotAllocation(t *testing.T) {
	dr7 := uint64(0)
	for want := uint8(0); want < numWatchpointSlots; want++ {
		slot, ok := dr7FreeSlot(dr7)
		if !ok {
			t.Fatalf("no free slot with %d slots in use", want)
		}
		if slot != want {
			t.Fatalf("got slot %d, want %d", slot, want)
		}
		dr7 = dr7EnableWatch(dr7, slot)
	}
	if slot, ok := dr7FreeSlot(dr7); ok {
		t.Fatalf("got slot %d with all slots in use", slot)
	}
}

func TestDR7EnableWatch(t *testing.T) {
	dr7 := dr7EnableWatch(0, 1)

	if dr7&dr7EnableBit(1) == 0 {
		t.Error("local enable bit for slot 1 not set")
	}
	if cond := (dr7 >> dr7ConditionShift(1)) & 0b11; cond != dr7ConditionWrite {
		t.Errorf("condition bits are %#b, want %#b", cond, uint64(dr7ConditionWrite))
	}
	if length := (dr7 >> dr7LengthShift(1)) & 0b11; length != dr7Length4 {
		t.Errorf("length bits are %#b, want %#b", length, uint64(dr7Length4))
	}
	if dr7&dr7EnableBit(0) != 0 || dr7&dr7EnableBit(2) != 0 || dr7&dr7EnableBit(3) != 0 {
		t.Errorf("other slots enabled: dr7 = %#x", dr7)
	}
}

func TestDR7DisableWatchLeavesOtherSlots(t *testing.T) {
	var dr7 uint64
	for slot := uint8(0); slot < numWatchpointSlots; slot++ {
		dr7 = dr7EnableWatch(dr7, slot)
	}
	dr7 = dr7DisableWatch(dr7, 2)

	if dr7&dr7EnableBit(2) != 0 {
		t.Error("slot 2 still enabled")
	}
	for _, slot := range []uint8{0, 1, 3} {
		if dr7&dr7EnableBit(slot) == 0 {
			t.Errorf("slot %d no longer enabled", slot)
		}
	}
	// The freed slot must be the one handed out next.
	if slot, ok := dr7FreeSlot(dr7); !ok || slot != 2 {
		t.Errorf("free slot after disable = %d, %v", slot, ok)
	}
}
