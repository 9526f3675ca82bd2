package debug

// x86 debug registers as described in the Intel 64 and IA-32
// Architectures Software Developer's Manual, Vol. 3B, section 17.2.
// DR0-DR3 hold watchpoint addresses; DR7 is the shared control register
// holding enable, condition and length bits for all four slots.
//
// The registers live in the USER area of the traced process, at
// offsetof(struct user, u_debugreg[i]) on linux/amd64.

const (
	userDebugRegOffset = 848 // u_debugreg[0]
	userDR7Offset      = userDebugRegOffset + 7*8

	// Number of hardware watchpoint slots. The hardware provides
	// exactly four; no software emulation of additional slots.
	numWatchpointSlots = 4

	dr7ConditionWrite = 0b01 // trigger on data writes
	dr7Length4        = 0b11 // 4-byte wide
)

func debugRegisterOffset(slot uint8) uintptr {
	return uintptr(userDebugRegOffset + 8*int(slot))
}

func dr7EnableBit(slot uint8) uint64 {
	return 1 << (2 * slot)
}

func dr7ConditionShift(slot uint8) uint8 {
	return 16 + 4*slot
}

func dr7LengthShift(slot uint8) uint8 {
	return 18 + 4*slot
}

// dr7FreeSlot scans the local-enable bits for the first unused slot.
func dr7FreeSlot(dr7 uint64) (uint8, bool) {
	for slot := uint8(0); slot < numWatchpointSlots; slot++ {
		if dr7&dr7EnableBit(slot) == 0 {
			return slot, true
		}
	}
	return 0, false
}

// dr7EnableWatch returns dr7 with the slot enabled, triggering on 4-byte
// writes. Stale condition and length bits of the slot are cleared first.
func dr7EnableWatch(dr7 uint64, slot uint8) uint64 {
	dr7 |= dr7EnableBit(slot)
	dr7 &^= 0b11 << dr7ConditionShift(slot)
	dr7 |= dr7ConditionWrite << dr7ConditionShift(slot)
	dr7 &^= 0b11 << dr7LengthShift(slot)
	dr7 |= dr7Length4 << dr7LengthShift(slot)
	return dr7
}

// dr7DisableWatch returns dr7 with the slot's local-enable bit cleared.
// Condition and length bits are left as is; they are dont-cares while
// the slot is disabled.
func dr7DisableWatch(dr7 uint64, slot uint8) uint64 {
	return dr7 &^ dr7EnableBit(slot)
}
