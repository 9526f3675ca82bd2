package debug

import (
	"fmt"
)

// Watchpoint is a hardware watchpoint bound to one of the four debug
// register slots. FramePointer is caller-supplied bookkeeping (typically
// the frame the watched variable lives in) and is not interpreted here.
type Watchpoint struct {
	Addr         Address
	Slot         uint8
	FramePointer uint64
}

// InsertWatchpoint arms a hardware watchpoint that stops the debuggee on
// a 4-byte write to addr. It fails when all four slots are in use or
// when the debug registers cannot be written; a failed insert allocates
// nothing.
//
// The watchpoint table is the only code path that may touch the shared
// debug-control register; external writers would silently desync the
// table from hardware reality.
func (s *DebugSession) InsertWatchpoint(addr Address, framePointer uint64) bool {
	dr7, ok := s.peekDebugRegister(userDR7Offset)
	if !ok {
		return false
	}
	slot, ok := dr7FreeSlot(dr7)
	if !ok {
		return false
	}
	if !s.pokeDebugRegister(debugRegisterOffset(slot), uint64(addr)) {
		return false
	}
	if !s.pokeDebugRegister(userDR7Offset, dr7EnableWatch(dr7, slot)) {
		return false
	}
	s.watchpoints[addr] = &Watchpoint{Addr: addr, Slot: slot, FramePointer: framePointer}
	return true
}

// DisableWatchpoint clears the watchpoint's address register and its
// local-enable bit in the control register. The watchpoint must exist.
func (s *DebugSession) DisableWatchpoint(addr Address) bool {
	wp, ok := s.watchpoints[addr]
	if !ok {
		panic(fmt.Sprintf("debug: no watchpoint at %#x", uint64(addr)))
	}
	if !s.pokeDebugRegister(debugRegisterOffset(wp.Slot), 0) {
		return false
	}
	dr7, ok := s.peekDebugRegister(userDR7Offset)
	if !ok {
		return false
	}
	return s.pokeDebugRegister(userDR7Offset, dr7DisableWatch(dr7, wp.Slot))
}

// RemoveWatchpoint disarms the watchpoint at addr and drops it from the
// table.
func (s *DebugSession) RemoveWatchpoint(addr Address) bool {
	if !s.DisableWatchpoint(addr) {
		return false
	}
	delete(s.watchpoints, addr)
	return true
}

// WatchpointExists reports whether a watchpoint is set at addr.
func (s *DebugSession) WatchpointExists(addr Address) bool {
	_, ok := s.watchpoints[addr]
	return ok
}
