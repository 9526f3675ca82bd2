package debug

import (
	"fmt"
)

// wordSize is the width of the machine word read and written when
// patching breakpoints.
const wordSize = 8

// breakpointInstruction is the one-byte trap opcode (int3) substituted
// into the low byte of the patched word.
const breakpointInstruction = 0xCC

// BreakpointState tracks whether the trap opcode is currently patched
// into the debuggee at the breakpoint address.
type BreakpointState int

const (
	// BreakpointDisabled means the live memory at the address holds the
	// original instruction word.
	BreakpointDisabled BreakpointState = iota
	// BreakpointEnabled means the low byte of the word at the address
	// has been replaced with the trap opcode.
	BreakpointEnabled
)

// Breakpoint is a software breakpoint. OriginalWord is captured before
// any patching and is authoritative: removal must restore it exactly.
type Breakpoint struct {
	Addr         Address
	OriginalWord uint64
	State        BreakpointState
}

// SymbolBreakpoint describes a breakpoint inserted by symbol name.
type SymbolBreakpoint struct {
	Library string
	Addr    Address
}

// SourceBreakpoint describes a breakpoint inserted by source position.
type SourceBreakpoint struct {
	Library string
	File    string
	Line    int
	Addr    Address
}

// InsertBreakpoint patches a breakpoint into the debuggee at addr.
// It fails if a breakpoint already exists there or if the original
// instruction word cannot be read.
func (s *DebugSession) InsertBreakpoint(addr Address) bool {
	if _, ok := s.breakpoints[addr]; ok {
		return false
	}
	original, ok := s.peekWord(addr)
	if !ok {
		return false
	}
	if original&0xff == breakpointInstruction {
		// A trap opcode we did not put there means something else has
		// been patching this process behind our back.
		panic(fmt.Sprintf("debug: memory at %#x already holds a trap instruction", uint64(addr)))
	}

	bp := &Breakpoint{Addr: addr, OriginalWord: original, State: BreakpointDisabled}
	s.breakpoints[addr] = bp
	s.EnableBreakpoint(addr)
	return true
}

// EnableBreakpoint patches the trap opcode into the low byte of the word
// at the breakpoint's address. The breakpoint must exist and be
// disabled; anything else is a caller bug.
func (s *DebugSession) EnableBreakpoint(addr Address) bool {
	bp, ok := s.breakpoints[addr]
	if !ok {
		panic(fmt.Sprintf("debug: no breakpoint at %#x", uint64(addr)))
	}
	if bp.State != BreakpointDisabled {
		panic(fmt.Sprintf("debug: breakpoint at %#x is already enabled", uint64(addr)))
	}
	patched := (bp.OriginalWord &^ uint64(0xff)) | breakpointInstruction
	if !s.pokeWord(bp.Addr, patched) {
		return false
	}
	bp.State = BreakpointEnabled
	return true
}

// DisableBreakpoint restores the original instruction word at the
// breakpoint's address. The breakpoint must exist.
func (s *DebugSession) DisableBreakpoint(addr Address) bool {
	bp, ok := s.breakpoints[addr]
	if !ok {
		panic(fmt.Sprintf("debug: no breakpoint at %#x", uint64(addr)))
	}
	if !s.pokeWord(bp.Addr, bp.OriginalWord) {
		return false
	}
	bp.State = BreakpointDisabled
	return true
}

// RemoveBreakpoint restores the original code at addr and drops the
// breakpoint from the table.
func (s *DebugSession) RemoveBreakpoint(addr Address) bool {
	if !s.DisableBreakpoint(addr) {
		return false
	}
	delete(s.breakpoints, addr)
	return true
}

// BreakpointExists reports whether a breakpoint is set at addr.
func (s *DebugSession) BreakpointExists(addr Address) bool {
	_, ok := s.breakpoints[addr]
	return ok
}

// InsertBreakpointBySymbol resolves name against every loaded library
// and inserts a breakpoint at the first match. Libraries are searched in
// the order they were registered; the dynamic loader is skipped because
// it carries its own definitions of the C runtime symbols.
func (s *DebugSession) InsertBreakpointBySymbol(name string) (SymbolBreakpoint, bool) {
	for _, lib := range s.libraries {
		if lib.isDynamicLoader() {
			continue
		}
		offset, ok := lib.Info.FindFunction(name)
		if !ok {
			continue
		}
		addr := lib.BaseAddress + Address(offset)
		if !s.InsertBreakpoint(addr) {
			return SymbolBreakpoint{}, false
		}
		return SymbolBreakpoint{Library: lib.Name, Addr: addr}, true
	}
	return SymbolBreakpoint{}, false
}

// InsertBreakpointAtSource resolves file:line to an address and inserts
// a breakpoint there.
func (s *DebugSession) InsertBreakpointAtSource(file string, line int) (SourceBreakpoint, bool) {
	pos, ok := s.AddressForSourcePosition(file, line)
	if !ok {
		return SourceBreakpoint{}, false
	}
	if !s.InsertBreakpoint(pos.Addr) {
		return SourceBreakpoint{}, false
	}
	lib := s.LibraryAt(pos.Addr)
	if lib == nil {
		panic(fmt.Sprintf("debug: resolved address %#x belongs to no loaded library", uint64(pos.Addr)))
	}
	return SourceBreakpoint{Library: lib.Name, File: pos.File, Line: pos.Line, Addr: pos.Addr}, true
}
