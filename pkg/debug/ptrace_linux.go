package debug

import (
	"encoding/binary"
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// ptraceDetach calls ptrace(PTRACE_DETACH). Detaching also resumes the
// process, which is the "one final continue" of session teardown.
func ptraceDetach(pid, sig int) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_DETACH, uintptr(pid), 1, uintptr(sig), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptracePeekUser reads one word from the USER area of the traced
// process, used to reach the hardware debug registers.
func ptracePeekUser(pid int, off uintptr) (uintptr, error) {
	var val uintptr
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_PEEKUSR, uintptr(pid), off, uintptr(unsafe.Pointer(&val)), 0, 0)
	if err != syscall.Errno(0) {
		return 0, err
	}
	return val, nil
}

// ptracePokeUser writes one word into the USER area of the traced
// process.
func ptracePokeUser(pid int, off, val uintptr) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_POKEUSR, uintptr(pid), off, val, 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// peekWord reads the machine word at addr in the debuggee. Failure to
// read (unmapped address, vanished process) is an expected condition
// reported to the caller.
func (s *DebugSession) peekWord(addr Address) (uint64, bool) {
	buf := make([]byte, wordSize)
	var err error
	s.execPtraceFunc(func() { _, err = sys.PtracePeekData(s.pid, uintptr(addr), buf) })
	if err != nil {
		return 0, false
	}
	return binary.LittleEndian.Uint64(buf), true
}

// pokeWord writes the machine word at addr in the debuggee.
func (s *DebugSession) pokeWord(addr Address, word uint64) bool {
	buf := make([]byte, wordSize)
	binary.LittleEndian.PutUint64(buf, word)
	var err error
	s.execPtraceFunc(func() { _, err = sys.PtracePokeData(s.pid, uintptr(addr), buf) })
	return err == nil
}

// peekDebugRegister reads the debug register at the given USER-area
// offset.
func (s *DebugSession) peekDebugRegister(off uintptr) (uint64, bool) {
	var val uintptr
	var err error
	s.execPtraceFunc(func() { val, err = ptracePeekUser(s.pid, off) })
	if err != nil {
		return 0, false
	}
	return uint64(val), true
}

// pokeDebugRegister writes the debug register at the given USER-area
// offset.
func (s *DebugSession) pokeDebugRegister(off uintptr, val uint64) bool {
	var err error
	s.execPtraceFunc(func() { err = ptracePokeUser(s.pid, off, uintptr(val)) })
	return err == nil
}
