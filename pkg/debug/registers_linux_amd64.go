package debug

import (
	"fmt"

	sys "golang.org/x/sys/unix"
)

// trapFlag is the x86 TF bit in the flags register. While set, the cpu
// raises a debug interrupt after every instruction.
const trapFlag = 0x100

// Registers is the debuggee's general purpose register file.
type Registers struct {
	sys.PtraceRegs
}

// PC returns the instruction pointer.
func (r *Registers) PC() Address { return Address(r.Rip) }

// SetPC sets the instruction pointer.
func (r *Registers) SetPC(pc Address) { r.Rip = uint64(pc) }

// TrapFlagSet reports whether the single-step flag is set.
func (r *Registers) TrapFlagSet() bool { return r.Eflags&trapFlag != 0 }

// Registers reads the debuggee's registers. Failure means the process is
// gone without us noticing and is treated as fatal.
func (s *DebugSession) Registers() Registers {
	var regs Registers
	var err error
	s.execPtraceFunc(func() { err = sys.PtraceGetRegs(s.pid, &regs.PtraceRegs) })
	if err != nil {
		panic(fmt.Sprintf("debug: reading registers of pid %d failed: %v", s.pid, err))
	}
	return regs
}

// SetRegisters writes the debuggee's registers.
func (s *DebugSession) SetRegisters(regs Registers) {
	var err error
	s.execPtraceFunc(func() { err = sys.PtraceSetRegs(s.pid, &regs.PtraceRegs) })
	if err != nil {
		panic(fmt.Sprintf("debug: writing registers of pid %d failed: %v", s.pid, err))
	}
}

// SingleStep executes exactly one instruction in the debuggee and
// returns the new instruction pointer.
//
// It works by setting the TF bit in the flags register, which makes the
// cpu raise a debug interrupt after the next instruction, and resuming.
// The flag must be cleared again on the new stop or every subsequent
// continue would single-step too.
func (s *DebugSession) SingleStep() Address {
	regs := s.Registers()
	regs.Eflags |= trapFlag
	s.SetRegisters(regs)

	s.ContinueDebuggee(FreeRun)
	ws := s.wait()
	if !ws.Stopped() {
		panic(fmt.Sprintf("debug: pid %d vanished during single step (status %#x)", s.pid, int(ws)))
	}

	regs = s.Registers()
	regs.Eflags &^= trapFlag
	s.SetRegisters(regs)
	return regs.PC()
}
