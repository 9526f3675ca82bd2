// Package debug provides attach/launch control over a single traced
// process: software breakpoints, hardware watchpoints, execution control
// and resolution of machine addresses against the libraries loaded into
// the debuggee.
//
// The package only supports linux/amd64. A session is not safe for
// concurrent use; every operation must be issued from one goroutine.
package debug

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/cosiner/argv"
	lru "github.com/hashicorp/golang-lru"
	sys "golang.org/x/sys/unix"

	"github.com/TURING-V2/serenity/pkg/logflags"
)

// Address is a virtual address inside the traced process. It is never a
// pointer into our own address space and must not be dereferenced locally.
type Address uint64

// ContinueMode selects how the debuggee is resumed.
type ContinueMode int

const (
	// FreeRun resumes the debuggee until the next signal or exit.
	FreeRun ContinueMode = iota
	// TraceSyscalls resumes the debuggee until the next syscall
	// entry/exit, signal or exit.
	TraceSyscalls
)

// loaderBreakpointEnv is passed to launched debuggees. Program startup
// code that honors it stops at a breakpoint after the dynamic libraries
// have been mapped, right before jumping to the program entry point.
const loaderBreakpointEnv = "_LOADER_BREAKPOINT=1"

const symbolCacheSize = 256

// DebugSession holds everything the debugger knows about one traced
// process: its breakpoint and watchpoint tables and the registry of
// loaded libraries. All tables are owned exclusively by the session.
type DebugSession struct {
	pid        int
	sourceRoot string

	breakpoints map[Address]*Breakpoint
	watchpoints map[Address]*Watchpoint

	// Loaded libraries in the order they were observed in the memory
	// map scan. Symbol and source searches walk this slice in order.
	libraries    []*LoadedLibrary
	libraryIndex map[string]bool

	symbolCache *lru.Cache

	childProcess bool // launched, not attached to
	exited       bool
	detached     bool

	ptraceChan     chan func()
	ptraceDoneChan chan struct{}

	log  logflags.Logger
	slog logflags.Logger
}

func newSession(pid int, sourceRoot string) *DebugSession {
	cache, err := lru.New(symbolCacheSize)
	if err != nil {
		panic(err)
	}
	s := &DebugSession{
		pid:            pid,
		sourceRoot:     sourceRoot,
		breakpoints:    make(map[Address]*Breakpoint),
		watchpoints:    make(map[Address]*Watchpoint),
		libraryIndex:   make(map[string]bool),
		symbolCache:    cache,
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan struct{}),
		log:            logflags.DebugLogger(),
		slog:           logflags.ScanLogger(),
	}
	go s.handlePtraceFuncs()
	return s
}

func (s *DebugSession) handlePtraceFuncs() {
	// We must ensure that every ptrace(2) call is made from the same
	// thread: the kernel expects all requests after PTRACE_ATTACH to
	// come from the thread that attached.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for fn := range s.ptraceChan {
		fn()
		s.ptraceDoneChan <- struct{}{}
	}
}

func (s *DebugSession) execPtraceFunc(fn func()) {
	s.ptraceChan <- fn
	<-s.ptraceDoneChan
}

func (s *DebugSession) stopPtraceThread() {
	close(s.ptraceChan)
}

// Pid returns the process ID of the debuggee.
func (s *DebugSession) Pid() int { return s.pid }

// Exited reports whether the debuggee has been observed to exit.
func (s *DebugSession) Exited() bool { return s.exited }

// Attach attaches to the process with the given PID, waits for it to
// stop and scans its memory map to populate the loaded-library registry.
// sourceRoot is the path prefix used when resolving source files.
func Attach(pid int, sourceRoot string) (*DebugSession, error) {
	s := newSession(pid, sourceRoot)
	var err error
	s.execPtraceFunc(func() { err = sys.PtraceAttach(pid) })
	if err != nil {
		s.stopPtraceThread()
		return nil, fmt.Errorf("could not attach to pid %d: %w", pid, err)
	}
	ws := s.wait()
	if ws.Exited() {
		s.stopPtraceThread()
		return nil, fmt.Errorf("process %d exited during attach", pid)
	}
	if err := s.updateLoadedLibraries(); err != nil {
		s.log.Errorf("memory map scan failed: %v", err)
	}
	s.log.Debugf("attached to pid %d", pid)
	return s, nil
}

// Launch starts the given command under trace and runs it up to the
// breakpoint program startup code stops at before jumping to the entry
// point (requested through the environment). By the time Launch returns
// the dynamic libraries of the debuggee are mapped and the registry is
// populated, but no user code has run.
//
// The returned session owns the child; anything other than a trap stop
// during startup, including the process exiting, is a launch failure.
func Launch(command string, sourceRoot string) (*DebugSession, error) {
	words, err := splitCommand(command)
	if err != nil {
		return nil, err
	}

	s := newSession(0, sourceRoot)
	var cmd *exec.Cmd
	s.execPtraceFunc(func() {
		cmd = exec.Command(words[0], words[1:]...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = append(os.Environ(), loaderBreakpointEnv)
		cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true, Setpgid: true}
		err = cmd.Start()
	})
	if err != nil {
		s.stopPtraceThread()
		return nil, fmt.Errorf("could not launch %q: %w", words[0], err)
	}
	s.pid = cmd.Process.Pid
	s.childProcess = true

	// Stop at the exit of execve. From here on the traced image is the
	// target program, not our forked child.
	ws := s.wait()
	if !ws.Stopped() {
		s.teardownFailedLaunch(cmd)
		return nil, fmt.Errorf("waiting for target execve failed (status %#x)", int(ws))
	}

	// Continue until the breakpoint before the program entry point.
	// Libraries must be mapped before we scan, but no user code may run
	// before we come back.
	ws = s.ContinueAndWait(FreeRun)
	if !ws.Stopped() || ws.StopSignal() != sys.SIGTRAP {
		s.teardownFailedLaunch(cmd)
		return nil, fmt.Errorf("expected SIGTRAP stop during startup, got status %#x", int(ws))
	}

	if err := s.updateLoadedLibraries(); err != nil {
		s.log.Errorf("memory map scan failed: %v", err)
	}
	s.log.Debugf("launched %q as pid %d", command, s.pid)
	return s, nil
}

func splitCommand(command string) ([]string, error) {
	v, err := argv.Argv(command, func(s string) (string, error) {
		return "", fmt.Errorf("backtick not supported in %q", s)
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 || len(v[0]) == 0 {
		return nil, fmt.Errorf("invalid command line %q", command)
	}
	return v[0], nil
}

func (s *DebugSession) teardownFailedLaunch(cmd *exec.Cmd) {
	if !s.exited {
		_ = cmd.Process.Kill()
		_, _ = sys.Wait4(s.pid, nil, 0, nil)
	}
	s.stopPtraceThread()
}

// ContinueDebuggee resumes the debuggee without waiting for it to stop
// again. A failure of the underlying request means the process state is
// unknowable and is treated as fatal.
func (s *DebugSession) ContinueDebuggee(mode ContinueMode) {
	var err error
	s.execPtraceFunc(func() {
		switch mode {
		case TraceSyscalls:
			err = sys.PtraceSyscall(s.pid, 0)
		default:
			err = sys.PtraceCont(s.pid, 0)
		}
	})
	if err != nil {
		panic(fmt.Sprintf("debug: continue of pid %d failed: %v", s.pid, err))
	}
}

// ContinueAndWait resumes the debuggee and blocks until it stops or
// exits, returning the raw wait status for the caller to interpret.
func (s *DebugSession) ContinueAndWait(mode ContinueMode) sys.WaitStatus {
	s.ContinueDebuggee(mode)
	return s.wait()
}

// wait blocks until the debuggee changes state. A wait failure means the
// process is gone without us noticing, which we cannot recover from.
func (s *DebugSession) wait() sys.WaitStatus {
	var ws sys.WaitStatus
	_, err := sys.Wait4(s.pid, &ws, 0, nil)
	if err != nil {
		panic(fmt.Sprintf("debug: wait on pid %d failed: %v", s.pid, err))
	}
	if ws.Exited() || ws.Signaled() {
		s.postExit(ws)
	}
	return ws
}

func (s *DebugSession) postExit(ws sys.WaitStatus) {
	if s.exited {
		return
	}
	s.exited = true
	if ws.Exited() {
		s.log.Debugf("pid %d exited with status %d", s.pid, ws.ExitStatus())
	} else {
		s.log.Debugf("pid %d terminated by signal %v", s.pid, ws.Signal())
	}
}

// Detach disables every breakpoint and watchpoint, releases tracing
// control and resumes the debuggee. It runs at most once per session and
// does nothing if the debuggee is already dead, since no tracing call may
// be issued against a nonexistent process.
func (s *DebugSession) Detach() {
	if s.detached {
		return
	}
	s.detached = true
	if s.exited {
		s.closeLibraries()
		s.stopPtraceThread()
		return
	}

	for addr := range s.breakpoints {
		s.RemoveBreakpoint(addr)
	}
	for addr := range s.watchpoints {
		s.RemoveWatchpoint(addr)
	}

	var err error
	s.execPtraceFunc(func() { err = ptraceDetach(s.pid, 0) })
	if err != nil {
		s.log.Errorf("detach from pid %d failed: %v", s.pid, err)
	} else {
		s.log.Debugf("detached from pid %d", s.pid)
	}
	s.closeLibraries()
	s.stopPtraceThread()
}
