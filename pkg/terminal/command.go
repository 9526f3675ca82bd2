package terminal

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	sys "golang.org/x/sys/unix"

	"github.com/TURING-V2/serenity/pkg/config"
	"github.com/TURING-V2/serenity/pkg/debug"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases []string
	helpMsg string
	cmdFn   cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the command dispatch table of the terminal.
type Commands struct {
	cmds []command
}

// ExitRequestError is returned when the user exits the debugger.
type ExitRequestError struct{}

func (ExitRequestError) Error() string {
	return "exit"
}

// DebugCommands returns a Commands object with the default commands defined.
func DebugCommands(conf *config.Config) *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]`},
		{aliases: []string{"break", "b"}, cmdFn: breakpoint, helpMsg: `Sets a breakpoint.

	break <function name>
	break <file>:<line>
	break *<address>`},
		{aliases: []string{"clear"}, cmdFn: clear, helpMsg: `Deletes the breakpoint at the given address.

	clear *<address>`},
		{aliases: []string{"watch", "w"}, cmdFn: watchpoint, helpMsg: `Sets a write watchpoint on the given address.

	watch *<address>`},
		{aliases: []string{"unwatch"}, cmdFn: unwatch, helpMsg: `Deletes the watchpoint on the given address.

	unwatch *<address>`},
		{aliases: []string{"continue", "c"}, cmdFn: cont, helpMsg: "Run until breakpoint, watchpoint or program termination."},
		{aliases: []string{"nextsyscall", "ns"}, cmdFn: nextSyscall, helpMsg: "Run until the next syscall entry or exit."},
		{aliases: []string{"step", "s"}, cmdFn: step, helpMsg: "Single step through program."},
		{aliases: []string{"regs"}, cmdFn: regs, helpMsg: "Print contents of CPU registers."},
		{aliases: []string{"libs"}, cmdFn: libraries, helpMsg: "List loaded libraries and their base addresses."},
		{aliases: []string{"sym"}, cmdFn: symbolicate, helpMsg: `Resolves an address to a symbol name.

	sym <address>`},
		{aliases: []string{"line"}, cmdFn: sourceLine, helpMsg: `Resolves an address to a source position.

	line <address>`},
		{aliases: []string{"funcs"}, cmdFn: funcs, helpMsg: `Prints the functions matching a prefix.

	funcs [prefix]`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: "Exit the debugger, detaching from the process."},
	}

	c.Merge(conf.Aliases)
	return c
}

// Merge takes aliases defined in the config struct and merges them with the
// command list.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

// Find returns the command for the given string, or nil.
func (c *Commands) Find(cmdstr string) *command {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			return &c.cmds[i]
		}
	}
	return nil
}

// Call takes a command line, finds the associated command and executes it.
func (c *Commands) Call(t *Term, cmdstr string) error {
	cmdstr = strings.TrimSpace(cmdstr)
	if cmdstr == "" {
		return nil
	}
	vals := strings.SplitN(cmdstr, " ", 2)
	args := ""
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	cmd := c.Find(vals[0])
	if cmd == nil {
		return fmt.Errorf("command not available: %s", vals[0])
	}
	return cmd.cmdFn(t, args)
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		cmd := c.Find(args)
		if cmd == nil {
			return fmt.Errorf("command not available: %s", args)
		}
		fmt.Fprintln(t.stdout, cmd.helpMsg)
		return nil
	}
	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := tabwriter.NewWriter(t.stdout, 0, 8, 0, '-', 0)
	for _, cmd := range c.cmds {
		h := cmd.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	return w.Flush()
}

func parseAddress(arg string) (debug.Address, error) {
	arg = strings.TrimPrefix(arg, "*")
	n, err := strconv.ParseUint(arg, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", arg)
	}
	return debug.Address(n), nil
}

func breakpoint(t *Term, args string) error {
	if args == "" {
		return errors.New("argument required")
	}
	switch {
	case strings.HasPrefix(args, "*"):
		addr, err := parseAddress(args)
		if err != nil {
			return err
		}
		if !t.session.InsertBreakpoint(addr) {
			return fmt.Errorf("could not insert breakpoint at %#x", addr)
		}
		fmt.Fprintf(t.stdout, "Breakpoint set at %#x\n", addr)
	case strings.Contains(args, ":"):
		fields := strings.SplitN(args, ":", 2)
		line, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid line number %q", fields[1])
		}
		bp, ok := t.session.InsertBreakpointAtSource(fields[0], line)
		if !ok {
			return fmt.Errorf("could not insert breakpoint at %s:%d", fields[0], line)
		}
		fmt.Fprintf(t.stdout, "Breakpoint set at %#x for %s:%d (%s)\n", bp.Addr, bp.File, bp.Line, bp.Library)
	default:
		bp, ok := t.session.InsertBreakpointBySymbol(args)
		if !ok {
			return fmt.Errorf("no symbol %q in any loaded library", args)
		}
		fmt.Fprintf(t.stdout, "Breakpoint set at %#x for %s (%s)\n", bp.Addr, args, bp.Library)
	}
	return nil
}

func clear(t *Term, args string) error {
	addr, err := parseAddress(args)
	if err != nil {
		return err
	}
	if !t.session.BreakpointExists(addr) {
		return fmt.Errorf("no breakpoint at %#x", addr)
	}
	t.session.RemoveBreakpoint(addr)
	fmt.Fprintf(t.stdout, "Breakpoint at %#x cleared\n", addr)
	return nil
}

func watchpoint(t *Term, args string) error {
	addr, err := parseAddress(args)
	if err != nil {
		return err
	}
	regs := t.session.Registers()
	if !t.session.InsertWatchpoint(addr, regs.Rbp) {
		return fmt.Errorf("could not insert watchpoint at %#x (4 slots in use?)", addr)
	}
	fmt.Fprintf(t.stdout, "Watchpoint set at %#x\n", addr)
	return nil
}

func unwatch(t *Term, args string) error {
	addr, err := parseAddress(args)
	if err != nil {
		return err
	}
	if !t.session.WatchpointExists(addr) {
		return fmt.Errorf("no watchpoint at %#x", addr)
	}
	t.session.RemoveWatchpoint(addr)
	fmt.Fprintf(t.stdout, "Watchpoint at %#x removed\n", addr)
	return nil
}

func cont(t *Term, args string) error {
	if err := t.resumePastBreakpoint(); err != nil {
		return err
	}
	if t.session.Exited() {
		return nil
	}
	ws := t.session.ContinueAndWait(debug.FreeRun)
	t.reportStop(ws)
	return nil
}

func nextSyscall(t *Term, args string) error {
	if err := t.resumePastBreakpoint(); err != nil {
		return err
	}
	if t.session.Exited() {
		return nil
	}
	ws := t.session.ContinueAndWait(debug.TraceSyscalls)
	t.reportStop(ws)
	return nil
}

func step(t *Term, args string) error {
	if err := t.resumePastBreakpoint(); err != nil {
		return err
	}
	if t.session.Exited() {
		return nil
	}
	pc := t.session.SingleStep()
	t.printLocation(pc)
	return nil
}

// resumePastBreakpoint steps the debuggee over the breakpoint it is
// currently stopped at, if any, so that a subsequent continue does not
// immediately re-trap. The int3 trap leaves the program counter one past
// the patched byte.
func (t *Term) resumePastBreakpoint() error {
	regs := t.session.Registers()
	bpAddr := regs.PC() - 1
	if !t.session.BreakpointExists(bpAddr) {
		return nil
	}
	t.session.DisableBreakpoint(bpAddr)
	regs.SetPC(bpAddr)
	t.session.SetRegisters(regs)
	t.session.SingleStep()
	if t.session.Exited() {
		return nil
	}
	t.session.EnableBreakpoint(bpAddr)
	return nil
}

func (t *Term) reportStop(ws sys.WaitStatus) {
	switch {
	case ws.Exited():
		fmt.Fprintf(t.stdout, "Process exited with status %d\n", ws.ExitStatus())
	case ws.Signaled():
		fmt.Fprintf(t.stdout, "Process terminated by signal %s\n", ws.Signal())
	case ws.Stopped():
		regs := t.session.Registers()
		fmt.Fprintf(t.stdout, "Stopped (%s)\n", ws.StopSignal())
		t.printLocation(regs.PC())
	}
}

func (t *Term) printLocation(pc debug.Address) {
	sym, ok := t.session.Symbolicate(pc)
	if !ok {
		fmt.Fprintf(t.stdout, "=> %#x\n", pc)
		return
	}
	if pos, ok := t.session.SourcePosition(pc); ok {
		fmt.Fprintf(t.stdout, "=> %#x %s (%s) %s:%d\n", pc, sym.Name, sym.Library, pos.File, pos.Line)
		return
	}
	fmt.Fprintf(t.stdout, "=> %#x %s (%s)\n", pc, sym.Name, sym.Library)
}

func regs(t *Term, args string) error {
	r := t.session.Registers()
	fmt.Fprintf(t.stdout, "rip = %#-18x rsp = %#-18x rbp = %#x\n", r.Rip, r.Rsp, r.Rbp)
	fmt.Fprintf(t.stdout, "rax = %#-18x rbx = %#-18x rcx = %#x\n", r.Rax, r.Rbx, r.Rcx)
	fmt.Fprintf(t.stdout, "rdx = %#-18x rsi = %#-18x rdi = %#x\n", r.Rdx, r.Rsi, r.Rdi)
	fmt.Fprintf(t.stdout, "r8  = %#-18x r9  = %#-18x r10 = %#x\n", r.R8, r.R9, r.R10)
	fmt.Fprintf(t.stdout, "r11 = %#-18x r12 = %#-18x r13 = %#x\n", r.R11, r.R12, r.R13)
	fmt.Fprintf(t.stdout, "r14 = %#-18x r15 = %#-18x eflags = %#x\n", r.R14, r.R15, r.Eflags)
	return nil
}

func libraries(t *Term, args string) error {
	w := tabwriter.NewWriter(t.stdout, 0, 8, 1, ' ', 0)
	for _, lib := range t.session.Libraries() {
		fmt.Fprintf(w, "%#x\t%s\t%s\n", lib.BaseAddress, lib.Name, lib.Path())
	}
	return w.Flush()
}

func symbolicate(t *Term, args string) error {
	addr, err := parseAddress(args)
	if err != nil {
		return err
	}
	sym, ok := t.session.Symbolicate(addr)
	if !ok {
		return fmt.Errorf("%#x is not in any loaded library", addr)
	}
	fmt.Fprintf(t.stdout, "%s (%s)\n", sym.Name, sym.Library)
	return nil
}

func sourceLine(t *Term, args string) error {
	addr, err := parseAddress(args)
	if err != nil {
		return err
	}
	pos, ok := t.session.SourcePosition(addr)
	if !ok {
		return fmt.Errorf("no line information for %#x", addr)
	}
	fmt.Fprintf(t.stdout, "%s:%d\n", pos.File, pos.Line)
	return nil
}

func funcs(t *Term, args string) error {
	var names []string
	for _, lib := range t.session.Libraries() {
		names = append(names, lib.Info.FunctionsMatching(args)...)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(t.stdout, name)
	}
	return nil
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}
