// Package terminal implements the interactive command line interface of
// the sdb debugger.
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-delve/liner"
	isatty "github.com/mattn/go-isatty"

	"github.com/TURING-V2/serenity/pkg/config"
	"github.com/TURING-V2/serenity/pkg/debug"
	"github.com/TURING-V2/serenity/pkg/logflags"
)

const historyFile string = ".sdb_history"

// Term represents the terminal running sdb.
type Term struct {
	session *debug.DebugSession
	conf    *config.Config
	prompt  string
	line    *liner.State
	cmds    *Commands
	dumb    bool
	stdout  io.Writer
	log     logflags.Logger
}

// New returns a new Term driving the given session.
func New(session *debug.DebugSession, conf *config.Config) *Term {
	if conf == nil {
		conf = &config.Config{}
	}
	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb" || !isatty.IsTerminal(os.Stdin.Fd())
	return &Term{
		session: session,
		conf:    conf,
		prompt:  "(sdb) ",
		line:    liner.NewLiner(),
		cmds:    DebugCommands(conf),
		dumb:    dumb,
		stdout:  os.Stdout,
		log:     logflags.TerminalLogger(),
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// Run reads commands and executes them until the user quits or the
// debuggee goes away.
func (t *Term) Run() (int, error) {
	defer t.Close()

	// Completion and history need a real terminal on the other end.
	if !t.dumb {
		t.line.SetCompleter(t.complete)

		fullHistoryFile, err := config.GetConfigFilePath(historyFile)
		if err == nil {
			if f, err := os.Open(fullHistoryFile); err == nil {
				t.line.ReadHistory(f)
				f.Close()
			}
			defer func() {
				if f, err := os.Create(fullHistoryFile); err == nil {
					t.line.WriteHistory(f)
					f.Close()
				}
			}()
		}
	}

	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")
	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				t.handleExit()
				return 0, nil
			}
			return 1, fmt.Errorf("prompt for input failed: %w", err)
		}

		if err := t.cmds.Call(t, cmdstr); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				t.handleExit()
				return 0, nil
			}
			t.log.Debugf("command %q failed: %v", cmdstr, err)
			fmt.Fprintf(os.Stderr, "Command failed: %v\n", err)
		}
		if t.session.Exited() {
			fmt.Fprintln(t.stdout, "Process has exited.")
			return 0, nil
		}
	}
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}
	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}
	return l, nil
}

// complete offers command names for the first word and function names
// for the argument of the break command.
func (t *Term) complete(line string) (c []string) {
	fields := strings.SplitN(line, " ", 2)
	if len(fields) == 2 {
		if fields[0] != "break" && fields[0] != "b" {
			return nil
		}
		for _, lib := range t.session.Libraries() {
			for _, name := range lib.Info.FunctionsMatching(fields[1]) {
				c = append(c, fields[0]+" "+name)
			}
		}
		return c
	}
	for _, cmd := range t.cmds.cmds {
		for _, alias := range cmd.aliases {
			if strings.HasPrefix(alias, strings.ToLower(line)) {
				c = append(c, alias)
			}
		}
	}
	return c
}

func (t *Term) handleExit() {
	if !t.session.Exited() {
		t.session.Detach()
	}
}
