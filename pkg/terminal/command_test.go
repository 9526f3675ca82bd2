package terminal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/TURING-V2/serenity/pkg/config"
)

func newTestTerm() (*Term, *bytes.Buffer) {
	var buf bytes.Buffer
	conf := &config.Config{}
	return &Term{
		conf:   conf,
		cmds:   DebugCommands(conf),
		stdout: &buf,
	}, &buf
}

func TestCommandDefault(t *testing.T) {
	var (
		cmds = Commands{}
		cmd  = cmds.Find("non-existent-command")
	)
	if cmd != nil {
		t.Fatal("expected no command to be found")
	}
}

func TestCommandAliases(t *testing.T) {
	cmds := DebugCommands(&config.Config{})
	for _, pair := range [][2]string{
		{"break", "b"},
		{"continue", "c"},
		{"step", "s"},
		{"watch", "w"},
		{"nextsyscall", "ns"},
		{"quit", "q"},
	} {
		long, short := cmds.Find(pair[0]), cmds.Find(pair[1])
		if long == nil || short == nil || long != short {
			t.Errorf("%q and %q do not name the same command", pair[0], pair[1])
		}
	}
}

func TestCommandMergeAliases(t *testing.T) {
	conf := &config.Config{
		Aliases: map[string][]string{"continue": {"cont"}},
	}
	cmds := DebugCommands(conf)
	if cmds.Find("cont") == nil {
		t.Fatal("configured alias not merged")
	}
	if cmds.Find("cont") != cmds.Find("continue") {
		t.Fatal("alias resolves to a different command")
	}
}

func TestHelpListsAllCommands(t *testing.T) {
	term, buf := newTestTerm()
	if err := term.cmds.Call(term, "help"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, name := range []string{"break", "watch", "continue", "step", "libs", "quit"} {
		if !strings.Contains(out, name) {
			t.Errorf("help output does not mention %q", name)
		}
	}
}

func TestHelpForUnknownCommand(t *testing.T) {
	term, _ := newTestTerm()
	if err := term.cmds.Call(term, "help frobnicate"); err == nil {
		t.Error("help for unknown command did not fail")
	}
}

func TestCallEmptyLine(t *testing.T) {
	term, buf := newTestTerm()
	if err := term.cmds.Call(term, "   "); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("blank line produced output %q", buf.String())
	}
}

func TestExitRequest(t *testing.T) {
	term, _ := newTestTerm()
	err := term.cmds.Call(term, "quit")
	if _, ok := err.(ExitRequestError); !ok {
		t.Fatalf("quit returned %v", err)
	}
}

func TestParseAddress(t *testing.T) {
	for _, tc := range []struct {
		in   string
		addr uint64
		ok   bool
	}{
		{"*0x401000", 0x401000, true},
		{"0x401000", 0x401000, true},
		{"*4198400", 4198400, true},
		{"main.main", 0, false},
		{"", 0, false},
	} {
		addr, err := parseAddress(tc.in)
		if (err == nil) != tc.ok || uint64(addr) != tc.addr {
			t.Errorf("parseAddress(%q) = %#x, %v", tc.in, uint64(addr), err)
		}
	}
}
