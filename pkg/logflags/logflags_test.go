package logflags

import "testing"

func resetFlags() {
	debug = false
	scan = false
	term = false
}

func TestSetupComponents(t *testing.T) {
	defer resetFlags()

	if err := Setup(true, "debug,scan", ""); err != nil {
		t.Fatal(err)
	}
	if !Debug() || !Scan() {
		t.Error("requested components not enabled")
	}
	if Terminal() {
		t.Error("terminal logging enabled without being requested")
	}
}

func TestSetupDefaultsToDebug(t *testing.T) {
	defer resetFlags()

	if err := Setup(true, "", ""); err != nil {
		t.Fatal(err)
	}
	if !Debug() {
		t.Error("debug component not enabled by default")
	}
}

func TestSetupRejectsOutputWithoutLog(t *testing.T) {
	defer resetFlags()

	if err := Setup(false, "debug", ""); err != errLogstrWithoutLog {
		t.Errorf("got %v", err)
	}
}

func TestSetupRejectsUnknownComponent(t *testing.T) {
	defer resetFlags()

	if err := Setup(true, "rpc", ""); err == nil {
		t.Error("unknown component accepted")
	}
}

func TestLoggerWithoutSetup(t *testing.T) {
	resetFlags()
	// Loggers must be usable before Setup runs; output is discarded.
	DebugLogger().Debugf("discarded %d", 1)
	ScanLogger().Infof("discarded")
	TerminalLogger().Errorf("discarded")
}
