package debuginfo

import (
	"os"
	"strings"
	"testing"

	"github.com/TURING-V2/serenity/pkg/debug/test"
)

func TestMain(m *testing.M) {
	os.Exit(test.RunTestsWithFixtures(m))
}

func openFixtureInfo(t *testing.T) (*DebugInfo, *MappedFile) {
	fixture := test.BuildFixture("breakmain")
	image, err := Map(fixture.Path)
	if err != nil {
		t.Fatal(err)
	}
	info, err := New(image.Bytes(), "", 0x400000)
	if err != nil {
		image.Close()
		t.Fatal(err)
	}
	return info, image
}

func TestFindFunction(t *testing.T) {
	info, image := openFixtureInfo(t)
	defer image.Close()

	for _, name := range []string{"main.main", "main.sayhi"} {
		if _, ok := info.FindFunction(name); !ok {
			t.Errorf("%s not found", name)
		}
	}
	if _, ok := info.FindFunction("main.doesnotexist"); ok {
		t.Error("nonexistent function found")
	}
}

func TestFunctionsMatching(t *testing.T) {
	info, image := openFixtureInfo(t)
	defer image.Close()

	names := info.FunctionsMatching("main.")
	want := map[string]bool{"main.main": false, "main.sayhi": false}
	for _, name := range names {
		if _, ok := want[name]; ok {
			want[name] = true
		}
		if !strings.HasPrefix(name, "main.") {
			t.Errorf("completion %q does not match prefix", name)
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("%s missing from completions", name)
		}
	}

	if len(info.FunctionsMatching("")) < len(names) {
		t.Error("empty prefix returned fewer names than a specific one")
	}
}

func TestSymbolAt(t *testing.T) {
	info, image := openFixtureInfo(t)
	defer image.Close()

	entry, ok := info.FindFunction("main.sayhi")
	if !ok {
		t.Fatal("main.sayhi not found")
	}
	if name := info.SymbolAt(entry); name != "main.sayhi" {
		t.Errorf("SymbolAt(entry) = %q", name)
	}
	if name := info.SymbolAt(entry + 1); name != "main.sayhi" {
		t.Errorf("SymbolAt(entry+1) = %q", name)
	}
	if name := info.SymbolAt(0); name != "??" {
		t.Errorf("SymbolAt(0) = %q, want \"??\"", name)
	}
}

func TestImageExtentCoversFunctions(t *testing.T) {
	info, image := openFixtureInfo(t)
	defer image.Close()

	entry, ok := info.FindFunction("main.main")
	if !ok {
		t.Fatal("main.main not found")
	}
	if entry >= info.ImageSize() {
		t.Errorf("main.main at %#x outside image extent %#x", entry, info.ImageSize())
	}
}

func TestSourceLineRoundTrip(t *testing.T) {
	info, image := openFixtureInfo(t)
	defer image.Close()

	entry, ok := info.FindFunction("main.sayhi")
	if !ok {
		t.Fatal("main.sayhi not found")
	}
	pos, ok := info.SourcePositionFor(entry)
	if !ok {
		t.Fatal("no source position for main.sayhi entry")
	}
	if !strings.HasSuffix(pos.File, "breakmain.go") {
		t.Errorf("source file is %q", pos.File)
	}

	resolved, ok := info.AddressForSourceLine(pos.File, pos.Line)
	if !ok {
		t.Fatalf("%s:%d did not resolve to an address", pos.File, pos.Line)
	}
	if resolved.Line != pos.Line {
		t.Errorf("resolved line %d, want %d", resolved.Line, pos.Line)
	}
	if got := info.SymbolAt(resolved.Offset); got != "main.sayhi" {
		t.Errorf("resolved offset %#x belongs to %q", resolved.Offset, got)
	}
}

func TestSourceRootStripping(t *testing.T) {
	fixture := test.BuildFixture("breakmain")
	image, err := Map(fixture.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer image.Close()

	root := fixture.Source[:strings.LastIndex(fixture.Source, "/")]
	info, err := New(image.Bytes(), root, 0x400000)
	if err != nil {
		t.Fatal(err)
	}

	entry, ok := info.FindFunction("main.sayhi")
	if !ok {
		t.Fatal("main.sayhi not found")
	}
	pos, ok := info.SourcePositionFor(entry)
	if !ok {
		t.Fatal("no source position")
	}
	if strings.HasPrefix(pos.File, root) {
		t.Errorf("reported path %q still carries the source root", pos.File)
	}

	// A path relative to the source root must resolve too.
	if _, ok := info.AddressForSourceLine("breakmain.go", pos.Line); !ok {
		t.Errorf("breakmain.go:%d did not resolve relative to the source root", pos.Line)
	}
}
