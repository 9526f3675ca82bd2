// Package debuginfo answers symbol and source-line questions about one
// ELF image: which function contains an offset, where a function starts,
// and how offsets map to file:line positions and back.
//
// All offsets taken and returned by this package are relative to the
// image's load bias; callers add the bias back in to obtain absolute
// addresses in the traced process.
package debuginfo

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"path/filepath"
	"sort"
	"strings"

	"github.com/derekparker/trie"
)

// SourcePosition is a file and line inside the debuggee's sources.
type SourcePosition struct {
	File string
	Line int
}

// SourceLineAndOffset is a resolved source position together with the
// image offset of the first instruction generated for it.
type SourceLineAndOffset struct {
	File   string
	Line   int
	Offset uint64
}

type function struct {
	name  string
	entry uint64
	size  uint64
}

// DebugInfo holds the parsed debug information of one ELF image.
type DebugInfo struct {
	base       uint64
	size       uint64
	sourceRoot string

	funcs []function // sorted by entry
	names *trie.Trie

	lineData *dwarf.Data
}

// New parses the debug information out of an ELF image. sourceRoot is
// the path prefix source files of the image live under; loadAddress is
// the address the image was observed at in the process memory map.
// Line-table data is optional: without it source lookups report
// "not found" while symbol lookups keep working.
func New(data []byte, sourceRoot string, loadAddress uint64) (*DebugInfo, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	d := &DebugInfo{
		base:       loadAddress,
		size:       uint64(len(data)),
		sourceRoot: sourceRoot,
		names:      trie.New(),
	}
	if f.Type == elf.ET_EXEC {
		// Fixed-address image: symbol values are already absolute.
		d.base = 0
	}

	// The in-memory extent of the image is the highest loaded segment
	// end, which can differ from the file size in both directions.
	var extent uint64
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if end := prog.Vaddr + prog.Memsz; end > extent {
			extent = end
		}
	}
	if extent != 0 {
		d.size = extent
	}

	symbols, _ := f.Symbols()
	dynamic, _ := f.DynamicSymbols()
	seen := make(map[string]bool)
	for _, sym := range append(symbols, dynamic...) {
		if elf.ST_TYPE(sym.Info) != elf.STT_FUNC || sym.Value == 0 || sym.Name == "" {
			continue
		}
		if seen[sym.Name] {
			continue
		}
		seen[sym.Name] = true
		d.funcs = append(d.funcs, function{name: sym.Name, entry: sym.Value, size: sym.Size})
	}
	sort.Slice(d.funcs, func(i, j int) bool { return d.funcs[i].entry < d.funcs[j].entry })
	for _, fn := range d.funcs {
		d.names.Add(fn.name, fn.entry)
	}

	if dw, err := f.DWARF(); err == nil {
		d.lineData = dw
	}
	return d, nil
}

// Base returns the effective load bias of the image.
func (d *DebugInfo) Base() uint64 { return d.base }

// ImageSize returns the in-memory extent of the image in bytes.
func (d *DebugInfo) ImageSize() uint64 { return d.size }

// FindFunction returns the image offset of the function with the given
// name.
func (d *DebugInfo) FindFunction(name string) (uint64, bool) {
	node, ok := d.names.Find(name)
	if !ok {
		return 0, false
	}
	return node.Meta().(uint64), true
}

// FunctionsMatching returns the names of all functions starting with
// prefix, for name completion.
func (d *DebugInfo) FunctionsMatching(prefix string) []string {
	if prefix == "" {
		return d.names.Keys()
	}
	return d.names.PrefixSearch(prefix)
}

// SymbolAt returns the name of the function containing the given image
// offset, or "??" when no symbol covers it.
func (d *DebugInfo) SymbolAt(offset uint64) string {
	i := sort.Search(len(d.funcs), func(i int) bool { return d.funcs[i].entry > offset })
	if i == 0 {
		return "??"
	}
	fn := d.funcs[i-1]
	if fn.size != 0 && offset >= fn.entry+fn.size {
		return "??"
	}
	return fn.name
}

// SourcePositionFor returns the source position the given image offset
// was compiled from.
func (d *DebugInfo) SourcePositionFor(offset uint64) (SourcePosition, bool) {
	if d.lineData == nil {
		return SourcePosition{}, false
	}
	r := d.lineData.Reader()
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			return SourcePosition{}, false
		}
		if entry.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}
		lr, err := d.lineData.LineReader(entry)
		if err != nil || lr == nil {
			r.SkipChildren()
			continue
		}
		var le dwarf.LineEntry
		if err := lr.SeekPC(offset, &le); err == nil && le.File != nil {
			return SourcePosition{File: d.displayPath(le.File.Name), Line: le.Line}, true
		}
		r.SkipChildren()
	}
}

// AddressForSourceLine returns the image offset of the first statement
// generated for file:line. The file may be given absolute, relative to
// the source root, or as a path suffix.
func (d *DebugInfo) AddressForSourceLine(file string, line int) (SourceLineAndOffset, bool) {
	if d.lineData == nil {
		return SourceLineAndOffset{}, false
	}
	r := d.lineData.Reader()
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			return SourceLineAndOffset{}, false
		}
		if entry.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}
		lr, err := d.lineData.LineReader(entry)
		if err != nil || lr == nil {
			r.SkipChildren()
			continue
		}
		var le dwarf.LineEntry
		for lr.Next(&le) == nil {
			if le.EndSequence || !le.IsStmt || le.Line != line || le.File == nil {
				continue
			}
			if !d.fileMatches(le.File.Name, file) {
				continue
			}
			return SourceLineAndOffset{
				File:   d.displayPath(le.File.Name),
				Line:   le.Line,
				Offset: le.Address,
			}, true
		}
		r.SkipChildren()
	}
}

func (d *DebugInfo) fileMatches(candidate, requested string) bool {
	if candidate == requested {
		return true
	}
	if d.sourceRoot != "" && candidate == filepath.Join(d.sourceRoot, requested) {
		return true
	}
	return strings.HasSuffix(candidate, "/"+requested)
}

// displayPath strips the source root off paths reported to the user.
func (d *DebugInfo) displayPath(path string) string {
	if d.sourceRoot == "" {
		return path
	}
	rel := strings.TrimPrefix(path, strings.TrimSuffix(d.sourceRoot, "/"))
	if rel == path {
		return path
	}
	return strings.TrimPrefix(rel, "/")
}
