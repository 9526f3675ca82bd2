package debug

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/TURING-V2/serenity/pkg/debuginfo"
)

const (
	// The dynamic loader's image shows up in the memory map under its
	// well-known path, without the section suffix other regions carry.
	dynamicLoaderPath = "/lib64/ld-linux-x86-64.so.2"

	// Bare object names in the memory map resolve here.
	systemLibraryDir = "/usr/lib"

	// The loader ships its own C-runtime shim with redundant,
	// unparsable debug data; it is never registered.
	runtimeShimPrefix = "libgcc_s.so"
)

// MemRegion is one record of the debuggee's memory map enumeration. Only
// the display name and the base load address are consumed.
type MemRegion struct {
	Name string
	Base Address
}

// LoadedLibrary is one mapped code image inside the debuggee, with the
// load bias applied to every address in the image and the debug
// information parsed out of the backing file.
type LoadedLibrary struct {
	Name        string
	BaseAddress Address
	image       *debuginfo.MappedFile
	Info        *debuginfo.DebugInfo
}

// Path returns the filesystem path of the backing object file.
func (l *LoadedLibrary) Path() string { return l.image.Path() }

func (l *LoadedLibrary) isDynamicLoader() bool {
	return l.Name == registryKey(dynamicLoaderPath)
}

func (l *LoadedLibrary) contains(addr Address) bool {
	return addr >= l.BaseAddress && addr < l.BaseAddress+Address(l.Info.ImageSize())
}

// Symbol is the result of symbolicating an address.
type Symbol struct {
	Library string
	Name    string
}

// AddressAndPosition is a resolved source position together with the
// absolute address its code was placed at.
type AddressAndPosition struct {
	Addr Address
	File string
	Line int
}

var textRegionRe = regexp.MustCompile(`(.+): \.text`)

// objectPathForRegion derives the backing object path from a region's
// display name. Regions that do not name a code image are skipped.
func objectPathForRegion(name string) (string, bool) {
	if name == dynamicLoaderPath {
		return name, true
	}
	m := textRegionRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	path := m[1]
	if strings.HasPrefix(path, "/") {
		return path, true
	}
	return filepath.Join(systemLibraryDir, path), true
}

// registryKey is the name a library is registered under: the base name
// for shared objects (including versioned ones like libc.so.6), the full
// path for everything else.
func registryKey(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(base, ".so") || strings.Contains(base, ".so.") {
		return base
	}
	return path
}

// updateLoadedLibraries scans the debuggee's memory map and registers
// every library observed in it. The scan runs exactly once, right after
// the initial stop: libraries loaded dynamically later on are not
// discovered.
func (s *DebugSession) updateLoadedLibraries() error {
	regions, err := processMemRegions(s.pid)
	if err != nil {
		return err
	}
	s.scanRegions(regions)
	return nil
}

// scanRegions registers the libraries named by the given memory-map
// records. The first observation of a library wins; a region whose
// backing file cannot be mapped or parsed is skipped, degrading
// resolution for that library to "unknown" instead of failing the scan.
func (s *DebugSession) scanRegions(regions []MemRegion) {
	for _, region := range regions {
		path, ok := objectPathForRegion(region.Name)
		if !ok {
			continue
		}
		key := registryKey(path)
		if strings.HasPrefix(key, runtimeShimPrefix) {
			continue
		}
		if s.libraryIndex[key] {
			continue
		}

		image, err := debuginfo.Map(path)
		if err != nil {
			s.slog.Debugf("skipping %s: %v", path, err)
			continue
		}
		info, err := debuginfo.New(image.Bytes(), s.sourceRoot, uint64(region.Base))
		if err != nil {
			s.slog.Debugf("skipping %s: %v", path, err)
			image.Close()
			continue
		}

		lib := &LoadedLibrary{
			Name:        key,
			BaseAddress: Address(info.Base()),
			image:       image,
			Info:        info,
		}
		s.libraries = append(s.libraries, lib)
		s.libraryIndex[key] = true
		s.slog.Debugf("registered %s at %#x", key, uint64(lib.BaseAddress))
	}
}

func (s *DebugSession) closeLibraries() {
	for _, lib := range s.libraries {
		if lib.image != nil {
			lib.image.Close()
		}
	}
}

// Libraries returns the registered libraries in registration order.
func (s *DebugSession) Libraries() []*LoadedLibrary {
	return s.libraries
}

// LibraryAt returns the library whose image contains addr, or nil.
// Registered images do not overlap, so a linear scan finds at most one.
func (s *DebugSession) LibraryAt(addr Address) *LoadedLibrary {
	for _, lib := range s.libraries {
		if lib.contains(addr) {
			return lib
		}
	}
	return nil
}

// Symbolicate resolves addr to the symbol containing it inside the
// owning library.
func (s *DebugSession) Symbolicate(addr Address) (Symbol, bool) {
	if cached, ok := s.symbolCache.Get(addr); ok {
		return cached.(Symbol), true
	}
	lib := s.LibraryAt(addr)
	if lib == nil {
		return Symbol{}, false
	}
	sym := Symbol{
		Library: lib.Name,
		Name:    lib.Info.SymbolAt(uint64(addr - lib.BaseAddress)),
	}
	s.symbolCache.Add(addr, sym)
	return sym, true
}

// SourcePosition resolves addr to the source file and line its code was
// compiled from.
func (s *DebugSession) SourcePosition(addr Address) (debuginfo.SourcePosition, bool) {
	lib := s.LibraryAt(addr)
	if lib == nil {
		return debuginfo.SourcePosition{}, false
	}
	return lib.Info.SourcePositionFor(uint64(addr - lib.BaseAddress))
}

// AddressForSourcePosition resolves file:line to the absolute address of
// the first instruction generated for it. Libraries are searched in
// registration order; the dynamic loader is skipped.
func (s *DebugSession) AddressForSourcePosition(file string, line int) (AddressAndPosition, bool) {
	for _, lib := range s.libraries {
		if lib.isDynamicLoader() {
			continue
		}
		pos, ok := lib.Info.AddressForSourceLine(file, line)
		if !ok {
			continue
		}
		return AddressAndPosition{
			Addr: lib.BaseAddress + Address(pos.Offset),
			File: pos.File,
			Line: pos.Line,
		}, true
	}
	return AddressAndPosition{}, false
}
