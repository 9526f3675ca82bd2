package debug

import (
	"strings"
	"testing"
)

const sampleMaps = `00400000-004b0000 r-xp 00000000 08:01 1310722    /home/user/hello
004b0000-00550000 r--p 000b0000 08:01 1310722    /home/user/hello
00550000-00560000 rw-p 00150000 08:01 1310722    /home/user/hello
00560000-00590000 rw-p 00000000 00:00 0          [heap]
7f2a10000000-7f2a10026000 r--p 00000000 08:01 42 /usr/lib/libc.so.6
7f2a10026000-7f2a101a0000 r-xp 00026000 08:01 42 /usr/lib/libc.so.6
7f2a101a0000-7f2a101f5000 r--p 001a0000 08:01 42 /usr/lib/libc.so.6
7f2a101f5000-7f2a101f9000 rw-p 001f4000 08:01 42 /usr/lib/libc.so.6
7f2a10400000-7f2a10402000 r-xp 00000000 08:01 43 /lib64/ld-linux-x86-64.so.2
7ffd60000000-7ffd60021000 rw-p 00000000 00:00 0  [stack]
7ffd600f3000-7ffd600f5000 r-xp 00000000 00:00 0  [vdso]
`

func TestParseMemRegions(t *testing.T) {
	regions, err := parseMemRegions(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatal(err)
	}

	want := []MemRegion{
		{Name: "/home/user/hello: .text", Base: 0x400000},
		{Name: "/usr/lib/libc.so.6: .text", Base: 0x7f2a10000000},
		{Name: "/lib64/ld-linux-x86-64.so.2: .text", Base: 0x7f2a10400000},
	}
	if len(regions) != len(want) {
		t.Fatalf("got %d regions, want %d: %+v", len(regions), len(want), regions)
	}
	for i := range want {
		if regions[i] != want[i] {
			t.Errorf("region %d = %+v, want %+v", i, regions[i], want[i])
		}
	}
}

func TestParseMemRegionsBaseIsLowestMapping(t *testing.T) {
	// Mappings of the same file are not guaranteed to be listed lowest
	// first.
	const maps = `7f000a000000-7f000a010000 r-xp 00010000 08:01 7 /usr/lib/libz.so.1
7f0009ff0000-7f000a000000 r--p 00000000 08:01 7 /usr/lib/libz.so.1
`
	regions, err := parseMemRegions(strings.NewReader(maps))
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	if regions[0].Base != 0x7f0009ff0000 {
		t.Errorf("base = %#x, want lowest mapping", uint64(regions[0].Base))
	}
}

func TestParseMemRegionsSkipsNonExecutableFiles(t *testing.T) {
	const maps = `7f0000000000-7f0000004000 r--p 00000000 08:01 9 /usr/lib/locale/locale-archive
`
	regions, err := parseMemRegions(strings.NewReader(maps))
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 0 {
		t.Fatalf("got %+v, want no regions", regions)
	}
}
