package debug

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// processMemRegions enumerates the debuggee's memory map from
// /proc/<pid>/maps. One record is produced per distinct executable
// file-backed image, named "<path>: .text" and carrying the file's
// lowest mapping address, which is the load bias of the image.
func processMemRegions(pid int) ([]MemRegion, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseMemRegions(f)
}

func parseMemRegions(r io.Reader) ([]MemRegion, error) {
	var (
		regions    []MemRegion
		lowestBase = make(map[string]Address)
		executable = make(map[string]bool)
		order      []string
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// address           perms offset  dev   inode      pathname
		// 7f0a8000-7f0b0000 r-xp 00000000 08:01 123        /usr/lib/libc.so.6
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 || !strings.HasPrefix(fields[5], "/") {
			continue
		}
		path := fields[5]
		start, err := strconv.ParseUint(strings.SplitN(fields[0], "-", 2)[0], 16, 64)
		if err != nil {
			continue
		}
		if _, seen := lowestBase[path]; !seen {
			lowestBase[path] = Address(start)
			order = append(order, path)
		} else if Address(start) < lowestBase[path] {
			lowestBase[path] = Address(start)
		}
		if strings.Contains(fields[1], "x") {
			executable[path] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, path := range order {
		if !executable[path] {
			continue
		}
		regions = append(regions, MemRegion{
			Name: fmt.Sprintf("%s: .text", path),
			Base: lowestBase[path],
		})
	}
	return regions, nil
}
