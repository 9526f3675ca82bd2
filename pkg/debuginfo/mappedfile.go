package debuginfo

import (
	"fmt"
	"os"

	sys "golang.org/x/sys/unix"
)

// MappedFile is a read-only memory mapping of an object file on disk.
// The returned byte slices refer directly to the mapped segment and stay
// valid until Close.
type MappedFile struct {
	path string
	data []byte
}

// Map maps the named file read-only.
func Map(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size == 0 {
		return &MappedFile{path: path, data: []byte{}}, nil
	}
	if size != int64(int(size)) {
		return nil, fmt.Errorf("mmap: file %q is too large", path)
	}

	data, err := sys.Mmap(int(f.Fd()), 0, int(size), sys.PROT_READ, sys.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %q: %w", path, err)
	}
	return &MappedFile{path: path, data: data}, nil
}

// Path returns the name of the mapped file.
func (m *MappedFile) Path() string { return m.path }

// Bytes returns the mapped contents.
func (m *MappedFile) Bytes() []byte { return m.data }

// Size returns the size of the mapped file.
func (m *MappedFile) Size() uint64 { return uint64(len(m.data)) }

// Close unmaps the file.
func (m *MappedFile) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if len(data) == 0 {
		return nil
	}
	return sys.Munmap(data)
}
