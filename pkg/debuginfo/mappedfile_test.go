package debuginfo

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestMapFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	content := []byte("mapped file content")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Map(path)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.Path() != path {
		t.Errorf("Path() = %q", m.Path())
	}
	if m.Size() != uint64(len(content)) {
		t.Errorf("Size() = %d, want %d", m.Size(), len(content))
	}
	if !bytes.Equal(m.Bytes(), content) {
		t.Errorf("Bytes() = %q", m.Bytes())
	}
}

func TestMapEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Map(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Bytes()) != 0 {
		t.Errorf("Bytes() has %d bytes", len(m.Bytes()))
	}
	if err := m.Close(); err != nil {
		t.Error(err)
	}
}

func TestMapMissingFile(t *testing.T) {
	if _, err := Map("/does/not/exist"); err == nil {
		t.Error("mapping a missing file succeeded")
	}
}
