package atomicfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteCreatesFileAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	err := Write(path, func(f *os.File) error {
		_, err := f.Write([]byte("hello"))
		return err
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("content = %q, want hello", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries after write, want 1 (no leftover temp file)", len(entries))
	}
}

func TestWriteLeavesTargetUntouchedOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Write(path, func(f *os.File) error {
		return os.ErrInvalid
	})
	if err == nil {
		t.Fatal("expected Write to propagate the callback error")
	}

	got, _ := os.ReadFile(path)
	if string(got) != "original" {
		t.Errorf("target file was modified despite failed write: %q", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("leftover temp file(s) after failed write: %d entries", len(entries))
	}
}
