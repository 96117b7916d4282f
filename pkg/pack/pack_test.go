package pack

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTestArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")

	a, err := Open(path, Write)
	if err != nil {
		t.Fatalf("Open for write: %v", err)
	}
	entries := map[string]string{
		"hello.txt":      "hello world",
		"sub/nested.txt": "nested content",
	}
	for _, name := range []string{"hello.txt", "sub/nested.txt"} {
		if err := a.EntryOpen(name); err != nil {
			t.Fatalf("EntryOpen(%q): %v", name, err)
		}
		if err := a.EntryWrite([]byte(entries[name])); err != nil {
			t.Fatalf("EntryWrite(%q): %v", name, err)
		}
		if err := a.EntryClose(); err != nil {
			t.Fatalf("EntryClose(%q): %v", name, err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := writeTestArchive(t)

	a, err := Open(path, Read)
	if err != nil {
		t.Fatalf("Open for read: %v", err)
	}
	defer a.Close()

	entries := a.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() = %v, want 2 entries", entries)
	}
	if !a.Contains("sub/nested.txt") {
		t.Error("Contains(sub/nested.txt) = false")
	}

	if err := a.EntryOpen("hello.txt"); err != nil {
		t.Fatalf("EntryOpen: %v", err)
	}
	data, err := a.EntryRead()
	if err != nil {
		t.Fatalf("EntryRead: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("EntryRead = %q, want %q", data, "hello world")
	}
	if err := a.EntryClose(); err != nil {
		t.Fatalf("EntryClose: %v", err)
	}
}

func TestEntryFread(t *testing.T) {
	path := writeTestArchive(t)

	a, err := Open(path, Read)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	if err := a.EntryOpen("sub/nested.txt"); err != nil {
		t.Fatalf("EntryOpen: %v", err)
	}
	dest := filepath.Join(t.TempDir(), "extracted.txt")
	if err := a.EntryFread(dest); err != nil {
		t.Fatalf("EntryFread: %v", err)
	}
	a.EntryClose()

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(data) != "nested content" {
		t.Errorf("extracted = %q, want %q", data, "nested content")
	}
}

func TestEntryNotFound(t *testing.T) {
	path := writeTestArchive(t)

	a, err := Open(path, Read)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	err = a.EntryOpen("missing.txt")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("EntryOpen(missing) error = %v, want ErrEntryNotFound", err)
	}
}

func TestOpenMissingArchive(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.zip"), Read)
	if err == nil {
		t.Fatal("Open of missing archive should fail")
	}
}

func TestModeEnforcement(t *testing.T) {
	path := writeTestArchive(t)

	a, err := Open(path, Read)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	if err := a.EntryWrite([]byte("x")); !errors.Is(err, ErrWrongMode) {
		t.Errorf("EntryWrite in read mode = %v, want ErrWrongMode", err)
	}
	if _, err := a.EntryRead(); !errors.Is(err, ErrNoOpenEntry) {
		t.Errorf("EntryRead without open entry = %v, want ErrNoOpenEntry", err)
	}
}

func TestCloseTwice(t *testing.T) {
	path := writeTestArchive(t)
	a, err := Open(path, Read)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
