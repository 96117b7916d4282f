// Package pack wraps a ZIP archive behind the entry-oriented interface
// the format codecs need: open an archive for reading or writing, open
// one named entry at a time, stream bytes in or out, close everything
// on every exit path. Write mode always deflates.
package pack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Mode selects the archive direction.
type Mode int

const (
	Read Mode = iota
	Write
)

// Archive errors.
var (
	ErrEntryNotFound = errors.New("entry not found in archive")
	ErrNoOpenEntry   = errors.New("no entry is open")
	ErrWrongMode     = errors.New("operation not valid for archive mode")
)

// Archive is an open ZIP package.
type Archive struct {
	mode Mode
	path string

	// write state
	file  *os.File
	zw    *zip.Writer
	entry io.Writer

	// read state
	zr *zip.ReadCloser
	rc io.ReadCloser
}

// Open opens an archive at path. Read mode requires an existing
// archive; Write mode truncates and creates a new one.
func Open(path string, mode Mode) (*Archive, error) {
	a := &Archive{mode: mode, path: path}
	switch mode {
	case Read:
		zr, err := zip.OpenReader(path)
		if err != nil {
			return nil, fmt.Errorf("opening archive %s: %w", path, err)
		}
		a.zr = zr
	case Write:
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("creating archive %s: %w", path, err)
		}
		a.file = f
		a.zw = zip.NewWriter(f)
	default:
		return nil, fmt.Errorf("%w: %d", ErrWrongMode, mode)
	}
	return a, nil
}

// Entries returns the file entry names of a read-mode archive,
// directory entries excluded.
func (a *Archive) Entries() []string {
	if a.zr == nil {
		return nil
	}
	names := make([]string, 0, len(a.zr.File))
	for _, f := range a.zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// Contains reports whether a read-mode archive holds the named entry.
func (a *Archive) Contains(name string) bool {
	if a.zr == nil {
		return false
	}
	for _, f := range a.zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

// EntryOpen begins a new entry (write mode) or selects an existing one
// (read mode). Any previously open read entry is closed first.
func (a *Archive) EntryOpen(name string) error {
	switch a.mode {
	case Write:
		w, err := a.zw.Create(name)
		if err != nil {
			return fmt.Errorf("creating entry %s: %w", name, err)
		}
		a.entry = w
		return nil
	case Read:
		if a.rc != nil {
			a.rc.Close()
			a.rc = nil
		}
		for _, f := range a.zr.File {
			if f.Name != name {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("opening entry %s: %w", name, err)
			}
			a.rc = rc
			return nil
		}
		return fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	return ErrWrongMode
}

// EntryWrite appends bytes to the currently open write entry.
func (a *Archive) EntryWrite(p []byte) error {
	if a.mode != Write {
		return ErrWrongMode
	}
	if a.entry == nil {
		return ErrNoOpenEntry
	}
	if _, err := a.entry.Write(p); err != nil {
		return fmt.Errorf("writing entry: %w", err)
	}
	return nil
}

// EntryRead returns the full content of the currently open read entry.
func (a *Archive) EntryRead() ([]byte, error) {
	if a.mode != Read {
		return nil, ErrWrongMode
	}
	if a.rc == nil {
		return nil, ErrNoOpenEntry
	}
	data, err := io.ReadAll(a.rc)
	if err != nil {
		return nil, fmt.Errorf("reading entry: %w", err)
	}
	return data, nil
}

// EntryFread extracts the currently open read entry to a local file.
func (a *Archive) EntryFread(destPath string) error {
	if a.mode != Read {
		return ErrWrongMode
	}
	if a.rc == nil {
		return ErrNoOpenEntry
	}
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	_, err = io.Copy(out, a.rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("extracting entry to %s: %w", destPath, err)
	}
	return nil
}

// EntryClose closes the currently open entry. Safe to call when no
// entry is open.
func (a *Archive) EntryClose() error {
	switch a.mode {
	case Write:
		// zip.Writer finalizes an entry when the next one opens or
		// the writer closes; just drop the handle.
		a.entry = nil
	case Read:
		if a.rc != nil {
			err := a.rc.Close()
			a.rc = nil
			if err != nil {
				return fmt.Errorf("closing entry: %w", err)
			}
		}
	}
	return nil
}

// Close finalizes and closes the archive. Safe to call more than once.
func (a *Archive) Close() error {
	var firstErr error
	if a.rc != nil {
		a.rc.Close()
		a.rc = nil
	}
	if a.zr != nil {
		firstErr = a.zr.Close()
		a.zr = nil
	}
	if a.zw != nil {
		if err := a.zw.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.zw = nil
		a.entry = nil
	}
	if a.file != nil {
		if err := a.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.file = nil
	}
	if firstErr != nil {
		return fmt.Errorf("closing archive %s: %w", a.path, firstErr)
	}
	return nil
}
