package sink

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicFile writes into a temporary file next to its target path. Prepare
// makes the content durable, Publish renames it into place and Revert takes a
// published file back out.
type AtomicFile struct {
	path      string
	tmp       *os.File
	prepared  bool
	published bool
}

// CreateAtomic creates the temporary file for path, creating its directory
// when needed.
func CreateAtomic(path string) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary output file: %w", err)
	}
	return &AtomicFile{path: path, tmp: tmp}, nil
}

// Path returns the target path.
func (f *AtomicFile) Path() string { return f.path }

func (f *AtomicFile) Write(p []byte) (int, error) { return f.tmp.Write(p) }

// Prepare syncs and closes the temporary file. On failure the temporary file
// is removed.
func (f *AtomicFile) Prepare() error {
	if f.prepared {
		return nil
	}
	if err := f.tmp.Sync(); err != nil {
		_ = f.Abort()
		return fmt.Errorf("failed to sync %s: %w", f.path, err)
	}
	if err := f.tmp.Close(); err != nil {
		_ = os.Remove(f.tmp.Name())
		return fmt.Errorf("failed to close %s: %w", f.path, err)
	}
	if err := os.Chmod(f.tmp.Name(), 0644); err != nil {
		_ = os.Remove(f.tmp.Name())
		return fmt.Errorf("failed to set permissions on %s: %w", f.path, err)
	}
	f.prepared = true
	return nil
}

// Publish renames the prepared file into place, preparing it first if needed.
func (f *AtomicFile) Publish() error {
	if f.published {
		return nil
	}
	if err := f.Prepare(); err != nil {
		return err
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		_ = os.Remove(f.tmp.Name())
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	f.published = true
	return nil
}

// Abort removes the temporary file. It does nothing once published.
func (f *AtomicFile) Abort() error {
	if f.published {
		return nil
	}
	_ = f.tmp.Close()
	if err := os.Remove(f.tmp.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Revert removes a published file. Whatever the path held before Publish is
// already gone.
func (f *AtomicFile) Revert() error {
	if !f.published {
		return f.Abort()
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", f.path, err)
	}
	f.published = false
	return nil
}

// WriteFileAtomic writes the output of fn to path through a temporary file.
func WriteFileAtomic(path string, fn func(f *os.File) error) error {
	af, err := CreateAtomic(path)
	if err != nil {
		return err
	}
	if err := fn(af.tmp); err != nil {
		_ = af.Abort()
		return err
	}
	return af.Publish()
}
