package security

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathEscapes  = errors.New("path escapes store directory")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
)

const (
	DirPerm  = 0700 // Directory: owner rwx only
	FilePerm = 0600 // File: owner rw only

	tmpSuffix = ".tmp"
)

// Dir confines file access to one store directory using the os.Root API.
// Names are relative to the directory; symlinks cannot lead outside it.
type Dir struct {
	root *os.Root
	path string
}

// OpenDir opens the directory at path, creating it with DirPerm if needed
func OpenDir(path string) (*Dir, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, DirPerm); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store directory: %w", err)
	}

	return &Dir{
		root: root,
		path: absPath,
	}, nil
}

// Close releases the directory handle
func (d *Dir) Close() error {
	if d.root != nil {
		return d.root.Close()
	}
	return nil
}

// Path returns the absolute directory path
func (d *Dir) Path() string {
	return d.path
}

// Validate checks a file name and returns it cleaned. It rejects:
//   - Empty names
//   - Absolute paths
//   - Paths that escape the directory (using ..)
//   - Names that are not local (reserved names on Windows)
func (d *Dir) Validate(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyPath
	}

	if !filepath.IsLocal(name) {
		if filepath.IsAbs(name) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, name)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	clean := filepath.Clean(name)
	rel, err := filepath.Rel(d.path, filepath.Join(d.path, clean))
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	return rel, nil
}

// ReadFile reads a file inside the directory
func (d *Dir) ReadFile(name string) ([]byte, error) {
	clean, err := d.Validate(name)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	f, err := d.root.Open(clean)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// WriteFile replaces a file inside the directory. Data goes to a
// temporary file first, which is then renamed over name.
func (d *Dir) WriteFile(name string, data []byte) error {
	clean, err := d.Validate(name)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	tmp := clean + tmpSuffix

	f, err := d.root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FilePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		d.root.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		d.root.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		d.root.Remove(tmp)
		return err
	}

	if err := os.Rename(filepath.Join(d.path, tmp), filepath.Join(d.path, clean)); err != nil {
		d.root.Remove(tmp)
		return err
	}
	return nil
}

// Remove deletes a file inside the directory
func (d *Dir) Remove(name string) error {
	clean, err := d.Validate(name)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return d.root.Remove(clean)
}

// Stat returns file info for a file inside the directory
func (d *Dir) Stat(name string) (os.FileInfo, error) {
	clean, err := d.Validate(name)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return d.root.Stat(clean)
}
