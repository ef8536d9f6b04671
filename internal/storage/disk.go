package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound indicates the named file does not exist on disk.
var ErrNotFound = errors.New("storage: file not found")

// Disk stores invoice PDFs on the local filesystem under a single directory.
type Disk struct {
	dir string
}

// NewDisk ensures dir exists and returns a store rooted there.
func NewDisk(dir string) (*Disk, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	return &Disk{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (d *Disk) Dir() string {
	return d.dir
}

// Save writes r to a new uuid-prefixed file and returns the stored filename
// and its absolute path. The original filename is sanitised to its base name.
func (d *Disk) Save(filename string, r io.Reader) (string, string, error) {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "upload.pdf"
	}
	stored := uuid.NewString() + "_" + base
	path := filepath.Join(d.dir, stored)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", "", fmt.Errorf("storage: close file: %w", err)
	}
	return stored, path, nil
}

// SaveBytes stores data under a uuid-prefixed name derived from filename.
func (d *Disk) SaveBytes(filename string, data []byte) (string, string, error) {
	return d.Save(filename, strings.NewReader(string(data)))
}

// SaveNamed writes data under the exact filename, replacing any previous
// version. Exports reuse this so re-exporting an invoice overwrites its PDF.
func (d *Disk) SaveNamed(filename string, data []byte) (string, error) {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("storage: invalid filename %q", filename)
	}
	path := filepath.Join(d.dir, base)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return path, nil
}

// Open returns a reader for a previously stored path. The path must resolve
// inside the store directory.
func (d *Disk) Open(path string) (io.ReadCloser, error) {
	if err := d.contains(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: open file: %w", err)
	}
	return f, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (d *Disk) Remove(path string) error {
	if err := d.contains(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove file: %w", err)
	}
	return nil
}

func (d *Disk) contains(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("storage: resolve path: %w", err)
	}
	root, err := filepath.Abs(d.dir)
	if err != nil {
		return fmt.Errorf("storage: resolve dir: %w", err)
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return fmt.Errorf("storage: path %q escapes store directory", path)
	}
	return nil
}
