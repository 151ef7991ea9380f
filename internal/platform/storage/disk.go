package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrFileMissing = errors.New("file missing")

// Disk stores files under a root directory, addressed by slash separated
// relative paths.
type Disk struct {
	root string
}

func NewDisk(root string) *Disk {
	return &Disk{root: root}
}

func (d *Disk) Root() string { return d.root }

func (d *Disk) path(rel string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(rel))
	if strings.Contains(rel, "..") {
		return "", fmt.Errorf("invalid path %q", rel)
	}
	return filepath.Join(d.root, clean), nil
}

// Save writes data atomically through a temp file and rename.
func (d *Disk) Save(rel string, data []byte) error {
	full, err := d.path(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", rel, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", rel, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", rel, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", rel, err)
	}
	return nil
}

// Remove deletes rel. A file that is already gone is not an error.
func (d *Disk) Remove(rel string) error {
	full, err := d.path(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", rel, err)
	}
	return nil
}

// Open returns a reader for rel, or ErrFileMissing.
func (d *Disk) Open(rel string) (io.ReadCloser, error) {
	full, err := d.path(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileMissing
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rel, err)
	}
	return f, nil
}
