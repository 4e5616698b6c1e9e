// Package media holds the local collaborators that consume item content: the
// disk writer for fetched items and the audio player.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrBadName = errors.New("media: item name is not a valid file name")

// DiskWriter saves fetched items.
type DiskWriter interface {
	WriteItem(name string, data []byte) error
}

// DirWriter writes items as files into one directory.
type DirWriter struct {
	Dir string
}

func NewDirWriter(dir string) *DirWriter {
	return &DirWriter{Dir: dir}
}

// Path is where an item named name ends up.
func (w *DirWriter) Path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return filepath.Join(w.Dir, name), nil
}

// WriteItem writes data to a temporary file and renames it into place so a
// partially written item is never visible.
func (w *DirWriter) WriteItem(name string, data []byte) error {
	path, err := w.Path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	tmp, err := os.CreateTemp(w.Dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), path)
}
