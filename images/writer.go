package images

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrEmptyName is returned for an empty or path-like image name.
var ErrEmptyName = errors.New("images: empty name")

// Writer commits image files. A nil error means the file is fully
// written; records reference an image only after that.
type Writer interface {
	Write(ctx context.Context, name string, data []byte) error
}

// FSWriter writes images into one directory.
type FSWriter struct {
	dir string
}

// NewFSWriter creates dir if needed.
func NewFSWriter(dir string) (*FSWriter, error) {
	if dir == "" {
		return nil, fmt.Errorf("image directory: %w", ErrEmptyName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}
	return &FSWriter{dir: dir}, nil
}

// Dir returns the target directory.
func (w *FSWriter) Dir() string { return w.dir }

// Write stores data under name through a temp file and a rename, so a
// reader never sees a partial file.
func (w *FSWriter) Write(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("creating temp image: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after the rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing image %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing image %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing image %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(w.dir, name)); err != nil {
		return fmt.Errorf("committing image %s: %w", name, err)
	}
	return nil
}

// MemWriter keeps images in memory. Fail, when set, is consulted before
// each write and its error returned unchanged.
type MemWriter struct {
	Fail func(name string) error

	mu    sync.Mutex
	files map[string][]byte
}

// NewMemWriter returns an empty MemWriter.
func NewMemWriter() *MemWriter {
	return &MemWriter{files: make(map[string][]byte)}
}

func (m *MemWriter) Write(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Fail != nil {
		if err := m.Fail(name); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[name] = append([]byte(nil), data...)
	return nil
}

// Get returns the stored bytes for name.
func (m *MemWriter) Get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[name]
	return b, ok
}

// Names lists stored names in sorted order.
func (m *MemWriter) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for n := range m.files {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrEmptyName, name)
	}
	return nil
}
