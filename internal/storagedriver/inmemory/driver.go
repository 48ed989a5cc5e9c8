// Package inmemory implements storagedriver.StorageDriver backed by a
// process-local map. It exists for tests: mapping store, content store, and
// orphan collector tests all run against it instead of a real filesystem.
package inmemory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/vircadia/assetd/internal/storagedriver"
)

// Driver is a storagedriver.StorageDriver backed by an in-memory map.
// Intended solely for tests.
type Driver struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ storagedriver.StorageDriver = (*Driver)(nil)

// New constructs an empty Driver.
func New() *Driver {
	return &Driver{files: make(map[string][]byte)}
}

func (d *Driver) Name() string { return "inmemory" }

func (d *Driver) GetContent(ctx context.Context, p string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	content, ok := d.files[p]
	if !ok {
		return nil, storagedriver.PathNotFoundError{Path: p}
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

func (d *Driver) PutContent(ctx context.Context, p string, contents []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored := make([]byte, len(contents))
	copy(stored, contents)
	d.files[p] = stored
	return nil
}

func (d *Driver) Reader(ctx context.Context, p string, offset int64) (io.ReadCloser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	content, ok := d.files[p]
	if !ok {
		return nil, storagedriver.PathNotFoundError{Path: p}
	}
	if offset > int64(len(content)) {
		return nil, storagedriver.InvalidOffsetError{Path: p, Offset: offset}
	}
	return io.NopCloser(bytes.NewReader(content[offset:])), nil
}

func (d *Driver) Writer(ctx context.Context, p string, append bool) (storagedriver.FileWriter, error) {
	d.mu.Lock()
	existing := d.files[p]
	d.mu.Unlock()

	var buf bytes.Buffer
	if append {
		buf.Write(existing)
	}
	return &fileWriter{driver: d, path: p, buf: &buf}, nil
}

func (d *Driver) Stat(ctx context.Context, p string) (storagedriver.FileInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if content, ok := d.files[p]; ok {
		return fileInfo{path: p, size: int64(len(content))}, nil
	}
	if d.hasDescendantsLocked(p) {
		return fileInfo{path: p, isDir: true}, nil
	}
	return nil, storagedriver.PathNotFoundError{Path: p}
}

func (d *Driver) List(ctx context.Context, p string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	prefix := strings.TrimSuffix(p, "/") + "/"
	if p == "/" {
		prefix = "/"
	}

	seen := make(map[string]bool)
	for name := range d.files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if rest == "" {
			continue
		}
		child := strings.SplitN(rest, "/", 2)[0]
		seen[path.Join(p, child)] = true
	}

	if len(seen) == 0 && !d.direxistsLocked(p) {
		return nil, storagedriver.PathNotFoundError{Path: p}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (d *Driver) Move(ctx context.Context, sourcePath, destPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	content, ok := d.files[sourcePath]
	if !ok {
		return storagedriver.PathNotFoundError{Path: sourcePath}
	}
	d.files[destPath] = content
	delete(d.files, sourcePath)
	return nil
}

func (d *Driver) Delete(ctx context.Context, p string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefix := strings.TrimSuffix(p, "/") + "/"
	deleted := false
	if _, ok := d.files[p]; ok {
		delete(d.files, p)
		deleted = true
	}
	for name := range d.files {
		if strings.HasPrefix(name, prefix) {
			delete(d.files, name)
			deleted = true
		}
	}
	if !deleted {
		return storagedriver.PathNotFoundError{Path: p}
	}
	return nil
}

func (d *Driver) hasDescendantsLocked(p string) bool {
	prefix := strings.TrimSuffix(p, "/") + "/"
	for name := range d.files {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (d *Driver) direxistsLocked(p string) bool {
	return p == "/" || d.hasDescendantsLocked(p)
}

type fileInfo struct {
	path  string
	size  int64
	isDir bool
}

func (fi fileInfo) Path() string { return fi.path }
func (fi fileInfo) Size() int64  { return fi.size }
func (fi fileInfo) IsDir() bool  { return fi.isDir }

type fileWriter struct {
	driver    *Driver
	path      string
	buf       *bytes.Buffer
	closed    bool
	committed bool
	cancelled bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	if w.closed || w.committed || w.cancelled {
		return 0, fmt.Errorf("inmemory: writer already finalized")
	}
	return w.buf.Write(p)
}

func (w *fileWriter) Size() int64 {
	return int64(w.buf.Len())
}

func (w *fileWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fileWriter) Cancel(ctx context.Context) error {
	w.cancelled = true
	return nil
}

func (w *fileWriter) Commit(ctx context.Context) error {
	if w.committed || w.cancelled {
		return fmt.Errorf("inmemory: writer already finalized")
	}
	w.committed = true
	return w.driver.PutContent(ctx, w.path, w.buf.Bytes())
}
