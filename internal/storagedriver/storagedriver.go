// Package storagedriver defines the interface the asset server uses to talk
// to whatever actually holds bytes: a local filesystem for production, an
// in-memory map for tests. The content store and mapping store persistence
// go through this interface rather than touching os directly.
package storagedriver

import (
	"context"
	"fmt"
	"io"
)

// StorageDriver is implemented by a storage backend. All paths are
// slash-separated and rooted at "/"; a driver is responsible for mapping
// them onto its own namespace (a directory tree, a key prefix, ...).
type StorageDriver interface {
	// Name returns the human-readable name of the driver.
	Name() string

	// GetContent reads the entire content at path.
	GetContent(ctx context.Context, path string) ([]byte, error)

	// PutContent writes contents at path, replacing anything there. A
	// driver implementation must make this appear atomic to readers: a
	// concurrent GetContent never observes a partial write.
	PutContent(ctx context.Context, path string, contents []byte) error

	// Reader returns a reader for the content at path, starting at offset.
	// Returns PathNotFoundError if path does not exist, InvalidOffsetError
	// if offset is beyond the end of the content.
	Reader(ctx context.Context, path string, offset int64) (io.ReadCloser, error)

	// Writer returns a writer for path. If append is false any existing
	// content is truncated; if true, writes continue from the current end.
	// Nothing is durably written until the returned FileWriter is
	// committed.
	Writer(ctx context.Context, path string, append bool) (FileWriter, error)

	// Stat returns the FileInfo for path, or PathNotFoundError if it does
	// not exist.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns the full paths of the direct descendants of path.
	List(ctx context.Context, path string) ([]string, error)

	// Move moves the content at sourcePath to destPath, overwriting
	// destPath if it exists.
	Move(ctx context.Context, sourcePath, destPath string) error

	// Delete removes path and everything under it. Deleting a path that
	// does not exist returns PathNotFoundError.
	Delete(ctx context.Context, path string) error
}

// FileWriter is a handle to an in-progress write. Exactly one of Commit or
// Cancel must be called before discarding it; Close alone leaves the write
// neither committed nor rolled back and should be treated as a caller bug.
type FileWriter interface {
	io.WriteCloser

	// Size returns the number of bytes written so far.
	Size() int64

	// Cancel discards the write, removing any partial content.
	Cancel(ctx context.Context) error

	// Commit flushes and finalizes the write, making it visible to
	// subsequent reads.
	Commit(ctx context.Context) error
}

// FileInfo describes a file or directory within a StorageDriver's
// namespace.
type FileInfo interface {
	Path() string
	Size() int64
	IsDir() bool
}

// PathNotFoundError is returned when an operation targets a path that does
// not exist in the driver's namespace.
type PathNotFoundError struct {
	Path string
}

func (e PathNotFoundError) Error() string {
	return fmt.Sprintf("storagedriver: path not found: %s", e.Path)
}

// InvalidOffsetError is returned when Reader is asked to start beyond the
// end of the content at Path.
type InvalidOffsetError struct {
	Path   string
	Offset int64
}

func (e InvalidOffsetError) Error() string {
	return fmt.Sprintf("storagedriver: invalid offset %d for path %s", e.Offset, e.Path)
}

// IsPathNotFound reports whether err is a PathNotFoundError.
func IsPathNotFound(err error) bool {
	_, ok := err.(PathNotFoundError)
	return ok
}
