// Package filesystem implements storagedriver.StorageDriver backed by a
// local directory tree. It is the production driver: the content store's
// files/ directory and the mapping store's map.json both live under its
// root.
package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/vircadia/assetd/internal/storagedriver"
	"github.com/vircadia/assetd/internal/uuid"
)

const driverName = "filesystem"

// Driver is a storagedriver.StorageDriver implementation rooted at a single
// local directory. Every path given to its methods is treated as relative
// to that root; callers never see or control the real filesystem path.
type Driver struct {
	rootDirectory string
}

// New constructs a Driver rooted at rootDirectory, creating it if absent.
func New(rootDirectory string) (*Driver, error) {
	if err := os.MkdirAll(rootDirectory, 0o777); err != nil {
		return nil, fmt.Errorf("filesystem: create root %s: %w", rootDirectory, err)
	}
	return &Driver{rootDirectory: rootDirectory}, nil
}

var _ storagedriver.StorageDriver = (*Driver)(nil)

// Name returns the driver's name.
func (d *Driver) Name() string {
	return driverName
}

// GetContent reads the entire content stored at path.
func (d *Driver) GetContent(ctx context.Context, subPath string) ([]byte, error) {
	rc, err := d.Reader(ctx, subPath, 0)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// PutContent stores contents at subPath, replacing it atomically via a
// temp-file-then-rename so that a concurrent reader never observes a
// partial write.
func (d *Driver) PutContent(ctx context.Context, subPath string, contents []byte) error {
	tempPath := fmt.Sprintf("%s.%s.tmp", subPath, uuid.NewString())

	writer, err := d.Writer(ctx, tempPath, false)
	if err != nil {
		return err
	}
	defer writer.Close()

	if _, err := io.Copy(writer, bytes.NewReader(contents)); err != nil {
		if cErr := writer.Cancel(ctx); cErr != nil {
			return errors.Join(err, cErr)
		}
		return errors.Join(err, d.Delete(ctx, tempPath))
	}

	if err := writer.Commit(ctx); err != nil {
		return err
	}

	if err := d.Move(ctx, tempPath, subPath); err != nil {
		return errors.Join(err, d.Delete(ctx, tempPath))
	}

	return nil
}

// Reader opens the content at subPath for reading starting at offset.
func (d *Driver) Reader(ctx context.Context, subPath string, offset int64) (io.ReadCloser, error) {
	file, err := os.OpenFile(d.fullPath(subPath), os.O_RDONLY, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storagedriver.PathNotFoundError{Path: subPath}
		}
		return nil, err
	}

	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if offset > fi.Size() {
		file.Close()
		return nil, storagedriver.InvalidOffsetError{Path: subPath, Offset: offset}
	}

	seekPos, err := file.Seek(offset, io.SeekStart)
	if err != nil {
		file.Close()
		return nil, err
	} else if seekPos < offset {
		file.Close()
		return nil, storagedriver.InvalidOffsetError{Path: subPath, Offset: offset}
	}

	return file, nil
}

// Writer opens subPath for writing. Parent directories are created as
// needed; nothing is durable until Commit is called on the result.
func (d *Driver) Writer(ctx context.Context, subPath string, append bool) (storagedriver.FileWriter, error) {
	fullPath := d.fullPath(subPath)
	if err := os.MkdirAll(path.Dir(fullPath), 0o777); err != nil {
		return nil, err
	}

	fp, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE, 0o666)
	if err != nil {
		return nil, err
	}

	var offset int64
	if !append {
		if err := fp.Truncate(0); err != nil {
			fp.Close()
			return nil, err
		}
	} else {
		n, err := fp.Seek(0, io.SeekEnd)
		if err != nil {
			fp.Close()
			return nil, err
		}
		offset = n
	}

	return newFileWriter(fp, offset), nil
}

// Stat returns FileInfo for subPath.
func (d *Driver) Stat(ctx context.Context, subPath string) (storagedriver.FileInfo, error) {
	fi, err := os.Stat(d.fullPath(subPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storagedriver.PathNotFoundError{Path: subPath}
		}
		return nil, err
	}

	return fileInfo{path: subPath, FileInfo: fi}, nil
}

// List returns the direct descendants of subPath.
func (d *Driver) List(ctx context.Context, subPath string) ([]string, error) {
	fullPath := d.fullPath(subPath)

	dir, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storagedriver.PathNotFoundError{Path: subPath}
		}
		return nil, err
	}
	defer dir.Close()

	names, err := dir.Readdirnames(0)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(names))
	for _, name := range names {
		keys = append(keys, path.Join(subPath, name))
	}
	return keys, nil
}

// Move renames sourcePath to destPath, overwriting destPath.
func (d *Driver) Move(ctx context.Context, sourcePath, destPath string) error {
	source := d.fullPath(sourcePath)
	dest := d.fullPath(destPath)

	if _, err := os.Stat(source); os.IsNotExist(err) {
		return storagedriver.PathNotFoundError{Path: sourcePath}
	}

	if err := os.MkdirAll(path.Dir(dest), 0o777); err != nil {
		return err
	}

	return os.Rename(source, dest)
}

// Delete removes subPath and everything beneath it.
func (d *Driver) Delete(ctx context.Context, subPath string) error {
	fullPath := d.fullPath(subPath)

	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return storagedriver.PathNotFoundError{Path: subPath}
		}
		return err
	}

	return os.RemoveAll(fullPath)
}

func (d *Driver) fullPath(subPath string) string {
	return path.Join(d.rootDirectory, subPath)
}

type fileInfo struct {
	os.FileInfo
	path string
}

func (fi fileInfo) Path() string { return fi.path }

func (fi fileInfo) Size() int64 {
	if fi.IsDir() {
		return 0
	}
	return fi.FileInfo.Size()
}

func (fi fileInfo) IsDir() bool { return fi.FileInfo.IsDir() }

type fileWriter struct {
	file      *os.File
	size      int64
	bw        *bufio.Writer
	closed    bool
	committed bool
	cancelled bool
}

func newFileWriter(file *os.File, size int64) *fileWriter {
	return &fileWriter{file: file, size: size, bw: bufio.NewWriter(file)}
}

func (fw *fileWriter) Write(p []byte) (int, error) {
	if fw.closed {
		return 0, fmt.Errorf("filesystem: writer already closed")
	} else if fw.committed {
		return 0, fmt.Errorf("filesystem: writer already committed")
	} else if fw.cancelled {
		return 0, fmt.Errorf("filesystem: writer already cancelled")
	}
	n, err := fw.bw.Write(p)
	fw.size += int64(n)
	return n, err
}

func (fw *fileWriter) Size() int64 {
	return fw.size
}

func (fw *fileWriter) Close() error {
	if fw.closed {
		return fmt.Errorf("filesystem: writer already closed")
	}
	if fw.cancelled {
		fw.closed = true
		return nil
	}
	if err := fw.bw.Flush(); err != nil {
		return err
	}
	if err := fw.file.Sync(); err != nil {
		return err
	}
	if err := fw.file.Close(); err != nil {
		return err
	}
	fw.closed = true
	return nil
}

func (fw *fileWriter) Cancel(ctx context.Context) error {
	if fw.closed {
		return fmt.Errorf("filesystem: writer already closed")
	}
	fw.cancelled = true
	fw.file.Close()
	return os.Remove(fw.file.Name())
}

func (fw *fileWriter) Commit(ctx context.Context) error {
	if fw.closed {
		return fmt.Errorf("filesystem: writer already closed")
	} else if fw.committed {
		return fmt.Errorf("filesystem: writer already committed")
	} else if fw.cancelled {
		return fmt.Errorf("filesystem: writer already cancelled")
	}
	if err := fw.bw.Flush(); err != nil {
		return err
	}
	if err := fw.file.Sync(); err != nil {
		return err
	}
	fw.committed = true
	return nil
}
