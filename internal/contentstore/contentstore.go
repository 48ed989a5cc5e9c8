// Package contentstore implements the content-addressed blob store: files
// named by the lowercase hex SHA-256 of their bytes, held under a single
// files/ directory of a storagedriver.StorageDriver.
package contentstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/vircadia/assetd/internal/asset"
	"github.com/vircadia/assetd/internal/asseterr"
	"github.com/vircadia/assetd/internal/storagedriver"
)

// filesPrefix is the subdirectory of the storage root holding content files.
const filesPrefix = "/files"

// Store is a filesystem-backed content-addressed store. It is safe for
// concurrent use: concurrent reads of distinct hashes never block each
// other, and concurrent writes of the same hash are idempotent because the
// content-addressed property guarantees they carry identical bytes.
type Store struct {
	driver storagedriver.StorageDriver
}

// New builds a Store persisting content files through driver.
func New(driver storagedriver.StorageDriver) *Store {
	return &Store{driver: driver}
}

func pathFor(h asset.Hash) string {
	return filesPrefix + "/" + string(h)
}

// Put writes p to the store, returning its hash. If a file already exists
// under the computed hash, its content is compared and the write is
// skipped if it already matches (deduplication); a mismatch (which should
// never happen for a content-addressed name, but would indicate disk
// corruption) is treated as an overwrite.
//
// After a fresh write, Put reads the file back and re-hashes it before
// reporting success, per the write-then-verify-on-read-back requirement: a
// write that landed corrupted (truncated, flipped bits from a faulty disk)
// must never be handed out under a hash it doesn't actually match. On
// mismatch the file is removed rather than left behind under the wrong name.
func (s *Store) Put(ctx context.Context, p []byte) (asset.Hash, error) {
	h := asset.HashBytes(p)
	target := pathFor(h)

	if existing, err := s.driver.GetContent(ctx, target); err == nil {
		if bytes.Equal(existing, p) {
			return h, nil
		}
	}

	if err := s.driver.PutContent(ctx, target, p); err != nil {
		return "", asseterr.Wrap(asseterr.FileOperationFailed, fmt.Errorf("contentstore: put %s: %w", h, err))
	}

	if err := s.verifyWritten(ctx, target, h); err != nil {
		_ = s.driver.Delete(ctx, target)
		return "", asseterr.Wrap(asseterr.FileOperationFailed, fmt.Errorf("contentstore: put %s: write verification failed: %w", h, err))
	}

	return h, nil
}

// verifyWritten re-reads target and confirms it hashes to want, wiring
// VerifyHash into the write path it exists for.
func (s *Store) verifyWritten(ctx context.Context, target string, want asset.Hash) error {
	r, err := s.driver.Reader(ctx, target, 0)
	if err != nil {
		return err
	}
	defer r.Close()
	return VerifyHash(r, want)
}

// Exists reports whether a content file is stored under h.
func (s *Store) Exists(ctx context.Context, h asset.Hash) bool {
	_, err := s.driver.Stat(ctx, pathFor(h))
	return err == nil
}

// Size returns the size in bytes of the content stored under h.
func (s *Store) Size(ctx context.Context, h asset.Hash) (int64, error) {
	fi, err := s.driver.Stat(ctx, pathFor(h))
	if err != nil {
		if storagedriver.IsPathNotFound(err) {
			return 0, asseterr.New(asseterr.AssetNotFound)
		}
		return 0, asseterr.Wrap(asseterr.FileOperationFailed, err)
	}
	return fi.Size(), nil
}

// OpenRange opens the half-open byte range [from, to) of the content stored
// under h. A negative from is interpreted as size+from (a tail request).
// Returns AssetNotFound if h has no content file, InvalidByteRange if the
// range cannot be satisfied against the file's size.
func (s *Store) OpenRange(ctx context.Context, h asset.Hash, from, to int64) (io.ReadCloser, error) {
	size, err := s.Size(ctx, h)
	if err != nil {
		return nil, err
	}

	from, to, err = FixupRange(from, to, size)
	if err != nil {
		return nil, err
	}

	r, err := s.driver.Reader(ctx, pathFor(h), from)
	if err != nil {
		if storagedriver.IsPathNotFound(err) {
			return nil, asseterr.New(asseterr.AssetNotFound)
		}
		return nil, asseterr.Wrap(asseterr.FileOperationFailed, err)
	}

	return &limitedReadCloser{ReadCloser: r, remaining: to - from}, nil
}

// Remove unlinks the content file stored under h. A missing file is not an
// error: the orphan collector may race a concurrent delete of the same
// hash, and the end state is identical either way.
func (s *Store) Remove(ctx context.Context, h asset.Hash) error {
	err := s.driver.Delete(ctx, pathFor(h))
	if err != nil && !storagedriver.IsPathNotFound(err) {
		return asseterr.Wrap(asseterr.FileOperationFailed, err)
	}
	return nil
}

var hashFileNamePattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// ListAllHashes enumerates every content file whose name matches the
// 64-hex-character pattern, ignoring anything else found under the files
// directory (e.g. stray temp files left by an interrupted write).
func (s *Store) ListAllHashes(ctx context.Context) ([]asset.Hash, error) {
	entries, err := s.driver.List(ctx, filesPrefix)
	if err != nil {
		if storagedriver.IsPathNotFound(err) {
			return nil, nil
		}
		return nil, asseterr.Wrap(asseterr.FileOperationFailed, err)
	}

	hashes := make([]asset.Hash, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimPrefix(e, filesPrefix+"/")
		if hashFileNamePattern.MatchString(name) {
			hashes = append(hashes, asset.Hash(name))
		}
	}
	return hashes, nil
}

// FixupRange validates and normalizes a client-supplied [from, to) range
// against a known content size, per the tail-request convention: a negative
// from means "size+from", and to<=0 with from<0 is a tail-of-file request
// spanning to the end.
func FixupRange(from, to, size int64) (fixedFrom, fixedTo int64, err error) {
	if from >= 0 {
		if to <= from {
			return 0, 0, asseterr.New(asseterr.InvalidByteRange)
		}
		if to > size {
			return 0, 0, asseterr.New(asseterr.InvalidByteRange)
		}
		return from, to, nil
	}

	// from < 0: a tail request. to must be <= 0 and describe how many
	// bytes before the end the range ends (0 means "to the very end").
	if to > 0 {
		return 0, 0, asseterr.New(asseterr.InvalidByteRange)
	}
	if -from > size {
		return 0, 0, asseterr.New(asseterr.InvalidByteRange)
	}
	fixedFrom = size + from
	fixedTo = size + to
	if fixedTo <= fixedFrom {
		return 0, 0, asseterr.New(asseterr.InvalidByteRange)
	}
	return fixedFrom, fixedTo, nil
}

type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.ReadCloser.Read(p)
	l.remaining -= int64(n)
	return n, err
}

// VerifyHash re-hashes r as it is read, returning an error if the computed
// hash does not equal want once the stream is exhausted. Used by
// verifyWritten to confirm that a freshly written content file reads back
// under its hash.
func VerifyHash(r io.Reader, want asset.Hash) error {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != string(want) {
		return fmt.Errorf("contentstore: hash mismatch: want %s got %s", want, got)
	}
	return nil
}
