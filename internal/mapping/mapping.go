// Package mapping implements the authoritative path→hash directory: an
// in-memory map backed by a single JSON document, with snapshot-and-
// rollback semantics so that a persistence failure never leaves memory and
// disk disagreeing.
package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vircadia/assetd/internal/asset"
	"github.com/vircadia/assetd/internal/asseterr"
	"github.com/vircadia/assetd/internal/storagedriver"
)

// docPath is the location of the persisted mapping document within the
// storage root.
const docPath = "/map.json"

// BakeNotifier is called after a mapping mutation that might make an asset
// eligible for baking. The mapping store itself never invokes a baker; it
// only reports the (path, hash) pair so the caller — normally the request
// router — can ask the bake queue to evaluate it.
type BakeNotifier func(path asset.Path, hash asset.Hash)

// Store is the in-memory mapping directory, persisted to a single JSON
// document after every successful mutation.
type Store struct {
	driver storagedriver.StorageDriver
	onBake BakeNotifier

	mu      sync.Mutex
	entries map[asset.Path]asset.Hash
}

// New constructs an empty Store. Call Load before serving requests to
// populate it from disk.
func New(driver storagedriver.StorageDriver, onBake BakeNotifier) *Store {
	return &Store{
		driver:  driver,
		onBake:  onBake,
		entries: make(map[asset.Path]asset.Hash),
	}
}

// Load reads the persisted document, dropping any entry that fails path or
// hash validation with a warning. A missing document is treated as an empty
// store, not an error — this is the expected state on first boot.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.driver.GetContent(ctx, docPath)
	if err != nil {
		if storagedriver.IsPathNotFound(err) {
			return nil
		}
		return fmt.Errorf("mapping: load: %w", err)
	}

	var rawEntries map[string]string
	if err := json.Unmarshal(raw, &rawEntries); err != nil {
		return fmt.Errorf("mapping: load: parse %s: %w", docPath, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for p, h := range rawEntries {
		if !asset.IsValidPath(p) {
			logrus.WithField("path", p).Warn("mapping: dropping entry with invalid path at load")
			continue
		}
		if !asset.IsValidHash(h) {
			logrus.WithFields(logrus.Fields{"path": p, "hash": h}).Warn("mapping: dropping entry with invalid hash at load")
			continue
		}
		s.entries[asset.Path(p)] = asset.Hash(h)
	}
	return nil
}

// persistLocked serializes the full table and writes it in one call. Caller
// must hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	rawEntries := make(map[string]string, len(s.entries))
	for p, h := range s.entries {
		rawEntries[string(p)] = string(h)
	}

	doc, err := json.Marshal(rawEntries)
	if err != nil {
		return fmt.Errorf("mapping: marshal: %w", err)
	}

	if err := s.driver.PutContent(ctx, docPath, doc); err != nil {
		return fmt.Errorf("mapping: persist: %w", err)
	}
	return nil
}

// Get returns the hash mapped at path, or "" if there is none.
func (s *Store) Get(path asset.Path) (asset.Hash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.entries[path]
	return h, ok
}

// Entry is a single (path, hash) pair, returned by GetAll.
type Entry struct {
	Path asset.Path
	Hash asset.Hash
}

// GetAll returns every mapping currently held. The order is unspecified.
func (s *Store) GetAll() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for p, h := range s.entries {
		out = append(out, Entry{Path: p, Hash: h})
	}
	return out
}

// Set validates path and hash, then commits path→hash, persisting the
// whole table. On persistence failure the in-memory table is rolled back
// to its pre-call state and MappingOperationFailed is returned. On success,
// the configured BakeNotifier is invoked with the new mapping before
// returning.
func (s *Store) Set(ctx context.Context, path asset.Path, hash asset.Hash) error {
	path = asset.Path(trimSlashPrefix(string(path)))

	if !asset.IsValidFilePath(string(path)) {
		return asseterr.New(asseterr.MappingOperationFailed)
	}
	if !asset.IsValidHash(string(hash)) {
		return asseterr.New(asseterr.MappingOperationFailed)
	}
	if path.IsBaked() {
		return asseterr.New(asseterr.PermissionDenied)
	}

	s.mu.Lock()
	oldHash, hadOld := s.entries[path]
	s.entries[path] = hash

	if err := s.persistLocked(ctx); err != nil {
		if hadOld {
			s.entries[path] = oldHash
		} else {
			delete(s.entries, path)
		}
		s.mu.Unlock()
		logrus.WithError(err).WithField("path", path).Error("mapping: set: persistence failed, rolled back")
		return asseterr.Wrap(asseterr.MappingOperationFailed, err)
	}
	s.mu.Unlock()

	if s.onBake != nil {
		s.onBake(path, hash)
	}
	return nil
}

// SetBaked is identical to Set but permits writing under the reserved
// /.baked/ namespace. It is exported only to internal/bake, which is the
// sole legitimate caller: the bake worker commits its outputs back through
// the mapping store rather than touching storage directly, so that every
// mapping mutation — baked or not — goes through the same snapshot/persist/
// rollback path.
func (s *Store) SetBaked(ctx context.Context, path asset.Path, hash asset.Hash) error {
	if !asset.IsValidFilePath(string(path)) {
		return asseterr.New(asseterr.MappingOperationFailed)
	}
	if !asset.IsValidHash(string(hash)) {
		return asseterr.New(asseterr.MappingOperationFailed)
	}

	s.mu.Lock()
	oldHash, hadOld := s.entries[path]
	s.entries[path] = hash

	if err := s.persistLocked(ctx); err != nil {
		if hadOld {
			s.entries[path] = oldHash
		} else {
			delete(s.entries, path)
		}
		s.mu.Unlock()
		logrus.WithError(err).WithField("path", path).Error("mapping: setbaked: persistence failed, rolled back")
		return asseterr.Wrap(asseterr.MappingOperationFailed, err)
	}
	s.mu.Unlock()
	return nil
}

// Delete removes every path in paths. A path ending in "/" removes every
// mapping whose key starts with that prefix (a subtree delete); otherwise
// the exact mapping is removed. Deleting a path that doesn't exist is a
// no-op, not a failure. Returns the set of hashes that were values of
// removed mappings and are no longer referenced by any remaining mapping —
// these are handed to the orphan collector for unlinking.
func (s *Store) Delete(ctx context.Context, paths []asset.Path) ([]asset.Hash, error) {
	s.mu.Lock()

	snapshot := make(map[asset.Path]asset.Hash, len(s.entries))
	for p, h := range s.entries {
		snapshot[p] = h
	}

	removedHashes := make(map[asset.Hash]bool)
	for _, p := range paths {
		if p.IsFolder() {
			for ep := range s.entries {
				if ep.HasPrefix(p) {
					removedHashes[s.entries[ep]] = true
					delete(s.entries, ep)
				}
			}
		} else if h, ok := s.entries[p]; ok {
			removedHashes[h] = true
			delete(s.entries, p)
		}
	}

	if err := s.persistLocked(ctx); err != nil {
		s.entries = snapshot
		s.mu.Unlock()
		logrus.WithError(err).Error("mapping: delete: persistence failed, rolled back")
		return nil, asseterr.Wrap(asseterr.MappingOperationFailed, err)
	}

	stillReferenced := make(map[asset.Hash]bool)
	for _, h := range s.entries {
		stillReferenced[h] = true
	}
	s.mu.Unlock()

	orphanCandidates := make([]asset.Hash, 0, len(removedHashes))
	for h := range removedHashes {
		if !stillReferenced[h] {
			orphanCandidates = append(orphanCandidates, h)
		}
	}
	return orphanCandidates, nil
}

// Rename moves the mapping(s) at old to new. Both paths must validate, and
// exactly one of them ending in "/" (a folder/file type mismatch) is
// rejected. A folder rename re-keys every mapping whose path starts with
// old; a file rename moves a single mapping, overwriting new if it already
// exists. Renaming a missing source returns MappingOperationFailed.
func (s *Store) Rename(ctx context.Context, oldPath, newPath asset.Path) error {
	if !asset.IsValidPath(string(oldPath)) || !asset.IsValidPath(string(newPath)) {
		return asseterr.New(asseterr.MappingOperationFailed)
	}
	if oldPath.IsFolder() != newPath.IsFolder() {
		return asseterr.New(asseterr.MappingOperationFailed)
	}
	if oldPath.IsBaked() || newPath.IsBaked() {
		return asseterr.New(asseterr.PermissionDenied)
	}

	if oldPath.IsFolder() {
		return s.renameFolder(ctx, oldPath, newPath)
	}
	return s.renameFile(ctx, oldPath, newPath)
}

func (s *Store) renameFolder(ctx context.Context, oldPath, newPath asset.Path) error {
	s.mu.Lock()

	snapshot := make(map[asset.Path]asset.Hash, len(s.entries))
	for p, h := range s.entries {
		snapshot[p] = h
	}

	matched := false
	for p, h := range s.entries {
		if p.HasPrefix(oldPath) {
			matched = true
			delete(s.entries, p)
			s.entries[p.WithPrefixReplaced(oldPath, newPath)] = h
		}
	}
	if !matched {
		s.mu.Unlock()
		return asseterr.New(asseterr.MappingOperationFailed)
	}

	if err := s.persistLocked(ctx); err != nil {
		s.entries = snapshot
		s.mu.Unlock()
		logrus.WithError(err).Error("mapping: rename folder: persistence failed, rolled back")
		return asseterr.Wrap(asseterr.MappingOperationFailed, err)
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) renameFile(ctx context.Context, oldPath, newPath asset.Path) error {
	s.mu.Lock()

	hash, ok := s.entries[oldPath]
	if !ok {
		s.mu.Unlock()
		return asseterr.New(asseterr.MappingOperationFailed)
	}

	oldDestHash, hadDest := s.entries[newPath]

	delete(s.entries, oldPath)
	s.entries[newPath] = hash

	if err := s.persistLocked(ctx); err != nil {
		s.entries[oldPath] = hash
		if hadDest {
			s.entries[newPath] = oldDestHash
		} else {
			delete(s.entries, newPath)
		}
		s.mu.Unlock()
		logrus.WithError(err).Error("mapping: rename file: persistence failed, rolled back")
		return asseterr.Wrap(asseterr.MappingOperationFailed, err)
	}
	s.mu.Unlock()

	if s.onBake != nil {
		s.onBake(newPath, hash)
	}
	return nil
}

// AllHashesInUse returns the set of hashes referenced by at least one
// mapping, for the orphan collector's startup sweep.
func (s *Store) AllHashesInUse() map[asset.Hash]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	inUse := make(map[asset.Hash]bool, len(s.entries))
	for _, h := range s.entries {
		inUse[h] = true
	}
	return inUse
}

// BakedArtifact looks up /.baked/<source>/<name>, used by the
// request router when resolving GET redirection for baked content.
func (s *Store) BakedArtifact(source asset.Hash, name string) (asset.Hash, bool) {
	return s.Get(asset.BakedArtifactPath(source, name))
}

// HasMetaRecord reports whether a meta record exists for source, i.e.
// whether it has been baked (or opted in, for textures) at all.
func (s *Store) HasMetaRecord(source asset.Hash) bool {
	_, ok := s.Get(asset.BakedArtifactPath(source, "meta.json"))
	return ok
}

// trimSlashPrefix is a small helper kept for symmetry with the original
// implementation's path trimming before validation; Go's strings.TrimSpace
// covers the same "trim then validate" step for Set's path argument.
func trimSlashPrefix(p string) string {
	return strings.TrimSpace(p)
}
