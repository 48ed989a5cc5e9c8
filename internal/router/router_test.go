package router

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vircadia/assetd/internal/asset"
	"github.com/vircadia/assetd/internal/asseterr"
	"github.com/vircadia/assetd/internal/bake"
	"github.com/vircadia/assetd/internal/mapping"
	"github.com/vircadia/assetd/internal/orphan"
	"github.com/vircadia/assetd/internal/session"
	"github.com/vircadia/assetd/internal/transfer"
	"github.com/vircadia/assetd/internal/wire"
)

var testHash = asset.Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

type fakeMappings struct {
	entries map[asset.Path]asset.Hash
	baked   map[asset.Path]asset.Hash
	meta    map[asset.Hash]bool

	setErr    error
	deleteErr error
	renameErr error

	deletedPaths []asset.Path
	orphanHashes []asset.Hash
}

func newFakeMappings() *fakeMappings {
	return &fakeMappings{
		entries: make(map[asset.Path]asset.Hash),
		baked:   make(map[asset.Path]asset.Hash),
		meta:    make(map[asset.Hash]bool),
	}
}

func (m *fakeMappings) Get(path asset.Path) (asset.Hash, bool) {
	h, ok := m.entries[path]
	return h, ok
}

func (m *fakeMappings) GetAll() []mapping.Entry {
	out := make([]mapping.Entry, 0, len(m.entries))
	for p, h := range m.entries {
		out = append(out, mapping.Entry{Path: p, Hash: h})
	}
	return out
}

func (m *fakeMappings) Set(ctx context.Context, path asset.Path, hash asset.Hash) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[path] = hash
	return nil
}

func (m *fakeMappings) SetBaked(ctx context.Context, path asset.Path, hash asset.Hash) error {
	m.baked[path] = hash
	if path == asset.BakedArtifactPath(hash, "meta.json") {
		m.meta[hash] = true
	}
	return nil
}

func (m *fakeMappings) Delete(ctx context.Context, paths []asset.Path) ([]asset.Hash, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	m.deletedPaths = append(m.deletedPaths, paths...)
	for _, p := range paths {
		delete(m.entries, p)
	}
	return m.orphanHashes, nil
}

func (m *fakeMappings) Rename(ctx context.Context, oldPath, newPath asset.Path) error {
	if m.renameErr != nil {
		return m.renameErr
	}
	m.entries[newPath] = m.entries[oldPath]
	delete(m.entries, oldPath)
	return nil
}

func (m *fakeMappings) BakedArtifact(source asset.Hash, name string) (asset.Hash, bool) {
	h, ok := m.baked[asset.BakedArtifactPath(source, name)]
	return h, ok
}

func (m *fakeMappings) HasMetaRecord(source asset.Hash) bool {
	return m.meta[source]
}

type fakeOrphans struct {
	called     bool
	candidates []asset.Hash
	stats      orphan.Stats
}

func (o *fakeOrphans) SweepCandidates(ctx context.Context, candidates []asset.Hash) orphan.Stats {
	o.called = true
	o.candidates = candidates
	return o.stats
}

type fakeTransfer struct {
	sendCalls   int
	uploadCalls int
	lastMessage uint32
}

func (t *fakeTransfer) SubmitSendAsset(ctx context.Context, sink transfer.ReplySink, messageID uint32, hash asset.Hash, from, to int64) {
	t.sendCalls++
	t.lastMessage = messageID
	sink.SendAssetReply(ctx, messageID, hash, nil, to-from, asseterr.NoError)
}

func (t *fakeTransfer) SubmitUploadAsset(ctx context.Context, sink transfer.ReplySink, messageID uint32, payload []byte) {
	t.uploadCalls++
	sink.UploadAssetReply(ctx, messageID, testHash, asseterr.NoError)
}

type fakeBakeQueue struct {
	enqueued []asset.Hash
	status   map[asset.Hash]bake.Status
}

func (q *fakeBakeQueue) Enqueue(source asset.Hash) bool {
	q.enqueued = append(q.enqueued, source)
	return true
}

func (q *fakeBakeQueue) Status(source asset.Hash) bake.Status {
	if q.status == nil {
		return bake.StatusNotBaked
	}
	return q.status[source]
}

type fakeSink struct {
	sendCode   asseterr.Code
	uploadCode asseterr.Code
	uploadHash asset.Hash
}

func (s *fakeSink) SendAssetReply(ctx context.Context, messageID uint32, hash asset.Hash, payload io.ReadCloser, size int64, code asseterr.Code) {
	s.sendCode = code
}

func (s *fakeSink) UploadAssetReply(ctx context.Context, messageID uint32, hash asset.Hash, code asseterr.Code) {
	s.uploadCode = code
	s.uploadHash = hash
}

func newTestRouter() (*Router, *fakeMappings, *fakeOrphans, *fakeTransfer, *fakeBakeQueue) {
	m := newFakeMappings()
	o := &fakeOrphans{}
	tr := &fakeTransfer{}
	bq := &fakeBakeQueue{}
	rt := &Router{
		Mappings:  m,
		Orphans:   o,
		Transfer:  tr,
		BakeQueue: bq,
		Dispatch:  func(job bake.Job) {},
		Sessions:  session.NewRegistry(),
	}
	return rt, m, o, tr, bq
}

func TestHandleAssetGetDelegatesToTransfer(t *testing.T) {
	rt, _, _, tr, _ := newTestRouter()
	sink := &fakeSink{}

	rt.HandleAssetGet(context.Background(), "alice", wire.AssetGet{MessageID: 7, Hash: testHash, ToExclusive: 10}, sink)

	require.Equal(t, 1, tr.sendCalls)
	require.Equal(t, uint32(7), tr.lastMessage)
	require.Equal(t, asseterr.NoError, sink.sendCode)
}

func TestHandleAssetGetInfoSynchronous(t *testing.T) {
	rt, _, _, _, _ := newTestRouter()

	reply := rt.HandleAssetGetInfo(context.Background(), wire.AssetGetInfo{MessageID: 3, Hash: testHash}, func(ctx context.Context, h asset.Hash) (int64, error) {
		return 42, nil
	})

	require.Equal(t, asseterr.NoError, reply.Code)
	require.Equal(t, int64(42), reply.AssetSize)
}

func TestHandleAssetGetInfoNotFound(t *testing.T) {
	rt, _, _, _, _ := newTestRouter()

	reply := rt.HandleAssetGetInfo(context.Background(), wire.AssetGetInfo{MessageID: 3, Hash: testHash}, func(ctx context.Context, h asset.Hash) (int64, error) {
		return 0, asseterr.New(asseterr.AssetNotFound)
	})

	require.Equal(t, asseterr.AssetNotFound, reply.Code)
}

func TestHandleAssetUploadDeniedWithoutCapability(t *testing.T) {
	rt, _, _, tr, _ := newTestRouter()
	sink := &fakeSink{}

	rt.HandleAssetUpload(context.Background(), "alice", wire.AssetUpload{MessageID: 1, Payload: []byte("x")}, sink)

	require.Equal(t, 0, tr.uploadCalls)
	require.Equal(t, asseterr.PermissionDenied, sink.uploadCode)
}

func TestHandleAssetUploadAllowedWithCapability(t *testing.T) {
	rt, _, _, tr, _ := newTestRouter()
	rt.Sessions.Set("alice", session.Capabilities{CanWrite: true})
	sink := &fakeSink{}

	rt.HandleAssetUpload(context.Background(), "alice", wire.AssetUpload{MessageID: 1, Payload: []byte("x")}, sink)

	require.Equal(t, 1, tr.uploadCalls)
	require.Equal(t, asseterr.NoError, sink.uploadCode)
}

func TestHandleMappingGetNotFound(t *testing.T) {
	rt, _, _, _, _ := newTestRouter()

	reply := rt.HandleAssetMappingOperation(context.Background(), "alice", wire.AssetMappingOperation{
		MessageID: 1, Op: wire.OpGet, GetPath: "/model.fbx",
	})

	require.Equal(t, asseterr.AssetNotFound, reply.Code)
}

func TestHandleMappingGetRedirectsToBakedArtifact(t *testing.T) {
	rt, m, _, _, _ := newTestRouter()
	m.entries["/model.fbx"] = testHash
	bakedHash := asset.Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	m.baked[asset.BakedArtifactPath(testHash, "asset.fbx")] = bakedHash

	reply := rt.HandleAssetMappingOperation(context.Background(), "alice", wire.AssetMappingOperation{
		MessageID: 1, Op: wire.OpGet, GetPath: "/model.fbx",
	})

	require.Equal(t, asseterr.NoError, reply.Code)
	require.True(t, reply.WasRedirected)
	require.Equal(t, bakedHash, reply.GetHash)
}

func TestHandleMappingGetSkyboxOptIn(t *testing.T) {
	rt, m, _, _, bq := newTestRouter()
	m.entries["/room.png"] = testHash

	reply := rt.HandleAssetMappingOperation(context.Background(), "alice", wire.AssetMappingOperation{
		MessageID: 1, Op: wire.OpGet, GetPath: "/room.png?skybox",
	})

	require.Equal(t, asseterr.NoError, reply.Code)
	require.True(t, m.HasMetaRecord(testHash))
	require.Contains(t, bq.enqueued, testHash)
}

func TestHandleMappingGetAllReportsBakeStatus(t *testing.T) {
	rt, m, _, _, bq := newTestRouter()
	m.entries["/model.fbx"] = testHash
	bq.status = map[asset.Hash]bake.Status{testHash: bake.StatusBaking}

	reply := rt.HandleAssetMappingOperation(context.Background(), "alice", wire.AssetMappingOperation{
		MessageID: 2, Op: wire.OpGetAll,
	})

	require.Len(t, reply.Entries, 1)
	require.Equal(t, bake.StatusBaking, reply.Entries[0].BakingStatus)
}

func TestHandleMappingGetAllReportsBakedFromMappingWhenQueueIsIdle(t *testing.T) {
	rt, m, _, _, bq := newTestRouter()
	m.entries["/model.fbx"] = testHash
	m.baked[asset.BakedArtifactPath(testHash, "asset.fbx")] = asset.Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	bq.status = map[asset.Hash]bake.Status{testHash: bake.StatusNotBaked}

	reply := rt.HandleAssetMappingOperation(context.Background(), "alice", wire.AssetMappingOperation{
		MessageID: 2, Op: wire.OpGetAll,
	})

	require.Len(t, reply.Entries, 1)
	require.Equal(t, bake.StatusBaked, reply.Entries[0].BakingStatus)
}

func TestHandleMappingSetDeniedWithoutCapability(t *testing.T) {
	rt, _, _, _, _ := newTestRouter()

	reply := rt.HandleAssetMappingOperation(context.Background(), "alice", wire.AssetMappingOperation{
		MessageID: 1, Op: wire.OpSet, SetPath: "/a.fbx", SetHash: testHash,
	})

	require.Equal(t, asseterr.PermissionDenied, reply.Code)
}

func TestHandleMappingSetEnqueuesBakeJob(t *testing.T) {
	rt, m, _, _, bq := newTestRouter()
	rt.Sessions.Set("alice", session.Capabilities{CanWrite: true})

	reply := rt.HandleAssetMappingOperation(context.Background(), "alice", wire.AssetMappingOperation{
		MessageID: 1, Op: wire.OpSet, SetPath: "/a.fbx", SetHash: testHash,
	})

	require.Equal(t, asseterr.NoError, reply.Code)
	require.Equal(t, testHash, m.entries["/a.fbx"])
	require.Contains(t, bq.enqueued, testHash)
}

func TestHandleMappingDeleteSweepsOrphans(t *testing.T) {
	rt, m, o, _, _ := newTestRouter()
	rt.Sessions.Set("alice", session.Capabilities{CanWrite: true})
	m.entries["/a.fbx"] = testHash
	m.orphanHashes = []asset.Hash{testHash}

	reply := rt.HandleAssetMappingOperation(context.Background(), "alice", wire.AssetMappingOperation{
		MessageID: 1, Op: wire.OpDelete, DeletePaths: []string{"/a.fbx"},
	})

	require.Equal(t, asseterr.NoError, reply.Code)
	require.True(t, o.called)
	require.Equal(t, []asset.Hash{testHash}, o.candidates)
}

func TestHandleMappingRenameDeniedWithoutCapability(t *testing.T) {
	rt, _, _, _, _ := newTestRouter()

	reply := rt.HandleAssetMappingOperation(context.Background(), "alice", wire.AssetMappingOperation{
		MessageID: 1, Op: wire.OpRename, RenameOldPath: "/a.fbx", RenameNewPath: "/b.fbx",
	})

	require.Equal(t, asseterr.PermissionDenied, reply.Code)
}

func TestHandleMappingRenameSucceeds(t *testing.T) {
	rt, m, _, _, _ := newTestRouter()
	rt.Sessions.Set("alice", session.Capabilities{CanWrite: true})
	m.entries["/a.fbx"] = testHash

	reply := rt.HandleAssetMappingOperation(context.Background(), "alice", wire.AssetMappingOperation{
		MessageID: 1, Op: wire.OpRename, RenameOldPath: "/a.fbx", RenameNewPath: "/b.fbx",
	})

	require.Equal(t, asseterr.NoError, reply.Code)
	require.Equal(t, testHash, m.entries["/b.fbx"])
	_, exists := m.entries["/a.fbx"]
	require.False(t, exists)
}
